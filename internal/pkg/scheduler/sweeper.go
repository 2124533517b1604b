package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// Sweep deletes terminal tasks that completed more than Retention ago and
// returns how many were removed.
func (s *Scheduler) Sweep(ctx context.Context) (removed int) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	cutoff := s.clock.Now().Add(-s.cfg.Retention)

	s.mu.Lock()
	for id, t := range s.tasks {
		if !t.Status.IsTerminal() || t.CompletedAt == nil {
			continue
		}
		if t.CompletedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.IncOperation(OpSweep, OutcomeSuccess, "")
		s.log.Info("swept expired tasks", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	s.refreshGauges()
	return removed
}
