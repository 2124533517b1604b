package scheduler

import "container/list"

// priorityQueues holds one FIFO list per priority plus an index for O(1)
// removal. It is not safe for concurrent use; the scheduler mutex guards it.
type priorityQueues struct {
	levels [numPriorities]*list.List
	index  map[string]*list.Element
}

func newPriorityQueues() *priorityQueues {
	q := &priorityQueues{index: make(map[string]*list.Element)}
	for i := range q.levels {
		q.levels[i] = list.New()
	}
	return q
}

// push appends t to the tail of its priority level
func (q *priorityQueues) push(t *Task) {
	if _, queued := q.index[t.ID]; queued {
		return
	}
	q.index[t.ID] = q.levels[t.Priority].PushBack(t)
}

// popNext removes the oldest eligible task of the highest non-empty level.
// A nil eligible accepts every task.
func (q *priorityQueues) popNext(eligible func(*Task) bool) *Task {
	for p := numPriorities - 1; p >= 0; p-- {
		for e := q.levels[p].Front(); e != nil; e = e.Next() {
			t := e.Value.(*Task)
			if eligible != nil && !eligible(t) {
				continue
			}
			q.levels[p].Remove(e)
			delete(q.index, t.ID)
			return t
		}
	}
	return nil
}

func (q *priorityQueues) remove(id string) bool {
	e, ok := q.index[id]
	if !ok {
		return false
	}
	t := e.Value.(*Task)
	q.levels[t.Priority].Remove(e)
	delete(q.index, id)
	return true
}

func (q *priorityQueues) len(p Priority) int {
	return q.levels[p].Len()
}

func (q *priorityQueues) total() int {
	return len(q.index)
}
