package keys

import "fmt"

// Stream name suffixes
const (
	SuffixEvents     = "events"
	SuffixDeadLetter = "dead"
)

// EventStream returns the lifecycle event stream for an app
// Example: taskdash:events
func EventStream(app string) string {
	return fmt.Sprintf("%s:%s", app, SuffixEvents)
}

// DeadLetterStream returns the stream that collects failed tasks
// Example: taskdash:dead
func DeadLetterStream(app string) string {
	return fmt.Sprintf("%s:%s", app, SuffixDeadLetter)
}
