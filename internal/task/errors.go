package task

import "fmt"

// SchedulerError wraps a failure reported by the live scheduler
type SchedulerError struct {
	Op     string
	TaskID int64
	Err    error
}

func (e *SchedulerError) Error() string {
	return fmt.Sprintf("scheduler %s for task %d: %v", e.Op, e.TaskID, e.Err)
}

func (e *SchedulerError) Unwrap() error {
	return e.Err
}
