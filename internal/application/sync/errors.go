package sync

import "fmt"

// RunError is the job-level error every stage failure is wrapped into
// before it surfaces to the caller. It carries the counters accumulated up
// to the failure so a partial run can still be judged.
type RunError struct {
	Stage    string
	Counters Counters
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
