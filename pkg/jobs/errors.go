package jobs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidJobID is returned when a submission is accepted without a
	// positive integer job_id.
	ErrInvalidJobID = errors.New("job submission returned no valid job id")
	// ErrJobTimeout is returned when a job is still not terminal at its deadline.
	ErrJobTimeout = errors.New("job timed out")
	// ErrJobInProgress is returned when a job of the same type is outstanding.
	ErrJobInProgress = errors.New("job of this type already in progress")
)

// JobFailedError carries the device-reported failure reason.
type JobFailedError struct {
	JobID  int64
	Type   string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("%s job %d failed: %s", e.Type, e.JobID, e.Reason)
}
