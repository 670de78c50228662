package ppo

import "fmt"

// InputShapeError reports invalid step inputs. It is raised by input
// validation before any computation runs.
type InputShapeError struct {
	Field    string
	Expected int
	Got      int
	Reason   string
}

// Error implements the error interface.
func (e *InputShapeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid input shape for %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input shape for %s: expected %d elements, got %d", e.Field, e.Expected, e.Got)
}

// DivisibilityError reports a batch size that the forward sub-batch size
// does not evenly divide.
type DivisibilityError struct {
	BatchSize        int
	ForwardBatchSize int
}

// Error implements the error interface.
func (e *DivisibilityError) Error() string {
	return fmt.Sprintf("batch size %d is not divisible by forward batch size %d", e.BatchSize, e.ForwardBatchSize)
}
