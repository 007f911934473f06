/*
errors.go - Centralized error types for the liaison engine

USAGE:

	Store implementations wrap these sentinels with context; callers test with
	errors.Is / errors.As.

	  if errors.Is(err, liaison.ErrRunInProgress) {
	      // another trigger owns today's run
	  }
*/
package liaison

import (
	"errors"
	"fmt"

	"github.com/warp/liaison-engine/calendar"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRunInProgress is returned when a batch run is already executing.
	ErrRunInProgress = errors.New("batch run already in progress")

	// ErrFutureRunDate is returned when a batch run is requested for a day
	// after today. Running ahead would complete leaves still in progress.
	ErrFutureRunDate = errors.New("run date is after today")

	// ErrUnknownDepartment is returned when a scope names a missing department.
	ErrUnknownDepartment = errors.New("unknown department")

	// ErrInvalidPeriod is the calendar sentinel, re-exported for API callers.
	ErrInvalidPeriod = calendar.ErrInvalidPeriod
)

// DepartmentError isolates a failure computing one department's metrics.
type DepartmentError struct {
	DepartmentID DepartmentID
	Err          error
}

func (e *DepartmentError) Error() string {
	return fmt.Sprintf("department %s: %v", e.DepartmentID, e.Err)
}

func (e *DepartmentError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnknownDepartment)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownDepartment) ||
		errors.Is(err, ErrFutureRunDate)
}
