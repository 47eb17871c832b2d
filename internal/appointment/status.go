package appointment

import (
	"errors"
	"fmt"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

var (
	ErrInvalidStatus     = errors.New("status must be Scheduled, Completed or Cancelled")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ParseStatus trims and title-cases s before matching it.
func ParseStatus(s string) (Status, error) {
	st := Status(calendar.TitleCase(s))
	switch st {
	case StatusScheduled, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Completed and Cancelled are terminal; an appointment is never re-opened.
var transitions = map[Status]map[Status]bool{
	StatusScheduled: {StatusCompleted: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is allowed. Staying in the same
// state is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	return transitions[from][to]
}

func CheckTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
