package availability

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrEmptyWindow     = errors.New("window start must be before end")
	ErrInvalidDuration = errors.New("slot duration must be positive")
)

// Window is a doctor's working period on one date.
type Window struct {
	DoctorID  string
	Date      time.Time
	DayOfWeek string
	Start     calendar.Clock
	End       calendar.Clock
	Duration  time.Duration
}

func (w Window) Validate() error {
	if w.Start >= w.End {
		return fmt.Errorf("%w: %s-%s", ErrEmptyWindow, w.Start, w.End)
	}
	if w.Duration < time.Minute || w.Duration%time.Minute != 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, w.Duration)
	}
	return nil
}

// IDFunc returns a fresh slot identifier.
type IDFunc func() string

// Allocate expands the window into free slots, one every Duration while the
// slot start is within the window and the whole slot fits before End. Ranging
// the sequence again regenerates the same boundaries with new identifiers.
// An invalid window yields nothing.
func Allocate(w Window, newID IDFunc) iter.Seq[Slot] {
	return func(yield func(Slot) bool) {
		if w.Validate() != nil {
			return
		}
		for start := w.Start; start.Add(w.Duration) <= w.End; start = start.Add(w.Duration) {
			s := Slot{
				ID:        newID(),
				DoctorID:  w.DoctorID,
				Date:      w.Date,
				DayOfWeek: w.DayOfWeek,
				Start:     start,
				Duration:  w.Duration,
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Count is the number of slots Allocate yields for w.
func Count(w Window) int {
	if w.Validate() != nil {
		return 0
	}
	return int(time.Duration(w.End-w.Start) * time.Minute / w.Duration)
}
