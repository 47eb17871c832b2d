package availability

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

// Slot is one bookable, doctor-owned window on a given date.
type Slot struct {
	ID            string
	DoctorID      string
	Date          time.Time
	DayOfWeek     string
	Start         calendar.Clock
	Duration      time.Duration
	Booked        bool
	AppointmentID *string
	CreatedAt     time.Time
}

func (s Slot) End() calendar.Clock {
	return s.Start.Add(s.Duration)
}

// Matches reports whether the slot sits at the given date and start time.
func (s Slot) Matches(date time.Time, start calendar.Clock) bool {
	return sameDay(s.Date, date) && s.Start == start
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
