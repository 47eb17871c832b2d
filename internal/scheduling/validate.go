package scheduling

import (
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

func checkID(op, id, kind string) error {
	if !ident.Valid(id, kind) {
		return newError(KindInvalidIdentifier, op, id, fmt.Errorf("not a %s identifier", kind))
	}
	return nil
}

func parseDate(op, id, s string) (time.Time, error) {
	d, err := calendar.ParseDate(s)
	if err != nil {
		return time.Time{}, newError(KindInvalidFormat, op, id, err)
	}
	return d, nil
}

func parseClock(op, id, s string) (calendar.Clock, error) {
	c, err := calendar.ParseClock(s)
	if err != nil {
		return 0, newError(KindInvalidFormat, op, id, err)
	}
	return c, nil
}

// parseStatus treats an empty status as Scheduled.
func parseStatus(op, id, s string) (appointment.Status, error) {
	if s == "" {
		return appointment.StatusScheduled, nil
	}
	st, err := appointment.ParseStatus(s)
	if err != nil {
		return "", newError(KindInvalidStatus, op, id, err)
	}
	return st, nil
}

// slotRef is a slot id with the date and start the caller expects it at.
type slotRef struct {
	id    string
	date  time.Time
	start calendar.Clock
}

func parseSlotRef(op, slotID, date, start string) (slotRef, error) {
	if err := checkID(op, slotID, ident.KindSlot); err != nil {
		return slotRef{}, err
	}
	d, err := parseDate(op, slotID, date)
	if err != nil {
		return slotRef{}, err
	}
	s, err := parseClock(op, slotID, start)
	if err != nil {
		return slotRef{}, err
	}
	return slotRef{id: slotID, date: d, start: s}, nil
}
