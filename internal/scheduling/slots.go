package scheduling

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ident"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// reconcileBatch bounds the slots one ReconcileSlots pass looks at.
const reconcileBatch = 100

type AvailabilityRequest struct {
	DoctorID        string
	Date            string // DD/MM/YYYY
	DayOfWeek       string
	Start           string // HH:MM
	End             string // HH:MM
	DurationMinutes int
}

// AddAvailability publishes the doctor's window as free slots. Slots already
// published at the same start are kept as they are, so repeating a call is
// harmless. It returns the newly created slots.
func (e *Engine) AddAvailability(ctx context.Context, req AvailabilityRequest) ([]availability.Slot, error) {
	const op = "AddAvailability"

	doctorID := strings.TrimSpace(req.DoctorID)
	if err := checkID(op, doctorID, ident.KindDoctor); err != nil {
		return nil, err
	}
	date, err := parseDate(op, doctorID, req.Date)
	if err != nil {
		return nil, err
	}
	wd, err := calendar.ParseWeekday(req.DayOfWeek)
	if err != nil {
		return nil, newError(KindInvalidFormat, op, doctorID, err)
	}
	if wd != date.Weekday() {
		return nil, newError(KindInvalidFormat, op, doctorID,
			fmt.Errorf("%s is a %s, not a %s", calendar.FormatDate(date), date.Weekday(), wd))
	}
	start, err := parseClock(op, doctorID, req.Start)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(op, doctorID, req.End)
	if err != nil {
		return nil, err
	}

	w := availability.Window{
		DoctorID:  doctorID,
		Date:      date,
		DayOfWeek: wd.String(),
		Start:     start,
		End:       end,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
	}
	if err := w.Validate(); err != nil {
		return nil, newError(KindInvalidFormat, op, doctorID, err)
	}

	requested := availability.Count(w)
	var created []availability.Slot
	err = e.run(ctx, op, doctorID, func(ctx context.Context) error {
		if _, err := e.doctors.FindByID(ctx, doctorID); err != nil {
			return err
		}
		if requested == 0 {
			created = []availability.Slot{}
			return nil
		}
		return retryOnCollision(func() error {
			slots := slices.Collect(availability.Allocate(w, func() string { return e.ids(ident.KindSlot) }))
			return e.tx.WithinTx(ctx, func(ctx context.Context) error {
				var err error
				created, err = e.slots.Insert(ctx, slots)
				return err
			})
		})
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("doctor_id", doctorID).
		Str("date", calendar.FormatDate(date)).
		Int("requested", requested).
		Int("slots", len(created)).
		Msg("availability added")
	return created, nil
}

// DeleteAvailability removes one slot. A slot held by a Scheduled
// appointment cannot be removed; cancel the appointment first.
func (e *Engine) DeleteAvailability(ctx context.Context, slotID string) error {
	const op = "DeleteAvailability"

	if err := checkID(op, slotID, ident.KindSlot); err != nil {
		return err
	}

	return e.run(ctx, op, slotID, func(ctx context.Context) error {
		return e.tx.WithinTx(ctx, func(ctx context.Context) error {
			slot, err := e.slots.GetForUpdate(ctx, slotID)
			if err != nil {
				return err
			}
			if err := e.ensureUnclaimed(ctx, op, slot); err != nil {
				return err
			}
			return e.slots.Delete(ctx, slotID)
		})
	})
}

// DeleteDoctorAvailability removes the doctor's slots on date, or only the
// one starting at start when start is not empty. It refuses when any of them
// is held by a Scheduled appointment.
func (e *Engine) DeleteDoctorAvailability(ctx context.Context, doctorID, date, start string) (int64, error) {
	const op = "DeleteDoctorAvailability"

	if err := checkID(op, doctorID, ident.KindDoctor); err != nil {
		return 0, err
	}
	d, err := parseDate(op, doctorID, date)
	if err != nil {
		return 0, err
	}
	var at *calendar.Clock
	if strings.TrimSpace(start) != "" {
		c, err := parseClock(op, doctorID, start)
		if err != nil {
			return 0, err
		}
		at = &c
	}

	var n int64
	err = e.run(ctx, op, doctorID, func(ctx context.Context) error {
		return e.tx.WithinTx(ctx, func(ctx context.Context) error {
			booked, err := e.slots.ListBooked(ctx, doctorID, d)
			if err != nil {
				return err
			}
			for i := range booked {
				if at != nil && booked[i].Start != *at {
					continue
				}
				if err := e.ensureUnclaimed(ctx, op, &booked[i]); err != nil {
					return err
				}
			}
			n, err = e.slots.DeleteAllForDoctorOnDate(ctx, doctorID, d, at)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// BookSlot marks a slot booked without an appointment. Booking an already
// booked slot changes nothing and reports changed=false.
func (e *Engine) BookSlot(ctx context.Context, slotID, date, start string) (bool, error) {
	const op = "BookSlot"

	ref, err := parseSlotRef(op, slotID, date, start)
	if err != nil {
		return false, err
	}

	var changed bool
	err = e.run(ctx, op, slotID, func(ctx context.Context) error {
		return e.slotLock(ctx, op, slotID, func(ctx context.Context) error {
			return e.tx.WithinTx(ctx, func(ctx context.Context) error {
				if _, err := e.lockSlotAt(ctx, op, ref); err != nil {
					return err
				}
				var err error
				changed, err = e.slots.MarkBooked(ctx, slotID, nil)
				return err
			})
		})
	})
	return changed, err
}

// FreeSlot releases a slot. Freeing a free slot changes nothing and reports
// changed=false. A slot held by a Scheduled appointment is refused; any other
// holder is detached from the slot so it cannot release it again later.
func (e *Engine) FreeSlot(ctx context.Context, slotID, date, start string) (bool, error) {
	const op = "FreeSlot"

	ref, err := parseSlotRef(op, slotID, date, start)
	if err != nil {
		return false, err
	}

	var changed bool
	err = e.run(ctx, op, slotID, func(ctx context.Context) error {
		return e.slotLock(ctx, op, slotID, func(ctx context.Context) error {
			return e.tx.WithinTx(ctx, func(ctx context.Context) error {
				slot, err := e.lockSlotAt(ctx, op, ref)
				if err != nil {
					return err
				}
				if err := e.ensureUnclaimed(ctx, op, slot); err != nil {
					return err
				}
				changed, err = e.slots.MarkFree(ctx, slotID, nil)
				if err != nil || !changed || slot.AppointmentID == nil {
					return err
				}
				return e.detachHolder(ctx, *slot.AppointmentID)
			})
		})
	})
	return changed, err
}

// slotLock maps lock contention on a slot to SlotUnavailable.
func (e *Engine) slotLock(ctx context.Context, op, slotID string, fn func(ctx context.Context) error) error {
	err := e.withLock(ctx, redisclient.SlotKey(slotID), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return newError(KindSlotUnavailable, op, slotID, err)
	}
	return err
}

// lockSlotAt loads the slot for update and checks it sits at the date and
// start the caller named.
func (e *Engine) lockSlotAt(ctx context.Context, op string, ref slotRef) (*availability.Slot, error) {
	slot, err := e.slots.GetForUpdate(ctx, ref.id)
	if err != nil {
		return nil, err
	}
	if !slot.Matches(ref.date, ref.start) {
		return nil, newError(KindNotFound, op, ref.id,
			fmt.Errorf("slot is not at %s %s: %w", calendar.FormatDate(ref.date), ref.start, availability.ErrSlotNotFound))
	}
	return slot, nil
}

// ensureUnclaimed fails when a Scheduled appointment holds slot.
func (e *Engine) ensureUnclaimed(ctx context.Context, op string, slot *availability.Slot) error {
	if slot.AppointmentID == nil {
		return nil
	}
	a, err := e.appointments.FetchOne(ctx, *slot.AppointmentID)
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if a.Active() {
		return newError(KindSlotUnavailable, op, slot.ID,
			fmt.Errorf("held by scheduled appointment %s", a.ID))
	}
	return nil
}

// detachHolder clears the slot reference of a finished appointment whose
// slot was just freed.
func (e *Engine) detachHolder(ctx context.Context, appointmentID string) error {
	_, err := e.appointments.Update(ctx, appointmentID, appointment.Changes{ClearSlot: true})
	if errors.Is(err, appointment.ErrAppointmentNotFound) {
		return nil
	}
	return err
}

func (e *Engine) ListFreeSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error) {
	return e.listSlotsOn(ctx, "ListFreeSlots", doctorID, date, e.slots.ListFree)
}

func (e *Engine) ListBookedSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error) {
	return e.listSlotsOn(ctx, "ListBookedSlots", doctorID, date, e.slots.ListBooked)
}

func (e *Engine) listSlotsOn(ctx context.Context, op, doctorID, date string,
	fetch func(ctx context.Context, doctorID string, date time.Time) ([]availability.Slot, error)) ([]availability.Slot, error) {
	if err := checkID(op, doctorID, ident.KindDoctor); err != nil {
		return nil, err
	}
	d, err := parseDate(op, doctorID, date)
	if err != nil {
		return nil, err
	}

	var out []availability.Slot
	err = e.run(ctx, op, doctorID, func(ctx context.Context) error {
		var err error
		out, err = fetch(ctx, doctorID, d)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []availability.Slot{}
	}
	return out, nil
}

// ListSlots pages through all of a doctor's slots, on one date when date is
// not empty.
func (e *Engine) ListSlots(ctx context.Context, doctorID, date string, limit, offset int) ([]availability.Slot, error) {
	const op = "ListSlots"

	if err := checkID(op, doctorID, ident.KindDoctor); err != nil {
		return nil, err
	}
	var on *time.Time
	if strings.TrimSpace(date) != "" {
		d, err := parseDate(op, doctorID, date)
		if err != nil {
			return nil, err
		}
		on = &d
	}
	limit, offset = clampPage(limit, offset)

	var out []availability.Slot
	err := e.run(ctx, op, doctorID, func(ctx context.Context) error {
		var err error
		out, err = e.slots.ListForDoctor(ctx, doctorID, on, limit, offset)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []availability.Slot{}
	}
	return out, nil
}

// ReconcileSlots frees booked slots whose appointment was deleted or
// cancelled outside the engine. It returns how many slots were freed.
func (e *Engine) ReconcileSlots(ctx context.Context) (int, error) {
	const op = "ReconcileSlots"

	var freed []availability.Slot
	err := e.run(ctx, op, "", func(ctx context.Context) error {
		orphans, err := e.slots.ListOrphanedClaims(ctx, reconcileBatch)
		if err != nil {
			return err
		}
		for _, s := range orphans {
			// The claim may have been freed and taken again since it was
			// listed; only the orphaned holder's claim is released.
			changed, err := e.slots.MarkFree(ctx, s.ID, s.AppointmentID)
			if errors.Is(err, availability.ErrSlotNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if changed {
				freed = append(freed, s)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, s := range freed {
		e.record(ctx, appointment.EventSlotFreed, deref(s.AppointmentID), map[string]any{
			"slot_id":   s.ID,
			"doctor_id": s.DoctorID,
			"date":      calendar.FormatDate(s.Date),
			"start":     s.Start.String(),
		})
	}
	if len(freed) > 0 {
		e.log.Info().Int("slots", len(freed)).Msg("orphaned slot claims freed")
	}
	e.metrics.SlotsReconciled(len(freed))
	return len(freed), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
