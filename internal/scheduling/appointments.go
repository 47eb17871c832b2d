package scheduling

import (
	"context"
	"errors"
	"strings"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// UpdateRequest holds the fields to change; nil fields are left alone.
type UpdateRequest struct {
	Date     *string
	Time     *string
	Reason   *string
	DoctorID *string
	Status   *string
}

// UpdateAppointment validates every supplied field, then applies them in
// one transaction. Moving a Scheduled appointment claims the slot at the new
// doctor, date and time and frees the old one; cancelling frees the slot.
func (e *Engine) UpdateAppointment(ctx context.Context, id string, req UpdateRequest) (*appointment.Appointment, error) {
	const op = "UpdateAppointment"

	if err := checkID(op, id, ident.KindAppointment); err != nil {
		return nil, err
	}

	var c appointment.Changes
	if req.Date != nil {
		d, err := parseDate(op, id, *req.Date)
		if err != nil {
			return nil, err
		}
		c.Date = &d
	}
	if req.Time != nil {
		t, err := parseClock(op, id, *req.Time)
		if err != nil {
			return nil, err
		}
		c.Time = &t
	}
	if req.Reason != nil {
		r := calendar.TitleCase(*req.Reason)
		c.Reason = &r
	}
	if req.DoctorID != nil {
		doc := strings.TrimSpace(*req.DoctorID)
		if err := checkID(op, doc, ident.KindDoctor); err != nil {
			return nil, err
		}
		c.DoctorID = &doc
	}
	if req.Status != nil {
		st, err := appointment.ParseStatus(*req.Status)
		if err != nil {
			return nil, newError(KindInvalidStatus, op, id, err)
		}
		c.Status = &st
	}

	var before, after *appointment.Appointment
	err := e.run(ctx, op, id, func(ctx context.Context) error {
		return e.tx.WithinTx(ctx, func(ctx context.Context) error {
			cur, err := e.appointments.FetchForUpdate(ctx, id)
			if err != nil {
				return e.fail(op, id, err)
			}
			before = cur

			updated, err := e.applyUpdate(ctx, op, cur, c)
			if err != nil {
				return err
			}
			after = updated
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.record(ctx, updateEvent(before, after), id, map[string]any{
		"from_status": before.Status,
		"to_status":   after.Status,
		"date":        calendar.FormatDate(after.Date),
		"time":        after.Time.String(),
		"doctor_id":   after.DoctorID,
	})
	return after, nil
}

func (e *Engine) applyUpdate(ctx context.Context, op string, cur *appointment.Appointment, c appointment.Changes) (*appointment.Appointment, error) {
	target := *cur
	if c.Date != nil {
		target.Date = *c.Date
	}
	if c.Time != nil {
		target.Time = *c.Time
	}
	if c.DoctorID != nil {
		target.DoctorID = *c.DoctorID
	}
	if c.Status != nil {
		target.Status = *c.Status
	}

	if err := appointment.CheckTransition(cur.Status, target.Status); err != nil {
		return nil, newError(KindInvalidTransition, op, cur.ID, err)
	}

	if c.DoctorID != nil && target.DoctorID != cur.DoctorID {
		if _, err := e.doctors.FindByID(ctx, target.DoctorID); err != nil {
			return nil, e.fail(op, target.DoctorID, err)
		}
	}

	moved := !target.Date.Equal(cur.Date) || target.Time != cur.Time || target.DoctorID != cur.DoctorID

	// A completed visit keeps the slot it took place in.
	if moved && target.Status == appointment.StatusCompleted {
		return nil, newError(KindInvalidTransition, op, cur.ID,
			errors.New("a completed appointment cannot be rescheduled"))
	}

	switch {
	case cur.Active() && target.Active() && moved:
		if !target.Date.Equal(cur.Date) || target.Time != cur.Time {
			exists, err := e.appointments.ExistsForPatientAt(ctx, cur.PatientID, target.Date, target.Time)
			if err != nil {
				return nil, e.fail(op, cur.ID, err)
			}
			if exists {
				return nil, newError(KindDuplicateBooking, op, cur.ID, appointment.ErrDuplicateActive)
			}
		}
		if err := e.releaseSlot(ctx, op, cur.ID, cur.SlotID); err != nil {
			return nil, err
		}
		slot, err := e.claimSlot(ctx, op, cur.ID, target.DoctorID, target.Date, target.Time)
		if err != nil {
			return nil, err
		}
		c.SlotID = &slot.ID

	case cur.Active() && target.Status == appointment.StatusCancelled:
		if err := e.releaseSlot(ctx, op, cur.ID, cur.SlotID); err != nil {
			return nil, err
		}
		c.ClearSlot = cur.SlotID != nil
	}

	updated, err := e.appointments.Update(ctx, cur.ID, c)
	if err != nil {
		return nil, e.fail(op, cur.ID, err)
	}
	return updated, nil
}

func updateEvent(before, after *appointment.Appointment) string {
	if before.Status != after.Status {
		switch after.Status {
		case appointment.StatusCancelled:
			return appointment.EventCancelled
		case appointment.StatusCompleted:
			return appointment.EventCompleted
		}
	}
	return appointment.EventUpdated
}

func (e *Engine) CancelAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	st := string(appointment.StatusCancelled)
	return e.UpdateAppointment(ctx, id, UpdateRequest{Status: &st})
}

// CompleteAppointment marks the visit done. The slot stays booked.
func (e *Engine) CompleteAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	st := string(appointment.StatusCompleted)
	return e.UpdateAppointment(ctx, id, UpdateRequest{Status: &st})
}

// DeleteAppointment removes the appointment outright and frees any slot it
// held. Use CancelAppointment to keep the record.
func (e *Engine) DeleteAppointment(ctx context.Context, id string) error {
	const op = "DeleteAppointment"

	if err := checkID(op, id, ident.KindAppointment); err != nil {
		return err
	}

	var deleted *appointment.Appointment
	err := e.run(ctx, op, id, func(ctx context.Context) error {
		return e.tx.WithinTx(ctx, func(ctx context.Context) error {
			a, err := e.appointments.FetchForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if err := e.releaseSlot(ctx, op, a.ID, a.SlotID); err != nil {
				return err
			}
			if err := e.appointments.Delete(ctx, id); err != nil {
				return err
			}
			deleted = a
			return nil
		})
	})
	if err != nil {
		return err
	}

	e.log.Info().Str("appointment_id", id).Msg("appointment deleted")
	e.record(ctx, appointment.EventDeleted, id, map[string]any{
		"patient_id": deleted.PatientID,
		"status":     deleted.Status,
	})
	return nil
}

func (e *Engine) GetAppointment(ctx context.Context, id string) (*appointment.Detail, error) {
	const op = "GetAppointment"

	if err := checkID(op, id, ident.KindAppointment); err != nil {
		return nil, err
	}

	var d *appointment.Detail
	err := e.run(ctx, op, id, func(ctx context.Context) error {
		var err error
		d, err = e.appointments.FetchDetail(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (e *Engine) ListAppointmentsForPatient(ctx context.Context, patientID string) ([]appointment.Appointment, error) {
	const op = "ListAppointmentsForPatient"

	if err := checkID(op, patientID, ident.KindPatient); err != nil {
		return nil, err
	}
	return e.list(ctx, op, patientID, func(ctx context.Context) ([]appointment.Appointment, error) {
		return e.appointments.FetchForPatient(ctx, patientID)
	})
}

func (e *Engine) ListAppointmentsForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	const op = "ListAppointmentsForDoctor"

	if err := checkID(op, doctorID, ident.KindDoctor); err != nil {
		return nil, err
	}
	return e.list(ctx, op, doctorID, func(ctx context.Context) ([]appointment.Appointment, error) {
		return e.appointments.FetchForDoctor(ctx, doctorID)
	})
}

func (e *Engine) ListAppointmentsByDate(ctx context.Context, date string) ([]appointment.Appointment, error) {
	const op = "ListAppointmentsByDate"

	d, err := parseDate(op, "", date)
	if err != nil {
		return nil, err
	}
	return e.list(ctx, op, "", func(ctx context.Context) ([]appointment.Appointment, error) {
		return e.appointments.FetchByDate(ctx, d)
	})
}

func (e *Engine) ListAppointmentsByStatus(ctx context.Context, status string) ([]appointment.Appointment, error) {
	const op = "ListAppointmentsByStatus"

	st, err := appointment.ParseStatus(status)
	if err != nil {
		return nil, newError(KindInvalidStatus, op, "", err)
	}
	return e.list(ctx, op, "", func(ctx context.Context) ([]appointment.Appointment, error) {
		return e.appointments.FetchByStatus(ctx, st)
	})
}

// ListAllAppointments pages through every appointment. limit defaults to 20
// and is capped at 100.
func (e *Engine) ListAllAppointments(ctx context.Context, limit, offset int) ([]appointment.Appointment, error) {
	limit, offset = clampPage(limit, offset)
	return e.list(ctx, "ListAllAppointments", "", func(ctx context.Context) ([]appointment.Appointment, error) {
		return e.appointments.FetchAll(ctx, limit, offset)
	})
}

func (e *Engine) CountAppointmentsByStatus(ctx context.Context) (map[appointment.Status]int, error) {
	const op = "CountAppointmentsByStatus"

	var counts map[appointment.Status]int
	err := e.run(ctx, op, "", func(ctx context.Context) error {
		var err error
		counts, err = e.appointments.CountByStatus(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (e *Engine) list(ctx context.Context, op, id string, fetch func(ctx context.Context) ([]appointment.Appointment, error)) ([]appointment.Appointment, error) {
	var out []appointment.Appointment
	err := e.run(ctx, op, id, func(ctx context.Context) error {
		var err error
		out, err = fetch(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []appointment.Appointment{}
	}
	return out, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
