package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ident"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

type BookRequest struct {
	PatientID string
	DoctorID  string
	Date      string // DD/MM/YYYY
	Time      string // HH:MM
	Reason    string
	Status    string // defaults to Scheduled
}

// booking is a BookRequest after validation.
type booking struct {
	patientID string
	doctorID  string
	date      time.Time
	at        calendar.Clock
	reason    string
	status    appointment.Status
}

func parseBooking(op string, req BookRequest) (booking, error) {
	b := booking{
		patientID: strings.TrimSpace(req.PatientID),
		doctorID:  strings.TrimSpace(req.DoctorID),
		reason:    calendar.TitleCase(req.Reason),
	}

	if err := checkID(op, b.patientID, ident.KindPatient); err != nil {
		return booking{}, err
	}
	if err := checkID(op, b.doctorID, ident.KindDoctor); err != nil {
		return booking{}, err
	}

	var err error
	if b.date, err = parseDate(op, b.patientID, req.Date); err != nil {
		return booking{}, err
	}
	if b.at, err = parseClock(op, b.patientID, req.Time); err != nil {
		return booking{}, err
	}
	if b.status, err = parseStatus(op, b.patientID, req.Status); err != nil {
		return booking{}, err
	}
	return b, nil
}

// BookAppointment creates an appointment. A Scheduled booking claims the
// doctor's slot at the requested date and time in the same transaction as
// the insert; a patient holds at most one Scheduled appointment per date and
// time.
func (e *Engine) BookAppointment(ctx context.Context, req BookRequest) (*appointment.Appointment, error) {
	const op = "BookAppointment"

	b, err := parseBooking(op, req)
	if err != nil {
		return nil, err
	}

	var created *appointment.Appointment
	err = e.run(ctx, op, b.patientID, func(ctx context.Context) error {
		a, err := e.book(ctx, op, b)
		created = a
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("appointment_id", created.ID).
		Str("patient_id", created.PatientID).
		Str("doctor_id", created.DoctorID).
		Str("date", calendar.FormatDate(created.Date)).
		Str("time", created.Time.String()).
		Msg("appointment booked")

	e.record(ctx, appointment.EventBooked, created.ID, map[string]any{
		"patient_id": created.PatientID,
		"doctor_id":  created.DoctorID,
		"date":       calendar.FormatDate(created.Date),
		"time":       created.Time.String(),
		"status":     created.Status,
		"slot_id":    created.SlotID,
	})
	return created, nil
}

func (e *Engine) book(ctx context.Context, op string, b booking) (*appointment.Appointment, error) {
	var created *appointment.Appointment

	err := e.withLock(ctx, redisclient.BookingKey(b.patientID, b.date, b.at), func(ctx context.Context) error {
		return retryOnCollision(func() error {
			return e.tx.WithinTx(ctx, func(ctx context.Context) error {
				a, err := e.insertBooking(ctx, op, b)
				if err != nil {
					return err
				}
				created = a
				return nil
			})
		})
	})
	if err != nil {
		return nil, e.fail(op, b.patientID, err)
	}
	return created, nil
}

// insertBooking runs inside the booking transaction.
func (e *Engine) insertBooking(ctx context.Context, op string, b booking) (*appointment.Appointment, error) {
	if _, err := e.patients.FindByID(ctx, b.patientID); err != nil {
		return nil, e.fail(op, b.patientID, err)
	}
	if _, err := e.doctors.FindByID(ctx, b.doctorID); err != nil {
		return nil, e.fail(op, b.doctorID, err)
	}

	exists, err := e.appointments.ExistsForPatientAt(ctx, b.patientID, b.date, b.at)
	if err != nil {
		return nil, e.fail(op, b.patientID, err)
	}
	if exists {
		return nil, newError(KindDuplicateBooking, op, b.patientID, appointment.ErrDuplicateActive)
	}

	a := &appointment.Appointment{
		ID:        e.ids(ident.KindAppointment),
		PatientID: b.patientID,
		DoctorID:  b.doctorID,
		Date:      b.date,
		Time:      b.at,
		Reason:    b.reason,
		Status:    b.status,
	}

	if a.Active() {
		slot, err := e.claimSlot(ctx, op, a.ID, b.doctorID, b.date, b.at)
		if err != nil {
			return nil, err
		}
		a.SlotID = &slot.ID
	}

	if err := e.appointments.Insert(ctx, a); err != nil {
		if errors.Is(err, ident.ErrIDCollision) {
			return nil, err
		}
		return nil, e.fail(op, a.ID, err)
	}
	return a, nil
}

// claimSlot locks the doctor's slot at (date, at) and books it for
// appointmentID.
func (e *Engine) claimSlot(ctx context.Context, op, appointmentID, doctorID string, date time.Time, at calendar.Clock) (*availability.Slot, error) {
	slot, err := e.slots.FindForDoctorAt(ctx, doctorID, date, at)
	if err != nil {
		if errors.Is(err, availability.ErrSlotNotFound) {
			return nil, newError(KindNotFound, op, doctorID,
				fmt.Errorf("no availability at %s %s: %w", calendar.FormatDate(date), at, err))
		}
		return nil, e.fail(op, doctorID, err)
	}
	if slot.Booked {
		return nil, newError(KindSlotUnavailable, op, slot.ID, errors.New("slot already booked"))
	}

	changed, err := e.slots.MarkBooked(ctx, slot.ID, &appointmentID)
	if err != nil {
		return nil, e.fail(op, slot.ID, err)
	}
	if !changed {
		return nil, newError(KindSlotUnavailable, op, slot.ID, errors.New("slot already booked"))
	}

	slot.Booked = true
	slot.AppointmentID = &appointmentID
	return slot, nil
}

// releaseSlot frees the slot appointmentID held. A slot that no longer
// exists, or that another appointment has since claimed, is left alone.
func (e *Engine) releaseSlot(ctx context.Context, op, appointmentID string, slotID *string) error {
	if slotID == nil {
		return nil
	}
	if _, err := e.slots.MarkFree(ctx, *slotID, &appointmentID); err != nil && !errors.Is(err, availability.ErrSlotNotFound) {
		return e.fail(op, *slotID, err)
	}
	return nil
}

type ContactBookRequest struct {
	Contact string

	// Registration details, required only when no patient has Contact.
	Name       string
	Gender     string
	Age        string
	BloodGroup string

	DoctorID string
	Date     string
	Time     string
	Reason   string
}

type ContactBooking struct {
	Appointment *appointment.Appointment
	Patient     *registry.Patient
	Registered  bool
	// Credential is nil when issuance failed; the booking still stands.
	Credential *identity.Credential
	IssueError string
}

// BookByContact books for the patient with the given contact number,
// registering the patient first when none exists, then issues the patient a
// fresh credential.
func (e *Engine) BookByContact(ctx context.Context, req ContactBookRequest) (*ContactBooking, error) {
	const op = "BookByContact"

	contact := strings.TrimSpace(req.Contact)
	if contact == "" || strings.Trim(contact, "0123456789") != "" {
		return nil, newError(KindInvalidFormat, op, contact, errors.New("contact must be digits"))
	}
	// The booking shape is checked before any registration side effect.
	if err := checkID(op, strings.TrimSpace(req.DoctorID), ident.KindDoctor); err != nil {
		return nil, err
	}
	if _, err := parseDate(op, contact, req.Date); err != nil {
		return nil, err
	}
	if _, err := parseClock(op, contact, req.Time); err != nil {
		return nil, err
	}

	result := &ContactBooking{}
	err := e.run(ctx, op, contact, func(ctx context.Context) error {
		doctorID := strings.TrimSpace(req.DoctorID)
		if _, err := e.doctors.FindByID(ctx, doctorID); err != nil {
			return e.fail(op, doctorID, err)
		}

		p, registered, err := e.findOrRegister(ctx, op, contact, req)
		if err != nil {
			return err
		}
		result.Patient = p
		result.Registered = registered
		return nil
	})
	if err != nil {
		return nil, err
	}

	appt, err := e.BookAppointment(ctx, BookRequest{
		PatientID: result.Patient.ID,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
		Time:      req.Time,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, err
	}
	result.Appointment = appt

	cred, err := e.issuer.IssueForPatient(ctx, result.Patient.ID)
	if err != nil {
		e.log.Warn().Err(err).Str("patient_id", result.Patient.ID).Msg("credential issuance failed")
		result.IssueError = err.Error()
	} else {
		result.Credential = cred
	}
	return result, nil
}

func (e *Engine) findOrRegister(ctx context.Context, op, contact string, req ContactBookRequest) (*registry.Patient, bool, error) {
	p, err := e.patients.FindByContact(ctx, contact)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, registry.ErrPatientNotFound) {
		return nil, false, e.fail(op, contact, err)
	}

	np, err := registry.NewPatient(req.Name, req.Gender, req.Age, req.BloodGroup, contact)
	if err != nil {
		return nil, false, newError(KindInvalidFormat, op, contact, err)
	}

	err = retryOnCollision(func() error {
		np.ID = e.ids(ident.KindPatient)
		return e.patients.Insert(ctx, &np)
	})
	if errors.Is(err, registry.ErrContactTaken) {
		// registered concurrently
		p, err = e.patients.FindByContact(ctx, contact)
		if err != nil {
			return nil, false, e.fail(op, contact, err)
		}
		return p, false, nil
	}
	if err != nil {
		return nil, false, e.fail(op, contact, err)
	}

	e.log.Info().Str("patient_id", np.ID).Msg("patient registered")
	return &np, true, nil
}
