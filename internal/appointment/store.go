package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrDuplicateActive is the unique violation on the patient's active
	// (date, time) booking.
	ErrDuplicateActive = errors.New("patient already has a scheduled appointment at this time")
)

// Store contains all appointment persistence needed by the scheduler.
type Store interface {
	// ExistsForPatientAt only considers Scheduled appointments.
	ExistsForPatientAt(ctx context.Context, patientID string, date time.Time, at calendar.Clock) (bool, error)

	Insert(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, c Changes) (*Appointment, error)

	FetchOne(ctx context.Context, id string) (*Appointment, error)
	// FetchForUpdate locks the row for the surrounding transaction.
	FetchForUpdate(ctx context.Context, id string) (*Appointment, error)
	FetchDetail(ctx context.Context, id string) (*Detail, error)
	FetchForPatient(ctx context.Context, patientID string) ([]Appointment, error)
	FetchForDoctor(ctx context.Context, doctorID string) ([]Appointment, error)
	FetchAll(ctx context.Context, limit, offset int) ([]Appointment, error)
	FetchByDate(ctx context.Context, date time.Time) ([]Appointment, error)
	FetchByStatus(ctx context.Context, status Status) ([]Appointment, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)

	InsertEvent(ctx context.Context, ev Event) error
}
