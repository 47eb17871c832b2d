package availability

import (
	"context"
	"errors"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var ErrSlotNotFound = errors.New("slot not found")

// Store owns persisted slots and their booked state. Mutations report
// ErrSlotNotFound distinctly from other failures. MarkBooked and MarkFree are
// compare-and-set on the single row and return changed=false when the slot
// is already in the requested state.
type Store interface {
	// GetForUpdate and FindForDoctorAt lock the row for the surrounding transaction.
	GetForUpdate(ctx context.Context, id string) (*Slot, error)
	FindForDoctorAt(ctx context.Context, doctorID string, date time.Time, start calendar.Clock) (*Slot, error)

	// Insert skips slots that collide with an existing (doctor, date, start)
	// and returns the ones actually stored.
	Insert(ctx context.Context, slots []Slot) ([]Slot, error)
	MarkBooked(ctx context.Context, id string, appointmentID *string) (bool, error)
	// MarkFree with a non-nil holder only frees the slot while that
	// appointment still holds it; otherwise it reports changed=false.
	MarkFree(ctx context.Context, id string, holder *string) (bool, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForDoctorOnDate(ctx context.Context, doctorID string, date time.Time, start *calendar.Clock) (int64, error)

	ListForDoctor(ctx context.Context, doctorID string, date *time.Time, limit, offset int) ([]Slot, error)
	ListFree(ctx context.Context, doctorID string, date time.Time) ([]Slot, error)
	ListBooked(ctx context.Context, doctorID string, date time.Time) ([]Slot, error)

	// ListOrphanedClaims returns booked slots whose claiming appointment is
	// gone or cancelled.
	ListOrphanedClaims(ctx context.Context, limit int) ([]Slot, error)
}
