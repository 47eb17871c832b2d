package appointment

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type Appointment struct {
	ID        string
	PatientID string
	DoctorID  string
	Date      time.Time
	Time      calendar.Clock
	Reason    string
	Status    Status
	// SlotID is the availability slot held while the appointment is Scheduled.
	SlotID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the appointment still holds its time.
func (a Appointment) Active() bool {
	return a.Status == StatusScheduled
}

// Detail is an appointment joined with the names shown to clinic staff.
type Detail struct {
	Appointment
	PatientName          string
	PatientAge           int
	DoctorName           string
	DoctorSpecialization string
}

// Changes lists the columns a single Update writes. Nil fields are untouched.
type Changes struct {
	Date      *time.Time
	Time      *calendar.Clock
	Reason    *string
	DoctorID  *string
	Status    *Status
	SlotID    *string
	ClearSlot bool
}

func (c Changes) Empty() bool {
	return c.Date == nil && c.Time == nil && c.Reason == nil && c.DoctorID == nil &&
		c.Status == nil && c.SlotID == nil && !c.ClearSlot
}

const (
	EventBooked    = "APPOINTMENT_BOOKED"
	EventUpdated   = "APPOINTMENT_UPDATED"
	EventCancelled = "APPOINTMENT_CANCELLED"
	EventCompleted = "APPOINTMENT_COMPLETED"
	EventDeleted   = "APPOINTMENT_DELETED"
	EventSlotFreed = "SLOT_RECONCILED"
)

type Event struct {
	ID            int64
	EventType     string
	AppointmentID *string
	Payload       []byte
	CreatedAt     time.Time
}
