package api

import (
	"time"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Reason    string `json:"reason"`
	Status    string `json:"status,omitempty"`
}

type ContactBookingRequest struct {
	Contact    string `json:"contact"`
	Name       string `json:"name,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Age        string `json:"age,omitempty"`
	BloodGroup string `json:"blood_group,omitempty"`
	DoctorID   string `json:"doctor_id"`
	Date       string `json:"date"`
	Time       string `json:"time"`
	Reason     string `json:"reason"`
}

type UpdateAppointmentRequest struct {
	Date     *string `json:"date,omitempty"`
	Time     *string `json:"time,omitempty"`
	Reason   *string `json:"reason,omitempty"`
	DoctorID *string `json:"doctor_id,omitempty"`
	Status   *string `json:"status,omitempty"`
}

type AvailabilityRequest struct {
	Date            string `json:"date"`
	DayOfWeek       string `json:"day_of_week"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
}

type SlotActionRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
}

type AppointmentResponse struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Date      string    `json:"date"`
	Time      string    `json:"time"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	SlotID    *string   `json:"slot_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName          string `json:"patient_name"`
	PatientAge           int    `json:"patient_age"`
	DoctorName           string `json:"doctor_name"`
	DoctorSpecialization string `json:"doctor_specialization"`
}

type ContactBookingResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	PatientID   string              `json:"patient_id"`
	Registered  bool                `json:"registered"`
	Credential  *string             `json:"credential_token,omitempty"`
	IssueError  string              `json:"issue_error,omitempty"`
}

type SlotResponse struct {
	ID              string  `json:"id"`
	DoctorID        string  `json:"doctor_id"`
	Date            string  `json:"date"`
	DayOfWeek       string  `json:"day_of_week"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes int     `json:"duration_minutes"`
	Booked          bool    `json:"booked"`
	AppointmentID   *string `json:"appointment_id,omitempty"`
}

type SlotChangeResponse struct {
	SlotID  string `json:"slot_id"`
	Changed bool   `json:"changed"`
}

type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Date:      calendar.FormatDate(a.Date),
		Time:      a.Time.String(),
		Reason:    a.Reason,
		Status:    string(a.Status),
		SlotID:    a.SlotID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func toAppointmentResponses(in []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(in))
	for i, a := range in {
		out[i] = toAppointmentResponse(a)
	}
	return out
}

func toSlotResponses(in []availability.Slot) []SlotResponse {
	out := make([]SlotResponse, len(in))
	for i, s := range in {
		out[i] = SlotResponse{
			ID:              s.ID,
			DoctorID:        s.DoctorID,
			Date:            calendar.FormatDate(s.Date),
			DayOfWeek:       s.DayOfWeek,
			Start:           s.Start.String(),
			End:             s.End().String(),
			DurationMinutes: int(s.Duration / time.Minute),
			Booked:          s.Booked,
			AppointmentID:   s.AppointmentID,
		}
	}
	return out
}
