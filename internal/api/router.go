package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/scheduling"
)

// Scheduler is the part of *scheduling.Engine the HTTP layer calls.
type Scheduler interface {
	BookAppointment(ctx context.Context, req scheduling.BookRequest) (*appointment.Appointment, error)
	BookByContact(ctx context.Context, req scheduling.ContactBookRequest) (*scheduling.ContactBooking, error)
	UpdateAppointment(ctx context.Context, id string, req scheduling.UpdateRequest) (*appointment.Appointment, error)
	CancelAppointment(ctx context.Context, id string) (*appointment.Appointment, error)
	CompleteAppointment(ctx context.Context, id string) (*appointment.Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	GetAppointment(ctx context.Context, id string) (*appointment.Detail, error)
	ListAppointmentsForPatient(ctx context.Context, patientID string) ([]appointment.Appointment, error)
	ListAppointmentsForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error)
	ListAppointmentsByDate(ctx context.Context, date string) ([]appointment.Appointment, error)
	ListAppointmentsByStatus(ctx context.Context, status string) ([]appointment.Appointment, error)
	ListAllAppointments(ctx context.Context, limit, offset int) ([]appointment.Appointment, error)
	CountAppointmentsByStatus(ctx context.Context) (map[appointment.Status]int, error)

	AddAvailability(ctx context.Context, req scheduling.AvailabilityRequest) ([]availability.Slot, error)
	DeleteAvailability(ctx context.Context, slotID string) error
	DeleteDoctorAvailability(ctx context.Context, doctorID, date, start string) (int64, error)
	BookSlot(ctx context.Context, slotID, date, start string) (bool, error)
	FreeSlot(ctx context.Context, slotID, date, start string) (bool, error)
	ListFreeSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error)
	ListBookedSlots(ctx context.Context, doctorID, date string) ([]availability.Slot, error)
	ListSlots(ctx context.Context, doctorID, date string, limit, offset int) ([]availability.Slot, error)
}

type RouterConfig struct {
	Scheduler Scheduler
	Health    *HealthHandler
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))
	r.Use(middleware.Recoverer)

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	svc := cfg.Scheduler

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(svc))
		r.Post("/by-contact", bookByContactHandler(svc))
		r.Get("/", listAppointmentsHandler(svc))
		r.Get("/stats", appointmentStatsHandler(svc))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getAppointmentHandler(svc))
			r.Patch("/", updateAppointmentHandler(svc))
			r.Delete("/", deleteAppointmentHandler(svc))
			r.Post("/cancel", cancelAppointmentHandler(svc))
			r.Post("/complete", completeAppointmentHandler(svc))
		})
	})

	r.Route("/doctors/{id}/availability", func(r chi.Router) {
		r.Post("/", addAvailabilityHandler(svc))
		r.Get("/", listSlotsHandler(svc))
		r.Delete("/", deleteDoctorAvailabilityHandler(svc))
	})

	r.Route("/slots/{id}", func(r chi.Router) {
		r.Delete("/", deleteSlotHandler(svc))
		r.Post("/book", bookSlotHandler(svc))
		r.Post("/free", freeSlotHandler(svc))
	})

	return r
}
