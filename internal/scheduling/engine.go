// Package scheduling books appointments against doctor availability. Every
// operation validates its input before touching a store, runs its writes in
// one transaction and reports failures as *Error.
package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/ident"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

// insertAttempts bounds retries after an identifier collision.
const insertAttempts = 3

// Transactor runs fn in one transaction; stores called with fn's ctx join it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deps struct {
	Appointments appointment.Store
	Slots        availability.Store
	Tx           Transactor
	Patients     registry.PatientRegistry
	Doctors      registry.DoctorRegistry
	Issuer       identity.Issuer
	// Locker is optional; without it bookings rely on the database alone.
	Locker redisclient.Locker
	// IDs defaults to ident.Generate.
	IDs          func(kind string) string
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	StoreTimeout time.Duration
	Now          func() time.Time
}

type Engine struct {
	appointments appointment.Store
	slots        availability.Store
	tx           Transactor
	patients     registry.PatientRegistry
	doctors      registry.DoctorRegistry
	issuer       identity.Issuer
	locker       redisclient.Locker
	ids          func(kind string) string
	log          zerolog.Logger
	metrics      *metrics.Metrics
	timeout      time.Duration
	now          func() time.Time
}

func NewEngine(d Deps) *Engine {
	e := &Engine{
		appointments: d.Appointments,
		slots:        d.Slots,
		tx:           d.Tx,
		patients:     d.Patients,
		doctors:      d.Doctors,
		issuer:       d.Issuer,
		locker:       d.Locker,
		ids:          d.IDs,
		log:          d.Logger.With().Str("component", "scheduling").Logger(),
		metrics:      d.Metrics,
		timeout:      d.StoreTimeout,
		now:          d.Now,
	}
	if e.ids == nil {
		e.ids = ident.Generate
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// run bounds one operation by the store timeout, classifies its error and
// records the outcome.
func (e *Engine) run(ctx context.Context, op, id string, fn func(ctx context.Context) error) error {
	start := time.Now()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	err := fn(ctx)

	outcome := "ok"
	if err != nil {
		err = e.fail(op, id, err)
		outcome = string(KindOf(err))
	}
	e.metrics.ObserveOperation(op, outcome, time.Since(start))
	return err
}

// withLock runs fn under key when a Locker is configured. When Redis is
// unreachable fn still runs; the row locks and unique index keep bookings
// consistent without it.
func (e *Engine) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if e.locker == nil {
		return fn(ctx)
	}
	err := e.locker.WithLock(ctx, key, fn)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		e.metrics.LockContended()
	case errors.Is(err, redisclient.ErrLockUnavailable):
		e.log.Warn().Err(err).Str("key", key).Msg("lock service unavailable, continuing without lock")
		e.metrics.LockUnavailable()
		return fn(ctx)
	}
	return err
}

// fail classifies err. Errors already tagged pass through; known store
// sentinels get their kind; anything else is logged as a store failure.
func (e *Engine) fail(op, id string, err error) error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}

	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired),
		errors.Is(err, appointment.ErrDuplicateActive):
		return newError(KindDuplicateBooking, op, id, err)
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, availability.ErrSlotNotFound),
		errors.Is(err, registry.ErrPatientNotFound),
		errors.Is(err, registry.ErrDoctorNotFound):
		return newError(KindNotFound, op, id, err)
	case errors.Is(err, appointment.ErrInvalidTransition):
		return newError(KindInvalidTransition, op, id, err)
	}

	e.log.Error().Err(err).Str("op", op).Str("id", id).Msg("store failure")
	return newError(KindStoreUnavailable, op, id, err)
}

// record appends an audit event. It runs after commit and never fails the
// operation.
func (e *Engine) record(ctx context.Context, eventType, appointmentID string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.log.Warn().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	ev := appointment.Event{
		EventType: eventType,
		Payload:   data,
		CreatedAt: e.now(),
	}
	if appointmentID != "" {
		ev.AppointmentID = &appointmentID
	}

	if err := e.appointments.InsertEvent(context.WithoutCancel(ctx), ev); err != nil {
		e.log.Warn().Err(err).Str("event", eventType).Str("appointment_id", appointmentID).Msg("insert event log")
	}
}

// retryOnCollision reruns fn when a generated identifier already exists.
func retryOnCollision(fn func() error) error {
	var err error
	for range insertAttempts {
		if err = fn(); !errors.Is(err, ident.ErrIDCollision) {
			return err
		}
	}
	return err
}
