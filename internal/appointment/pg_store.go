package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

const (
	activeUniq = "appointment_patient_active_uniq"
	primaryKey = "appointment_pkey"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const apptCols = `id, patient_id, doctor_id, appointment_date, appointment_time, reason, status, slot_id, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a  Appointment
		at pgtype.Time
	)

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&at,
		&a.Reason,
		&a.Status,
		&a.SlotID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Time = calendar.ClockFromMicroseconds(at.Microseconds)
	return &a, nil
}

func collectAppointments(rows pgx.Rows, err error) ([]Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func pgClock(c calendar.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Microseconds(), Valid: true}
}

// mapWriteErr translates constraint violations raised by INSERT and UPDATE.
func mapWriteErr(err error) error {
	switch {
	case db.IsUniqueViolation(err, activeUniq):
		return ErrDuplicateActive
	case db.IsUniqueViolation(err, primaryKey):
		return ident.ErrIDCollision
	}
	return err
}

func (r *PgStore) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// Interface methods

func (r *PgStore) ExistsForPatientAt(ctx context.Context, patientID string, date time.Time, at calendar.Clock) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointment
			WHERE patient_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status = 'Scheduled'
		)
	`, patientID, date, pgClock(at)).Scan(&ok)
	return ok, err
}

func (r *PgStore) Insert(ctx context.Context, a *Appointment) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (id, patient_id, doctor_id, appointment_date, appointment_time, reason, status, slot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, a.ID, a.PatientID, a.DoctorID, a.Date, pgClock(a.Time), a.Reason, a.Status, a.SlotID)

	if err := row.Scan(&a.CreatedAt, &a.UpdatedAt); err != nil {
		return fmt.Errorf("insert appointment: %w", mapWriteErr(err))
	}
	return nil
}

func (r *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Update writes every set field of c in one statement.
func (r *PgStore) Update(ctx context.Context, id string, c Changes) (*Appointment, error) {
	if c.Empty() {
		return r.FetchOne(ctx, id)
	}

	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if c.Date != nil {
		set("appointment_date", *c.Date)
	}
	if c.Time != nil {
		set("appointment_time", pgClock(*c.Time))
	}
	if c.Reason != nil {
		set("reason", *c.Reason)
	}
	if c.DoctorID != nil {
		set("doctor_id", *c.DoctorID)
	}
	if c.Status != nil {
		set("status", string(*c.Status))
	}
	switch {
	case c.ClearSlot:
		sets = append(sets, "slot_id = NULL")
	case c.SlotID != nil:
		set("slot_id", *c.SlotID)
	}

	query := `UPDATE appointment SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + apptCols
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update appointment: %w", mapWriteErr(err))
	}
	return a, nil
}

func (r *PgStore) FetchOne(ctx context.Context, id string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1`, id))
}

func (r *PgStore) FetchForUpdate(ctx context.Context, id string) (*Appointment, error) {
	return scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointment WHERE id = $1 FOR UPDATE`, id))
}

func (r *PgStore) FetchDetail(ctx context.Context, id string) (*Detail, error) {
	var (
		d  Detail
		at pgtype.Time
	)

	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time,
			a.reason, a.status, a.slot_id, a.created_at, a.updated_at,
			p.name, p.age, d.name, d.specialization
		FROM appointment a
		JOIN patient p ON p.id = a.patient_id
		JOIN doctor d  ON d.id = a.doctor_id
		WHERE a.id = $1
	`, id).Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.Date,
		&at,
		&d.Reason,
		&d.Status,
		&d.SlotID,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.PatientName,
		&d.PatientAge,
		&d.DoctorName,
		&d.DoctorSpecialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("fetch appointment detail: %w", err)
	}

	d.Time = calendar.ClockFromMicroseconds(at.Microseconds)
	return &d, nil
}

func (r *PgStore) FetchForPatient(ctx context.Context, patientID string) ([]Appointment, error) {
	return collectAppointments(r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`
		FROM appointment
		WHERE patient_id = $1
		ORDER BY appointment_date, appointment_time
	`, patientID))
}

func (r *PgStore) FetchForDoctor(ctx context.Context, doctorID string) ([]Appointment, error) {
	return collectAppointments(r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`
		FROM appointment
		WHERE doctor_id = $1
		ORDER BY appointment_date, appointment_time
	`, doctorID))
}

func (r *PgStore) FetchAll(ctx context.Context, limit, offset int) ([]Appointment, error) {
	return collectAppointments(r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`
		FROM appointment
		ORDER BY appointment_date, appointment_time, id
		LIMIT $1 OFFSET $2
	`, limit, offset))
}

func (r *PgStore) FetchByDate(ctx context.Context, date time.Time) ([]Appointment, error) {
	return collectAppointments(r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`
		FROM appointment
		WHERE appointment_date = $1
		ORDER BY appointment_time, doctor_id
	`, date))
}

func (r *PgStore) FetchByStatus(ctx context.Context, status Status) ([]Appointment, error) {
	return collectAppointments(r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+`
		FROM appointment
		WHERE status = $1
		ORDER BY appointment_date, appointment_time
	`, string(status)))
}

func (r *PgStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT status, COUNT(*) FROM appointment GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{
		StatusScheduled: 0,
		StatusCompleted: 0,
		StatusCancelled: 0,
	}
	for rows.Next() {
		var (
			st Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (r *PgStore) InsertEvent(ctx context.Context, ev Event) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_event (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, ev.EventType, ev.AppointmentID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
