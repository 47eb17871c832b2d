package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const slotCols = `id, doctor_id, available_date, day_of_week, start_time, duration_minutes, is_booked, appointment_id, created_at`

// Helpers

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s       Slot
		start   pgtype.Time
		minutes int32
	)

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.DayOfWeek,
		&start,
		&minutes,
		&s.Booked,
		&s.AppointmentID,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.Start = calendar.ClockFromMicroseconds(start.Microseconds)
	s.Duration = time.Duration(minutes) * time.Minute
	return &s, nil
}

func collectSlots(rows pgx.Rows, err error) ([]Slot, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func pgClock(c calendar.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Microseconds(), Valid: true}
}

func (r *PgStore) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// Interface methods

func (r *PgStore) exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM availability_slot WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (r *PgStore) GetForUpdate(ctx context.Context, id string) (*Slot, error) {
	return scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM availability_slot WHERE id = $1 FOR UPDATE`, id))
}

func (r *PgStore) FindForDoctorAt(ctx context.Context, doctorID string, date time.Time, start calendar.Clock) (*Slot, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+slotCols+`
		FROM availability_slot
		WHERE doctor_id = $1 AND available_date = $2 AND start_time = $3
		FOR UPDATE
	`, doctorID, date, pgClock(start))
	return scanSlot(row)
}

func (r *PgStore) Insert(ctx context.Context, slots []Slot) ([]Slot, error) {
	inserted := make([]Slot, 0, len(slots))
	for _, s := range slots {
		row := r.conn(ctx).QueryRow(ctx, `
			INSERT INTO availability_slot (id, doctor_id, available_date, day_of_week, start_time, duration_minutes, is_booked)
			VALUES ($1, $2, $3, $4, $5, $6, FALSE)
			ON CONFLICT (doctor_id, available_date, start_time) DO NOTHING
			RETURNING `+slotCols,
			s.ID, s.DoctorID, s.Date, s.DayOfWeek, pgClock(s.Start), int32(s.Duration/time.Minute))

		created, err := scanSlot(row)
		if errors.Is(err, ErrSlotNotFound) {
			// (doctor, date, start) already published
			continue
		}
		if err != nil {
			if db.IsUniqueViolation(err, "availability_slot_pkey") {
				return nil, fmt.Errorf("insert slot %s: %w", s.ID, ident.ErrIDCollision)
			}
			return nil, fmt.Errorf("insert slot %s: %w", s.ID, err)
		}
		inserted = append(inserted, *created)
	}
	return inserted, nil
}

func (r *PgStore) MarkBooked(ctx context.Context, id string, appointmentID *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot
		SET is_booked = TRUE,
		    appointment_id = $2
		WHERE id = $1
		  AND is_booked = FALSE
	`, id, appointmentID)
	if err != nil {
		return false, fmt.Errorf("mark slot booked: %w", err)
	}
	return r.changedOrMissing(ctx, id, tag.RowsAffected())
}

func (r *PgStore) MarkFree(ctx context.Context, id string, holder *string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE availability_slot
		SET is_booked = FALSE,
		    appointment_id = NULL
		WHERE id = $1
		  AND is_booked = TRUE
		  AND ($2::text IS NULL OR appointment_id = $2::text)
	`, id, holder)
	if err != nil {
		return false, fmt.Errorf("mark slot free: %w", err)
	}
	return r.changedOrMissing(ctx, id, tag.RowsAffected())
}

// changedOrMissing tells a no-op update on an existing row apart from a
// missing row.
func (r *PgStore) changedOrMissing(ctx context.Context, id string, affected int64) (bool, error) {
	if affected > 0 {
		return true, nil
	}
	ok, err := r.exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrSlotNotFound
	}
	return false, nil
}

func (r *PgStore) Delete(ctx context.Context, id string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM availability_slot WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (r *PgStore) DeleteAllForDoctorOnDate(ctx context.Context, doctorID string, date time.Time, start *calendar.Clock) (int64, error) {
	var startArg any
	if start != nil {
		startArg = pgClock(*start)
	}

	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM availability_slot
		WHERE doctor_id = $1
		  AND available_date = $2
		  AND ($3::time IS NULL OR start_time = $3::time)
	`, doctorID, date, startArg)
	if err != nil {
		return 0, fmt.Errorf("delete doctor slots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgStore) ListForDoctor(ctx context.Context, doctorID string, date *time.Time, limit, offset int) ([]Slot, error) {
	return collectSlots(r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+`
		FROM availability_slot
		WHERE doctor_id = $1
		  AND ($2::date IS NULL OR available_date = $2::date)
		ORDER BY available_date, start_time
		LIMIT $3 OFFSET $4
	`, doctorID, date, limit, offset))
}

func (r *PgStore) ListFree(ctx context.Context, doctorID string, date time.Time) ([]Slot, error) {
	return r.listByState(ctx, doctorID, date, false)
}

func (r *PgStore) ListBooked(ctx context.Context, doctorID string, date time.Time) ([]Slot, error) {
	return r.listByState(ctx, doctorID, date, true)
}

func (r *PgStore) listByState(ctx context.Context, doctorID string, date time.Time, booked bool) ([]Slot, error) {
	return collectSlots(r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+`
		FROM availability_slot
		WHERE doctor_id = $1
		  AND available_date = $2
		  AND is_booked = $3
		ORDER BY start_time
	`, doctorID, date, booked))
}

func (r *PgStore) ListOrphanedClaims(ctx context.Context, limit int) ([]Slot, error) {
	return collectSlots(r.conn(ctx).Query(ctx, `
		SELECT s.id, s.doctor_id, s.available_date, s.day_of_week, s.start_time,
		       s.duration_minutes, s.is_booked, s.appointment_id, s.created_at
		FROM availability_slot s
		LEFT JOIN appointment a ON a.id = s.appointment_id
		WHERE s.is_booked
		  AND s.appointment_id IS NOT NULL
		  AND (a.id IS NULL OR a.status = 'Cancelled')
		ORDER BY s.available_date, s.start_time
		LIMIT $1
	`, limit))
}
