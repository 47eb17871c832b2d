package availability

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db/dbtest"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

var pgDay = time.Date(2031, time.March, 4, 0, 0, 0, 0, time.UTC)

// publish stores 09:00-11:00 in 30 minute slots for a fresh doctor.
func publish(t *testing.T, pool *pgxpool.Pool) (string, []Slot) {
	t.Helper()
	doctor := dbtest.Doctor(t, pool)
	w := Window{
		DoctorID:  doctor.ID,
		Date:      pgDay,
		DayOfWeek: pgDay.Weekday().String(),
		Start:     calendar.NewClock(9, 0),
		End:       calendar.NewClock(11, 0),
		Duration:  30 * time.Minute,
	}
	slots, err := NewPgStore(pool).Insert(context.Background(),
		slices.Collect(Allocate(w, func() string { return ident.Generate(ident.KindSlot) })))
	require.NoError(t, err)
	require.Len(t, slots, 4)
	return doctor.ID, slots
}

func TestPgInsertSkipsPublishedStarts(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	doctorID, slots := publish(t, pool)

	again := Window{
		DoctorID:  doctorID,
		Date:      pgDay,
		DayOfWeek: pgDay.Weekday().String(),
		Start:     calendar.NewClock(10, 0),
		End:       calendar.NewClock(11, 30),
		Duration:  30 * time.Minute,
	}
	created, err := store.Insert(ctx, slices.Collect(Allocate(again, func() string { return ident.Generate(ident.KindSlot) })))
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "11:00", created[0].Start.String())
	assert.True(t, created[0].Date.Equal(pgDay))
	assert.Equal(t, 30*time.Minute, created[0].Duration)

	// an existing id at a new start is a collision, not a skip
	dup := slots[0]
	dup.Start = calendar.NewClock(12, 0)
	_, err = store.Insert(ctx, []Slot{dup})
	assert.ErrorIs(t, err, ident.ErrIDCollision)
}

func TestPgMarkFreeOnlyReleasesHolder(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	_, slots := publish(t, pool)
	id := slots[0].ID

	holder := ident.Generate(ident.KindAppointment)
	changed, err := store.MarkBooked(ctx, id, &holder)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkBooked(ctx, id, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	other := ident.Generate(ident.KindAppointment)
	changed, err = store.MarkFree(ctx, id, &other)
	require.NoError(t, err)
	assert.False(t, changed)

	s, err := store.GetForUpdate(ctx, id)
	require.NoError(t, err)
	assert.True(t, s.Booked)
	assert.Equal(t, holder, *s.AppointmentID)

	changed, err = store.MarkFree(ctx, id, &holder)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = store.MarkFree(ctx, id, nil)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = store.MarkFree(ctx, ident.Generate(ident.KindSlot), nil)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestPgDeleteAllForDoctorOnDate(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	doctorID, _ := publish(t, pool)

	at := calendar.NewClock(9, 30)
	n, err := store.DeleteAllForDoctorOnDate(ctx, doctorID, pgDay, &at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.DeleteAllForDoctorOnDate(ctx, doctorID, pgDay.AddDate(0, 0, 1), nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = store.DeleteAllForDoctorOnDate(ctx, doctorID, pgDay, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	left, err := store.ListForDoctor(ctx, doctorID, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestPgListsByState(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	doctorID, slots := publish(t, pool)

	_, err := store.MarkBooked(ctx, slots[1].ID, nil)
	require.NoError(t, err)

	free, err := store.ListFree(ctx, doctorID, pgDay)
	require.NoError(t, err)
	assert.Len(t, free, 3)

	booked, err := store.ListBooked(ctx, doctorID, pgDay)
	require.NoError(t, err)
	require.Len(t, booked, 1)
	assert.Equal(t, slots[1].ID, booked[0].ID)

	page, err := store.ListForDoctor(ctx, doctorID, &pgDay, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "09:30", page[0].Start.String())

	found, err := store.FindForDoctorAt(ctx, doctorID, pgDay, calendar.NewClock(10, 30))
	require.NoError(t, err)
	assert.Equal(t, slots[3].ID, found.ID)
}

func TestPgListOrphanedClaims(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	appts := appointment.NewPgStore(pool)
	ctx := context.Background()
	doctorID, slots := publish(t, pool)
	patient := dbtest.Patient(t, pool)

	claim := func(s Slot, status appointment.Status) string {
		a := &appointment.Appointment{
			ID:        ident.Generate(ident.KindAppointment),
			PatientID: patient.ID,
			DoctorID:  doctorID,
			Date:      pgDay,
			Time:      s.Start,
			Status:    status,
			SlotID:    &s.ID,
		}
		require.NoError(t, appts.Insert(ctx, a))
		_, err := store.MarkBooked(ctx, s.ID, &a.ID)
		require.NoError(t, err)
		return a.ID
	}
	claim(slots[0], appointment.StatusScheduled)
	claim(slots[1], appointment.StatusCompleted)
	claim(slots[2], appointment.StatusCancelled)
	gone := claim(slots[3], appointment.StatusScheduled)
	require.NoError(t, appts.Delete(ctx, gone))

	orphans, err := store.ListOrphanedClaims(ctx, 10000)
	require.NoError(t, err)
	var ids []string
	for _, s := range orphans {
		if s.DoctorID == doctorID {
			ids = append(ids, s.ID)
		}
	}
	assert.ElementsMatch(t, []string{slots[2].ID, slots[3].ID}, ids)
}
