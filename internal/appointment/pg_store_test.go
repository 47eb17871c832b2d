package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/db/dbtest"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

var pgDay = time.Date(2031, time.March, 4, 0, 0, 0, 0, time.UTC)

func newAppointment(patientID, doctorID string, at calendar.Clock) *Appointment {
	return &Appointment{
		ID:        ident.Generate(ident.KindAppointment),
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      pgDay,
		Time:      at,
		Reason:    "Checkup",
		Status:    StatusScheduled,
	}
}

func TestPgInsertMapsConstraints(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	patient := dbtest.Patient(t, pool)
	doctor := dbtest.Doctor(t, pool)

	first := newAppointment(patient.ID, doctor.ID, calendar.NewClock(9, 0))
	require.NoError(t, store.Insert(ctx, first))
	assert.False(t, first.CreatedAt.IsZero())

	dup := newAppointment(patient.ID, doctor.ID, calendar.NewClock(9, 0))
	assert.ErrorIs(t, store.Insert(ctx, dup), ErrDuplicateActive)

	exists, err := store.ExistsForPatientAt(ctx, patient.ID, pgDay, calendar.NewClock(9, 0))
	require.NoError(t, err)
	assert.True(t, exists)

	sameID := newAppointment(patient.ID, doctor.ID, calendar.NewClock(10, 0))
	sameID.ID = first.ID
	assert.ErrorIs(t, store.Insert(ctx, sameID), ident.ErrIDCollision)

	// only Scheduled rows take part in the unique index
	cancelled := StatusCancelled
	_, err = store.Update(ctx, first.ID, Changes{Status: &cancelled})
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, dup))

	exists, err = store.ExistsForPatientAt(ctx, patient.ID, pgDay, calendar.NewClock(10, 0))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPgUpdateWritesOnlySetFields(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	patient := dbtest.Patient(t, pool)
	doctor := dbtest.Doctor(t, pool)

	slotID := ident.Generate(ident.KindSlot)
	a := newAppointment(patient.ID, doctor.ID, calendar.NewClock(9, 0))
	a.SlotID = &slotID
	require.NoError(t, store.Insert(ctx, a))

	at := calendar.NewClock(11, 30)
	reason := "Follow Up"
	updated, err := store.Update(ctx, a.ID, Changes{Time: &at, Reason: &reason})
	require.NoError(t, err)
	assert.Equal(t, "11:30", updated.Time.String())
	assert.Equal(t, "Follow Up", updated.Reason)
	assert.True(t, updated.Date.Equal(pgDay))
	assert.Equal(t, slotID, *updated.SlotID)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	updated, err = store.Update(ctx, a.ID, Changes{ClearSlot: true})
	require.NoError(t, err)
	assert.Nil(t, updated.SlotID)

	_, err = store.Update(ctx, ident.Generate(ident.KindAppointment), Changes{Reason: &reason})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	// moving onto another of the patient's active bookings
	other := newAppointment(patient.ID, doctor.ID, calendar.NewClock(9, 0))
	require.NoError(t, store.Insert(ctx, other))
	_, err = store.Update(ctx, other.ID, Changes{Time: &at})
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestPgFetchDetailAndListings(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	patient := dbtest.Patient(t, pool)
	doctor := dbtest.Doctor(t, pool)

	late := newAppointment(patient.ID, doctor.ID, calendar.NewClock(15, 0))
	early := newAppointment(patient.ID, doctor.ID, calendar.NewClock(8, 30))
	require.NoError(t, store.Insert(ctx, late))
	require.NoError(t, store.Insert(ctx, early))

	d, err := store.FetchDetail(ctx, early.ID)
	require.NoError(t, err)
	assert.Equal(t, patient.Name, d.PatientName)
	assert.Equal(t, patient.Age, d.PatientAge)
	assert.Equal(t, doctor.Name, d.DoctorName)
	assert.Equal(t, "08:30", d.Time.String())

	mine, err := store.FetchForPatient(ctx, patient.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, early.ID, mine[0].ID)

	theirs, err := store.FetchForDoctor(ctx, doctor.ID)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, counts[StatusScheduled], 2)
	assert.Contains(t, counts, StatusCancelled)
}

func TestPgFetchForUpdateJoinsTransaction(t *testing.T) {
	pool := dbtest.Open(t)
	store := NewPgStore(pool)
	ctx := context.Background()
	patient := dbtest.Patient(t, pool)
	doctor := dbtest.Doctor(t, pool)

	a := newAppointment(patient.ID, doctor.ID, calendar.NewClock(9, 0))
	require.NoError(t, store.Insert(ctx, a))

	errRollback := assert.AnError
	err := db.NewTransactor(pool).WithinTx(ctx, func(ctx context.Context) error {
		locked, err := store.FetchForUpdate(ctx, a.ID)
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, locked.ID))
		return errRollback
	})
	assert.ErrorIs(t, err, errRollback)

	// the delete was rolled back with the transaction
	_, err = store.FetchOne(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, store.InsertEvent(ctx, Event{
		EventType:     EventDeleted,
		AppointmentID: &a.ID,
		Payload:       []byte(`{"reason":"test"}`),
		CreatedAt:     time.Now(),
	}))
	require.NoError(t, store.Delete(ctx, a.ID))
	assert.ErrorIs(t, store.Delete(ctx, a.ID), ErrAppointmentNotFound)
}
