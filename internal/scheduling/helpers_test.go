package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

const (
	patientID      = "PATI00000000001"
	otherPatientID = "PATI00000000002"
	doctorID       = "DOCT00000000001"
	otherDoctorID  = "DOCT00000000002"
	day            = "01/01/2030" // a Tuesday
)

type testEnv struct {
	engine *Engine
	db     *memDB
	issuer *memIssuer
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) testEnv {
	t.Helper()

	db := newMemDB()
	db.patients[patientID] = registry.Patient{ID: patientID, Name: "Asha Rao", Gender: "Female", Age: 41, BloodGroup: "O+", Contact: "9000000001"}
	db.patients[otherPatientID] = registry.Patient{ID: otherPatientID, Name: "Ravi Kumar", Gender: "Male", Age: 29, BloodGroup: "B+", Contact: "9000000002"}
	db.doctors[doctorID] = registry.Doctor{ID: doctorID, Name: "Meera Shah", Specialization: "Cardiology"}
	db.doctors[otherDoctorID] = registry.Doctor{ID: otherDoctorID, Name: "Anil Verma", Specialization: "Dermatology"}

	issuer := &memIssuer{}
	deps := Deps{
		Appointments: memAppointments{db},
		Slots:        memSlots{db},
		Tx:           db,
		Patients:     memPatients{db},
		Doctors:      memDoctors{db},
		Issuer:       issuer,
		Logger:       zerolog.Nop(),
		Metrics:      metrics.New(),
		StoreTimeout: time.Second,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return testEnv{engine: NewEngine(deps), db: db, issuer: issuer}
}

// morning publishes 09:00-11:00 in 30 minute slots for doctor on day.
func (env testEnv) morning(t *testing.T, doctor string) []availability.Slot {
	t.Helper()
	slots, err := env.engine.AddAvailability(context.Background(), AvailabilityRequest{
		DoctorID:        doctor,
		Date:            day,
		DayOfWeek:       "Tuesday",
		Start:           "09:00",
		End:             "11:00",
		DurationMinutes: 30,
	})
	require.NoError(t, err)
	require.Len(t, slots, 4)
	return slots
}

func (env testEnv) book(patient, at string) (*appointment.Appointment, error) {
	return env.engine.BookAppointment(context.Background(), BookRequest{
		PatientID: patient,
		DoctorID:  doctorID,
		Date:      day,
		Time:      at,
		Reason:    "checkup",
	})
}

func slotAt(slots []availability.Slot, start string) availability.Slot {
	for _, s := range slots {
		if s.Start.String() == start {
			return s
		}
	}
	return availability.Slot{}
}

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, KindOf(err), "error: %v", err)
	assert.ErrorIs(t, err, sentinels[kind])
}

func ptr[T any](v T) *T { return &v }
