package scheduling

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/calendar"
	"github.com/hackgods/clinic-scheduling/internal/ident"
	"github.com/hackgods/clinic-scheduling/internal/identity"
	"github.com/hackgods/clinic-scheduling/internal/registry"
)

// memDB is an in-memory stand-in for Postgres. Transactions are serialized
// and rolled back by restoring a snapshot.
type memDB struct {
	mu       sync.Mutex
	appts    map[string]appointment.Appointment
	slots    map[string]availability.Slot
	patients map[string]registry.Patient
	doctors  map[string]registry.Doctor
	events   []appointment.Event
	failures map[string]error

	// afterOrphanScan runs once ListOrphanedClaims has released the store.
	afterOrphanScan func()
}

func newMemDB() *memDB {
	return &memDB{
		appts:    map[string]appointment.Appointment{},
		slots:    map[string]availability.Slot{},
		patients: map[string]registry.Patient{},
		doctors:  map[string]registry.Doctor{},
		failures: map[string]error{},
	}
}

type memTxKey struct{}

func (db *memDB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	appts, slots := maps.Clone(db.appts), maps.Clone(db.slots)
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		db.appts, db.slots = appts, slots
		return err
	}
	return nil
}

// lock takes the mutex unless ctx already runs inside a transaction.
func (db *memDB) lock(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

func (db *memDB) failing(method string) error {
	return db.failures[method]
}

func (db *memDB) failOn(method string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failures[method] = err
}

// Snapshot accessors for assertions.

func (db *memDB) slot(id string) availability.Slot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.slots[id]
}

func (db *memDB) appointment(id string) (appointment.Appointment, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a, ok := db.appts[id]
	return a, ok
}

func (db *memDB) appointmentCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.appts)
}

func (db *memDB) eventTypes() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, len(db.events))
	for i, ev := range db.events {
		out[i] = ev.EventType
	}
	return out
}

// appointment.Store

type memAppointments struct{ db *memDB }

func (s memAppointments) ExistsForPatientAt(ctx context.Context, patientID string, date time.Time, at calendar.Clock) (bool, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("ExistsForPatientAt"); err != nil {
		return false, err
	}
	for _, a := range s.db.appts {
		if a.PatientID == patientID && a.Date.Equal(date) && a.Time == at && a.Active() {
			return true, nil
		}
	}
	return false, nil
}

// activeClash mirrors the partial unique index on Scheduled appointments.
func (s memAppointments) activeClash(a appointment.Appointment) bool {
	if !a.Active() {
		return false
	}
	for _, o := range s.db.appts {
		if o.ID != a.ID && o.Active() && o.PatientID == a.PatientID && o.Date.Equal(a.Date) && o.Time == a.Time {
			return true
		}
	}
	return false
}

func (s memAppointments) Insert(ctx context.Context, a *appointment.Appointment) error {
	defer s.db.lock(ctx)()
	if err := s.db.failing("Insert"); err != nil {
		return err
	}
	if _, ok := s.db.appts[a.ID]; ok {
		return ident.ErrIDCollision
	}
	if s.activeClash(*a) {
		return appointment.ErrDuplicateActive
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	s.db.appts[a.ID] = *a
	return nil
}

func (s memAppointments) Delete(ctx context.Context, id string) error {
	defer s.db.lock(ctx)()
	if _, ok := s.db.appts[id]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	delete(s.db.appts, id)
	return nil
}

func (s memAppointments) Update(ctx context.Context, id string, c appointment.Changes) (*appointment.Appointment, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("Update"); err != nil {
		return nil, err
	}
	a, ok := s.db.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	if c.Date != nil {
		a.Date = *c.Date
	}
	if c.Time != nil {
		a.Time = *c.Time
	}
	if c.Reason != nil {
		a.Reason = *c.Reason
	}
	if c.DoctorID != nil {
		a.DoctorID = *c.DoctorID
	}
	if c.Status != nil {
		a.Status = *c.Status
	}
	if c.ClearSlot {
		a.SlotID = nil
	} else if c.SlotID != nil {
		v := *c.SlotID
		a.SlotID = &v
	}
	if s.activeClash(a) {
		return nil, appointment.ErrDuplicateActive
	}
	a.UpdatedAt = time.Now()
	s.db.appts[id] = a
	return &a, nil
}

func (s memAppointments) FetchOne(ctx context.Context, id string) (*appointment.Appointment, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("FetchOne"); err != nil {
		return nil, err
	}
	a, ok := s.db.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (s memAppointments) FetchForUpdate(ctx context.Context, id string) (*appointment.Appointment, error) {
	return s.FetchOne(ctx, id)
}

func (s memAppointments) FetchDetail(ctx context.Context, id string) (*appointment.Detail, error) {
	defer s.db.lock(ctx)()
	a, ok := s.db.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	p := s.db.patients[a.PatientID]
	d := s.db.doctors[a.DoctorID]
	return &appointment.Detail{
		Appointment:          a,
		PatientName:          p.Name,
		PatientAge:           p.Age,
		DoctorName:           d.Name,
		DoctorSpecialization: d.Specialization,
	}, nil
}

func (s memAppointments) filter(ctx context.Context, keep func(appointment.Appointment) bool) ([]appointment.Appointment, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("Fetch"); err != nil {
		return nil, err
	}
	var out []appointment.Appointment
	for _, a := range s.db.appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s memAppointments) FetchForPatient(ctx context.Context, patientID string) ([]appointment.Appointment, error) {
	return s.filter(ctx, func(a appointment.Appointment) bool { return a.PatientID == patientID })
}

func (s memAppointments) FetchForDoctor(ctx context.Context, doctorID string) ([]appointment.Appointment, error) {
	return s.filter(ctx, func(a appointment.Appointment) bool { return a.DoctorID == doctorID })
}

func (s memAppointments) FetchAll(ctx context.Context, limit, offset int) ([]appointment.Appointment, error) {
	all, err := s.filter(ctx, func(appointment.Appointment) bool { return true })
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (s memAppointments) FetchByDate(ctx context.Context, date time.Time) ([]appointment.Appointment, error) {
	return s.filter(ctx, func(a appointment.Appointment) bool { return a.Date.Equal(date) })
}

func (s memAppointments) FetchByStatus(ctx context.Context, status appointment.Status) ([]appointment.Appointment, error) {
	return s.filter(ctx, func(a appointment.Appointment) bool { return a.Status == status })
}

func (s memAppointments) CountByStatus(ctx context.Context) (map[appointment.Status]int, error) {
	defer s.db.lock(ctx)()
	counts := map[appointment.Status]int{
		appointment.StatusScheduled: 0,
		appointment.StatusCompleted: 0,
		appointment.StatusCancelled: 0,
	}
	for _, a := range s.db.appts {
		counts[a.Status]++
	}
	return counts, nil
}

func (s memAppointments) InsertEvent(ctx context.Context, ev appointment.Event) error {
	defer s.db.lock(ctx)()
	if err := s.db.failing("InsertEvent"); err != nil {
		return err
	}
	ev.ID = int64(len(s.db.events) + 1)
	s.db.events = append(s.db.events, ev)
	return nil
}

// availability.Store

type memSlots struct{ db *memDB }

func (s memSlots) get(ctx context.Context, id string) (*availability.Slot, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("GetSlot"); err != nil {
		return nil, err
	}
	sl, ok := s.db.slots[id]
	if !ok {
		return nil, availability.ErrSlotNotFound
	}
	return &sl, nil
}

func (s memSlots) GetForUpdate(ctx context.Context, id string) (*availability.Slot, error) {
	return s.get(ctx, id)
}

func (s memSlots) FindForDoctorAt(ctx context.Context, doctorID string, date time.Time, start calendar.Clock) (*availability.Slot, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("FindForDoctorAt"); err != nil {
		return nil, err
	}
	for _, sl := range s.db.slots {
		if sl.DoctorID == doctorID && sl.Matches(date, start) {
			return &sl, nil
		}
	}
	return nil, availability.ErrSlotNotFound
}

func (s memSlots) Insert(ctx context.Context, slots []availability.Slot) ([]availability.Slot, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("InsertSlots"); err != nil {
		return nil, err
	}
	inserted := []availability.Slot{}
	for _, sl := range slots {
		if _, ok := s.db.slots[sl.ID]; ok {
			return nil, ident.ErrIDCollision
		}
		taken := false
		for _, o := range s.db.slots {
			if o.DoctorID == sl.DoctorID && o.Matches(sl.Date, sl.Start) {
				taken = true
				break
			}
		}
		if taken {
			continue
		}
		sl.CreatedAt = time.Now()
		s.db.slots[sl.ID] = sl
		inserted = append(inserted, sl)
	}
	return inserted, nil
}

func (s memSlots) MarkBooked(ctx context.Context, id string, appointmentID *string) (bool, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("MarkBooked"); err != nil {
		return false, err
	}
	sl, ok := s.db.slots[id]
	if !ok {
		return false, availability.ErrSlotNotFound
	}
	if sl.Booked {
		return false, nil
	}
	sl.Booked = true
	if appointmentID != nil {
		v := *appointmentID
		sl.AppointmentID = &v
	}
	s.db.slots[id] = sl
	return true, nil
}

func (s memSlots) MarkFree(ctx context.Context, id string, holder *string) (bool, error) {
	defer s.db.lock(ctx)()
	if err := s.db.failing("MarkFree"); err != nil {
		return false, err
	}
	sl, ok := s.db.slots[id]
	if !ok {
		return false, availability.ErrSlotNotFound
	}
	if !sl.Booked {
		return false, nil
	}
	if holder != nil && (sl.AppointmentID == nil || *sl.AppointmentID != *holder) {
		return false, nil
	}
	sl.Booked = false
	sl.AppointmentID = nil
	s.db.slots[id] = sl
	return true, nil
}

func (s memSlots) Delete(ctx context.Context, id string) error {
	defer s.db.lock(ctx)()
	if _, ok := s.db.slots[id]; !ok {
		return availability.ErrSlotNotFound
	}
	delete(s.db.slots, id)
	return nil
}

func (s memSlots) DeleteAllForDoctorOnDate(ctx context.Context, doctorID string, date time.Time, start *calendar.Clock) (int64, error) {
	defer s.db.lock(ctx)()
	var n int64
	for id, sl := range s.db.slots {
		if sl.DoctorID != doctorID || !sl.Date.Equal(date) {
			continue
		}
		if start != nil && sl.Start != *start {
			continue
		}
		delete(s.db.slots, id)
		n++
	}
	return n, nil
}

func (s memSlots) filter(ctx context.Context, keep func(availability.Slot) bool) []availability.Slot {
	defer s.db.lock(ctx)()
	var out []availability.Slot
	for _, sl := range s.db.slots {
		if keep(sl) {
			out = append(out, sl)
		}
	}
	slices.SortFunc(out, func(a, b availability.Slot) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return int(a.Start - b.Start)
	})
	return out
}

func (s memSlots) ListForDoctor(ctx context.Context, doctorID string, date *time.Time, limit, offset int) ([]availability.Slot, error) {
	all := s.filter(ctx, func(sl availability.Slot) bool {
		return sl.DoctorID == doctorID && (date == nil || sl.Date.Equal(*date))
	})
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (s memSlots) ListFree(ctx context.Context, doctorID string, date time.Time) ([]availability.Slot, error) {
	return s.filter(ctx, func(sl availability.Slot) bool {
		return sl.DoctorID == doctorID && sl.Date.Equal(date) && !sl.Booked
	}), nil
}

func (s memSlots) ListBooked(ctx context.Context, doctorID string, date time.Time) ([]availability.Slot, error) {
	return s.filter(ctx, func(sl availability.Slot) bool {
		return sl.DoctorID == doctorID && sl.Date.Equal(date) && sl.Booked
	}), nil
}

func (s memSlots) ListOrphanedClaims(ctx context.Context, limit int) ([]availability.Slot, error) {
	out := s.orphans(ctx, limit)
	if s.db.afterOrphanScan != nil {
		s.db.afterOrphanScan()
	}
	return out, nil
}

func (s memSlots) orphans(ctx context.Context, limit int) []availability.Slot {
	defer s.db.lock(ctx)()
	var out []availability.Slot
	for _, sl := range s.db.slots {
		if !sl.Booked || sl.AppointmentID == nil {
			continue
		}
		a, ok := s.db.appts[*sl.AppointmentID]
		if !ok || a.Status == appointment.StatusCancelled {
			out = append(out, sl)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

// registries

type memPatients struct{ db *memDB }

func (r memPatients) FindByContact(ctx context.Context, contact string) (*registry.Patient, error) {
	defer r.db.lock(ctx)()
	for _, p := range r.db.patients {
		if p.Contact == contact {
			return &p, nil
		}
	}
	return nil, registry.ErrPatientNotFound
}

func (r memPatients) FindByID(ctx context.Context, id string) (*registry.Patient, error) {
	defer r.db.lock(ctx)()
	if err := r.db.failing("FindPatient"); err != nil {
		return nil, err
	}
	p, ok := r.db.patients[id]
	if !ok {
		return nil, registry.ErrPatientNotFound
	}
	return &p, nil
}

func (r memPatients) Insert(ctx context.Context, p *registry.Patient) error {
	defer r.db.lock(ctx)()
	for _, o := range r.db.patients {
		if o.Contact == p.Contact {
			return registry.ErrContactTaken
		}
	}
	if _, ok := r.db.patients[p.ID]; ok {
		return ident.ErrIDCollision
	}
	p.CreatedAt = time.Now()
	r.db.patients[p.ID] = *p
	return nil
}

type memDoctors struct{ db *memDB }

func (r memDoctors) FindByID(ctx context.Context, id string) (*registry.Doctor, error) {
	defer r.db.lock(ctx)()
	d, ok := r.db.doctors[id]
	if !ok {
		return nil, registry.ErrDoctorNotFound
	}
	return &d, nil
}

type memIssuer struct {
	mu     sync.Mutex
	err    error
	issued []string
}

func (i *memIssuer) IssueForPatient(_ context.Context, patientID string) (*identity.Credential, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.err != nil {
		return nil, i.err
	}
	i.issued = append(i.issued, patientID)
	return &identity.Credential{
		ID:        ident.Generate(ident.KindCredential),
		PatientID: patientID,
		Token:     uuid.New(),
		IssuedAt:  time.Now(),
	}, nil
}
