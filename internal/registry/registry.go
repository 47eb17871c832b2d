package registry

import "context"

// PatientRegistry is the scheduler's view of patient records.
type PatientRegistry interface {
	// FindByContact returns ErrPatientNotFound when no patient has the contact.
	FindByContact(ctx context.Context, contact string) (*Patient, error)
	FindByID(ctx context.Context, id string) (*Patient, error)
	// Insert assigns p.ID when empty.
	Insert(ctx context.Context, p *Patient) error
}

type DoctorRegistry interface {
	FindByID(ctx context.Context, id string) (*Doctor, error)
}
