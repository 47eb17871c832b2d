package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

type PgPatients struct {
	pool *pgxpool.Pool
}

func NewPgPatients(pool *pgxpool.Pool) *PgPatients {
	return &PgPatients{pool: pool}
}

const patientCols = `id, name, gender, age, blood_group, contact, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Gender, &p.Age, &p.BloodGroup, &p.Contact, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgPatients) FindByContact(ctx context.Context, contact string) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE contact = $1`, contact))
}

func (r *PgPatients) FindByID(ctx context.Context, id string) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *PgPatients) Insert(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = ident.Generate(ident.KindPatient)
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, name, gender, age, blood_group, contact)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.ID, p.Name, p.Gender, p.Age, p.BloodGroup, p.Contact).Scan(&p.CreatedAt)
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err, "patient_contact_key"):
		return ErrContactTaken
	case db.IsUniqueViolation(err, "patient_pkey"):
		return fmt.Errorf("insert patient: %w", ident.ErrIDCollision)
	}
	return fmt.Errorf("insert patient: %w", err)
}

type PgDoctors struct {
	pool *pgxpool.Pool
}

func NewPgDoctors(pool *pgxpool.Pool) *PgDoctors {
	return &PgDoctors{pool: pool}
}

func (r *PgDoctors) FindByID(ctx context.Context, id string) (*Doctor, error) {
	var d Doctor
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, name, gender, specialization, experience, contact, email, consultation_fee, dept_id, created_at
		FROM doctor
		WHERE id = $1
	`, id).Scan(
		&d.ID,
		&d.Name,
		&d.Gender,
		&d.Specialization,
		&d.Experience,
		&d.Contact,
		&d.Email,
		&d.ConsultationFee,
		&d.DeptID,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Insert is used by the seeder; the scheduler only reads doctors.
func (r *PgDoctors) Insert(ctx context.Context, d *Doctor) error {
	if d.ID == "" {
		d.ID = ident.Generate(ident.KindDoctor)
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor (id, name, gender, specialization, experience, contact, email, consultation_fee, dept_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, d.ID, d.Name, d.Gender, d.Specialization, d.Experience, d.Contact, d.Email, d.ConsultationFee, d.DeptID).Scan(&d.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "doctor_contact_key") {
			return ErrContactTaken
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

type PgDepartments struct {
	pool *pgxpool.Pool
}

func NewPgDepartments(pool *pgxpool.Pool) *PgDepartments {
	return &PgDepartments{pool: pool}
}

// Insert is idempotent on name and fills d with the stored row.
func (r *PgDepartments) Insert(ctx context.Context, d *Department) error {
	if d.ID == "" {
		d.ID = ident.Generate(ident.KindDepartment)
	}

	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO department (id, name)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, created_at
	`, d.ID, d.Name).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert department: %w", err)
	}
	return nil
}
