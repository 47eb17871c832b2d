// Package registry holds the patient, doctor and department records the
// scheduler checks bookings against.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/calendar"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrContactTaken    = errors.New("contact already registered")
	ErrInvalidPatient  = errors.New("invalid patient details")
)

var (
	Genders     = []string{"Male", "Female", "Prefer Not To Say"}
	BloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
)

type Patient struct {
	ID         string
	Name       string
	Gender     string
	Age        int
	BloodGroup string
	Contact    string
	CreatedAt  time.Time
}

type Doctor struct {
	ID              string
	Name            string
	Gender          string
	Specialization  string
	Experience      int
	Contact         string
	Email           string
	ConsultationFee float64
	DeptID          *string
	CreatedAt       time.Time
}

type Department struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NewPatient normalizes raw registration input and rejects anything the
// patient table would refuse.
func NewPatient(name, gender, age, bloodGroup, contact string) (Patient, error) {
	p := Patient{
		Name:       calendar.TitleCase(name),
		Gender:     calendar.TitleCase(gender),
		BloodGroup: strings.ToUpper(strings.TrimSpace(bloodGroup)),
		Contact:    strings.TrimSpace(contact),
	}

	if p.Name == "" {
		return Patient{}, fmt.Errorf("%w: name is required", ErrInvalidPatient)
	}
	if !slices.Contains(Genders, p.Gender) {
		return Patient{}, fmt.Errorf("%w: gender %q", ErrInvalidPatient, gender)
	}
	if !slices.Contains(BloodGroups, p.BloodGroup) {
		return Patient{}, fmt.Errorf("%w: blood group %q", ErrInvalidPatient, bloodGroup)
	}
	if !digits(p.Contact) {
		return Patient{}, fmt.Errorf("%w: contact %q", ErrInvalidPatient, contact)
	}

	n, err := strconv.Atoi(strings.TrimSpace(age))
	if err != nil || n < 0 {
		return Patient{}, fmt.Errorf("%w: age %q", ErrInvalidPatient, age)
	}
	p.Age = n

	return p, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
