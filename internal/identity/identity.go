// Package identity issues the patient credential handed out after a booking
// made by contact number.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/ident"
)

var ErrPatientNotFound = errors.New("credential patient not found")

type Credential struct {
	ID        string
	PatientID string
	Token     uuid.UUID
	IssuedAt  time.Time
}

type Issuer interface {
	// IssueForPatient revokes any active credential of the patient and
	// issues a new one.
	IssueForPatient(ctx context.Context, patientID string) (*Credential, error)
}

type PgIssuer struct {
	pool *pgxpool.Pool
	tx   *db.Transactor
}

func NewPgIssuer(pool *pgxpool.Pool) *PgIssuer {
	return &PgIssuer{pool: pool, tx: db.NewTransactor(pool)}
}

func (i *PgIssuer) IssueForPatient(ctx context.Context, patientID string) (*Credential, error) {
	c := &Credential{
		ID:        ident.Generate(ident.KindCredential),
		PatientID: patientID,
		Token:     uuid.New(),
	}

	err := i.tx.WithinTx(ctx, func(ctx context.Context) error {
		q := db.Conn(ctx, i.pool)

		if _, err := q.Exec(ctx, `
			UPDATE patient_credential
			SET status = 'Revoked'
			WHERE patient_id = $1 AND status = 'Active'
		`, patientID); err != nil {
			return fmt.Errorf("revoke credential: %w", err)
		}

		err := q.QueryRow(ctx, `
			INSERT INTO patient_credential (id, patient_id, token)
			VALUES ($1, $2, $3)
			RETURNING issued_at
		`, c.ID, c.PatientID, c.Token).Scan(&c.IssuedAt)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return ErrPatientNotFound
			}
			return fmt.Errorf("insert credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
