package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

const (
	patientColumns        = `id, patient_code, full_name, sex, age, date_of_birth, created_at`
	patientCodeConstraint = "patients_patient_code_key"
)

type patientRepoPG struct {
	conn db.Querier
}

func NewRepo(conn db.Querier) Repository {
	return &patientRepoPG{conn: conn}
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.PatientCode, &p.FullName, &p.Sex, &p.Age, &p.DateOfBirth, &p.CreatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn.QueryRow(ctx, `
		INSERT INTO patients (id, patient_code, full_name, sex, age, date_of_birth)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		p.ID, p.PatientCode, p.FullName, p.Sex, p.Age, p.DateOfBirth,
	).Scan(&p.CreatedAt)
	if db.IsUniqueViolation(err, patientCodeConstraint) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) get(ctx context.Context, column string, value interface{}) (*Patient, error) {
	p, err := scanPatient(r.conn.QueryRow(ctx,
		`SELECT `+patientColumns+` FROM patients WHERE `+column+` = $1`, value))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.get(ctx, "id", id)
}

func (r *patientRepoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return r.get(ctx, "patient_code", code)
}

func (r *patientRepoPG) Search(ctx context.Context, query string, limit int) ([]*Patient, error) {
	rows, err := db.Select(patientColumns).
		From("patients").
		Contains("full_name", query).
		OrderBy("created_at DESC").
		Limit(limit, SearchLimit).
		Query(ctx, r.conn)
	if err != nil {
		return nil, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) Options(ctx context.Context, query string, limit int) ([]*Option, error) {
	rows, err := db.Select("id", "patient_code", "full_name").
		From("patients").
		ContainsAny(query, "patient_code", "full_name").
		OrderBy("patient_code ASC").
		Limit(limit, OptionsLimit).
		Query(ctx, r.conn)
	if err != nil {
		return nil, fmt.Errorf("list patient options: %w", err)
	}
	defer rows.Close()

	var out []*Option
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.PatientCode, &o.FullName); err != nil {
			return nil, fmt.Errorf("scan patient option: %w", err)
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}
