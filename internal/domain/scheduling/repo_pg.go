package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

type appointmentRepoPG struct {
	conn db.Querier
}

func NewRepo(conn db.Querier) Repository {
	return &appointmentRepoPG{conn: conn}
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, starts_at, doctor_name, department, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		a.ID, a.PatientID, a.StartsAt, a.DoctorName, a.Department, string(a.Status),
	).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, limit int) ([]*Appointment, error) {
	rows, err := db.Select(
		"a.id", "a.patient_id", "a.starts_at", "a.doctor_name", "a.department", "a.status", "a.created_at",
		"p.patient_code", "p.full_name", "p.age", "p.sex",
	).
		From("appointments a JOIN patients p ON p.id = a.patient_id").
		OrderBy("a.starts_at ASC").
		Limit(limit, ListLimit).
		Query(ctx, r.conn)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var a Appointment
		var ps PatientSummary
		var status string
		if err := rows.Scan(&a.ID, &a.PatientID, &a.StartsAt, &a.DoctorName, &a.Department, &status, &a.CreatedAt,
			&ps.PatientCode, &ps.FullName, &ps.Age, &ps.Sex); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		a.Status = Status(status)
		a.Patient = &ps
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn.Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
