package staff

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

const memberColumns = `id, email, display_name, role, created_at, last_seen, deprovision_started_at`

type memberRepoPG struct {
	conn db.Querier
}

func NewRepo(conn db.Querier) Repository {
	return &memberRepoPG{conn: conn}
}

func scanMember(row pgx.Row) (*Member, error) {
	var m Member
	var role string
	if err := row.Scan(&m.ID, &m.Email, &m.DisplayName, &role, &m.CreatedAt, &m.LastSeen, &m.DeprovisionStartedAt); err != nil {
		return nil, err
	}
	m.Role = auth.Role(role)
	return &m, nil
}

func (r *memberRepoPG) Upsert(ctx context.Context, m *Member) error {
	row := r.conn.QueryRow(ctx, `
		INSERT INTO staff_directory (id, email, role, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
		    role = EXCLUDED.role,
		    display_name = COALESCE(EXCLUDED.display_name, staff_directory.display_name)
		RETURNING `+memberColumns,
		m.ID, m.Email, string(m.Role), m.DisplayName,
	)
	saved, err := scanMember(row)
	if err != nil {
		return fmt.Errorf("upsert staff member: %w", err)
	}
	*m = *saved
	return nil
}

func (r *memberRepoPG) GetByID(ctx context.Context, id string) (*Member, error) {
	m, err := scanMember(r.conn.QueryRow(ctx, `SELECT `+memberColumns+` FROM staff_directory WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get staff member: %w", err)
	}
	return m, nil
}

func (r *memberRepoPG) List(ctx context.Context) ([]*Member, error) {
	rows, err := db.Select(memberColumns).
		From("staff_directory").
		OrderBy("created_at DESC").
		Query(ctx, r.conn)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan staff member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *memberRepoPG) exec(ctx context.Context, op, sql string, args ...interface{}) error {
	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *memberRepoPG) UpdateRole(ctx context.Context, id string, role auth.Role) error {
	return r.exec(ctx, "update staff role", `UPDATE staff_directory SET role = $2 WHERE id = $1`, id, string(role))
}

func (r *memberRepoPG) Touch(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "touch last_seen", `UPDATE staff_directory SET last_seen = $2 WHERE id = $1`, id, at)
}

func (r *memberRepoPG) MarkDeprovisioning(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "mark deprovisioning", `UPDATE staff_directory SET deprovision_started_at = $2 WHERE id = $1`, id, at)
}

func (r *memberRepoPG) ClearDeprovisioning(ctx context.Context, id string) error {
	return r.exec(ctx, "clear deprovisioning", `UPDATE staff_directory SET deprovision_started_at = NULL WHERE id = $1`, id)
}

func (r *memberRepoPG) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete staff member", `DELETE FROM staff_directory WHERE id = $1`, id)
}
