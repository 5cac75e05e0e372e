package staff

import (
	"time"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

// Member is a staff directory row, keyed by the identity-provider account id.
type Member struct {
	ID          string     `db:"id" json:"id"`
	Email       string     `db:"email" json:"email"`
	DisplayName *string    `db:"display_name" json:"full_name,omitempty"`
	Role        auth.Role  `db:"role" json:"role"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	LastSeen    *time.Time `db:"last_seen" json:"last_seen,omitempty"`
	// Set while a deletion is in flight. A row that keeps it set had its
	// provider account removed but the directory delete failed.
	DeprovisionStartedAt *time.Time `db:"deprovision_started_at" json:"-"`
}

func (m *Member) Identity() *auth.Identity {
	return &auth.Identity{
		ID:          m.ID,
		Email:       m.Email,
		Role:        m.Role,
		DisplayName: m.DisplayName,
		CreatedAt:   m.CreatedAt,
		LastSeen:    m.LastSeen,
	}
}

// NeedsReconciliation reports a deletion that did not complete.
func (m *Member) NeedsReconciliation() bool {
	return m.DeprovisionStartedAt != nil
}

// Reconciliation reasons.
const (
	ReasonDeprovisionIncomplete = "deprovision_incomplete"
	ReasonAccountMissing        = "account_missing"
	ReasonLookupFailed          = "lookup_failed"
)

// ReconcileItem is one directory row that disagrees with the identity
// provider.
type ReconcileItem struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Role                 auth.Role  `json:"role"`
	Reason               string     `json:"reason"`
	Detail               string     `json:"detail,omitempty"`
	DeprovisionStartedAt *time.Time `json:"deprovision_started_at,omitempty"`
}
