package staff

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/idp"
	"github.com/clinicdesk/frontdesk/internal/platform/telemetry"
)

// Provisioner is the identity-provider side of the staff lifecycle.
type Provisioner interface {
	InviteUser(ctx context.Context, email, redirectTo string) (*idp.Account, error)
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*idp.Account, error)
}

type Service struct {
	repo       Repository
	idp        Provisioner
	redirectTo string
	logger     zerolog.Logger
	metrics    *telemetry.Metrics
	now        func() time.Time
}

func NewService(repo Repository, provisioner Provisioner, redirectTo string, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:       repo,
		idp:        provisioner,
		redirectTo: redirectTo,
		logger:     logger.With().Str("component", "staff").Logger(),
		metrics:    metrics,
		now:        time.Now,
	}
}

// Now is the service clock, used for presence evaluation.
func (s *Service) Now() time.Time {
	return s.now()
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "email is required")
	}
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return apperr.Validation("email", "email is not a valid address")
	}
	return nil
}

func parseRole(raw string, fallback auth.Role) (auth.Role, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	role, ok := auth.ParseRole(raw)
	if !ok {
		return "", apperr.Validation("role", "invalid role")
	}
	return role, nil
}

// Invite provisions an account at the identity provider and records it in
// the directory. Retrying after a partial failure converges on one row with
// the latest role.
func (s *Service) Invite(ctx context.Context, caller *auth.Identity, email, role string) (*Member, error) {
	if err := auth.Require(caller, auth.ActionInviteStaff, nil); err != nil {
		return nil, err
	}

	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	r, err := parseRole(role, auth.RoleDoctor)
	if err != nil {
		return nil, err
	}

	acct, err := s.idp.InviteUser(ctx, email, s.redirectTo)
	if err != nil {
		s.metrics.Invite(telemetry.OutcomeIDPFailed)
		return nil, apperr.Upstream("invite user", err)
	}

	m := &Member{ID: acct.ID, Email: email, Role: r}
	if err := s.repo.Upsert(ctx, m); err != nil {
		s.metrics.Invite(telemetry.OutcomeDirectoryGap)
		s.logger.Error().Err(err).
			Str("account_id", acct.ID).
			Msg("invited account has no directory row; re-send the invite to repair")
		return nil, apperr.Upstream("record invited staff member", err)
	}

	s.metrics.Invite(telemetry.OutcomeOK)
	s.logger.Info().
		Str("actor_id", caller.ID).
		Str("account_id", m.ID).
		Str("role", string(m.Role)).
		Msg("staff invited")
	return m, nil
}

func (s *Service) List(ctx context.Context, caller *auth.Identity) ([]*Member, error) {
	if err := auth.Require(caller, auth.ActionListStaff, nil); err != nil {
		return nil, err
	}
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Upstream("list staff", err)
	}
	return members, nil
}

func (s *Service) load(ctx context.Context, id string) (*Member, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("id", "staff id is required")
	}
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("staff member")
	}
	if err != nil {
		return nil, apperr.Upstream("load staff member", err)
	}
	return m, nil
}

// Delete removes a staff member from the identity provider and then from
// the directory. The row is marked first so a failure between the two steps
// leaves a visible trace instead of an orphan.
func (s *Service) Delete(ctx context.Context, caller *auth.Identity, id string) error {
	// role check before the lookup so non-admins cannot probe ids
	if err := auth.Require(caller, auth.ActionListStaff, nil); err != nil {
		return err
	}
	target, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.Require(caller, auth.ActionDeleteStaff, target.Identity()); err != nil {
		return err
	}

	log := s.logger.With().Str("actor_id", caller.ID).Str("target_id", target.ID).Logger()

	if err := s.repo.MarkDeprovisioning(ctx, target.ID, s.now()); err != nil {
		return apperr.Upstream("mark staff member for deletion", err)
	}

	if err := s.idp.DeleteUser(ctx, target.ID); err != nil {
		s.metrics.Deprovision(telemetry.OutcomeIDPFailed)
		if clearErr := s.repo.ClearDeprovisioning(ctx, target.ID); clearErr != nil {
			log.Error().Err(clearErr).Msg("could not clear deletion marker after provider failure")
		}
		log.Warn().Err(err).Msg("identity provider refused deletion; directory row kept")
		return apperr.Upstream("delete user", err)
	}

	if err := s.repo.Delete(ctx, target.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.metrics.Deprovision(telemetry.OutcomeDirectoryGap)
		log.Error().Err(err).Msg("account deleted at provider but directory row remains; needs reconciliation")
		return apperr.Upstream("delete staff directory row", err)
	}

	s.metrics.Deprovision(telemetry.OutcomeOK)
	log.Info().Msg("staff deleted")
	return nil
}

func (s *Service) ChangeRole(ctx context.Context, caller *auth.Identity, id, role string) (*Member, error) {
	if err := auth.Require(caller, auth.ActionChangeStaffRole, nil); err != nil {
		return nil, err
	}
	if strings.TrimSpace(role) == "" {
		return nil, apperr.Validation("role", "role is required")
	}
	r, err := parseRole(role, "")
	if err != nil {
		return nil, err
	}
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateRole(ctx, target.ID, r); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apperr.NotFound("staff member")
		}
		return nil, apperr.Upstream("update staff role", err)
	}
	s.logger.Info().
		Str("actor_id", caller.ID).
		Str("target_id", target.ID).
		Str("from", string(target.Role)).
		Str("to", string(r)).
		Msg("staff role changed")
	target.Role = r
	return target, nil
}

// Ping records that the caller is active. Only the caller's own row is
// touched.
func (s *Service) Ping(ctx context.Context, caller *auth.Identity) (time.Time, error) {
	if err := auth.Require(caller, auth.ActionPresencePing, nil); err != nil {
		return time.Time{}, err
	}
	now := s.now()
	if err := s.repo.Touch(ctx, caller.ID, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, apperr.NotFound("staff member")
		}
		return time.Time{}, apperr.Upstream("record presence", err)
	}
	s.metrics.PresencePing()
	return now, nil
}

// Reconcile reports directory rows that disagree with the identity
// provider. It changes nothing.
func (s *Service) Reconcile(ctx context.Context, caller *auth.Identity) ([]ReconcileItem, error) {
	if err := auth.Require(caller, auth.ActionReconcileStaff, nil); err != nil {
		return nil, err
	}
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Upstream("list staff", err)
	}

	items := []ReconcileItem{}
	for _, m := range members {
		item := ReconcileItem{ID: m.ID, Email: m.Email, Role: m.Role, DeprovisionStartedAt: m.DeprovisionStartedAt}
		if m.NeedsReconciliation() {
			item.Reason = ReasonDeprovisionIncomplete
			items = append(items, item)
			continue
		}
		_, err := s.idp.GetUser(ctx, m.ID)
		switch {
		case err == nil:
			continue
		case errors.Is(err, idp.ErrAccountNotFound):
			item.Reason = ReasonAccountMissing
		default:
			item.Reason = ReasonLookupFailed
			item.Detail = err.Error()
		}
		items = append(items, item)
	}

	if len(items) > 0 {
		s.logger.Warn().Int("count", len(items)).Msg("staff directory disagrees with identity provider")
	}
	return items, nil
}

// Bootstrap seeds an admin row for an existing provider account. It is the
// only path that creates an admin without an admin caller and is reachable
// from the command line only.
func (s *Service) Bootstrap(ctx context.Context, id, email, displayName string) (*Member, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("id", "account id is required")
	}
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	m := &Member{ID: strings.TrimSpace(id), Email: email, Role: auth.RoleAdmin}
	if name := strings.TrimSpace(displayName); name != "" {
		m.DisplayName = &name
	}
	if err := s.repo.Upsert(ctx, m); err != nil {
		return nil, apperr.Upstream("bootstrap admin", err)
	}
	s.logger.Info().Str("account_id", m.ID).Msg("admin bootstrapped")
	return m, nil
}
