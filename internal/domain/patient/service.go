package patient

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/platform/apperr"
	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/telemetry"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo    Repository
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

func NewService(repo Repository, logger zerolog.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{
		repo:    repo,
		logger:  logger.With().Str("component", "patient").Logger(),
		metrics: metrics,
	}
}

// Validate normalizes np into an unsaved Patient.
func (np NewPatient) Validate() (*Patient, error) {
	p := &Patient{
		PatientCode: strings.TrimSpace(np.PatientCode),
		FullName:    strings.TrimSpace(np.FullName),
		Sex:         strings.ToUpper(strings.TrimSpace(np.Sex)),
	}
	if p.PatientCode == "" {
		return nil, apperr.Validation("patient_code", "patient code is required")
	}
	if p.FullName == "" {
		return nil, apperr.Validation("full_name", "full name is required")
	}
	switch p.Sex {
	case "":
		p.Sex = SexMale
	case SexMale, SexFemale:
	default:
		return nil, apperr.Validation("sex", "sex must be M or F")
	}
	if raw := strings.TrimSpace(np.Age); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			return nil, apperr.Validation("age", "age must be a whole number of years")
		}
		p.Age = &age
	}
	if raw := strings.TrimSpace(np.DateOfBirth); raw != "" {
		dob, err := time.Parse(dateLayout, raw)
		if err != nil {
			return nil, apperr.Validation("date_of_birth", "date of birth must be YYYY-MM-DD")
		}
		p.DateOfBirth = &dob
	}
	return p, nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation("patient_id", "patient id is not a valid id")
	}
	return id, nil
}

// FindOrCreate resolves sel to a committed patient row. created is true only
// when this call inserted the row.
func (s *Service) FindOrCreate(ctx context.Context, caller *auth.Identity, sel Selector) (*Patient, bool, error) {
	hasID := strings.TrimSpace(sel.PatientID) != ""
	switch {
	case hasID && sel.NewPatient != nil:
		return nil, false, apperr.Validation("patient", "choose an existing patient or enter a new one, not both")
	case hasID:
		p, err := s.Get(ctx, caller, sel.PatientID)
		return p, false, err
	case sel.NewPatient == nil:
		return nil, false, apperr.Validation("patient", "a patient is required")
	}

	if err := auth.Require(caller, auth.ActionCreatePatient, nil); err != nil {
		return nil, false, err
	}
	p, err := sel.NewPatient.Validate()
	if err != nil {
		return nil, false, err
	}

	err = s.repo.Create(ctx, p)
	if errors.Is(err, ErrCodeTaken) {
		return s.resolveTakenCode(ctx, p)
	}
	if err != nil {
		return nil, false, apperr.Upstream("create patient", err)
	}

	s.metrics.PatientCreated()
	s.logger.Info().
		Str("actor_id", caller.ID).
		Str("patient_id", p.ID.String()).
		Msg("patient created")
	return p, true, nil
}

// resolveTakenCode handles an insert that lost a race on patient_code. The
// existing row is reused when it names the same person.
func (s *Service) resolveTakenCode(ctx context.Context, want *Patient) (*Patient, bool, error) {
	existing, err := s.repo.GetByCode(ctx, want.PatientCode)
	if errors.Is(err, ErrNotFound) {
		return nil, false, apperr.Upstream("create patient", ErrCodeTaken)
	}
	if err != nil {
		return nil, false, apperr.Upstream("load patient by code", err)
	}
	if !strings.EqualFold(strings.TrimSpace(existing.FullName), want.FullName) {
		return nil, false, apperr.Validation("patient_code", "patient code already in use")
	}
	return existing, false, nil
}

func (s *Service) Get(ctx context.Context, caller *auth.Identity, id string) (*Patient, error) {
	if err := auth.Require(caller, auth.ActionReadPatients, nil); err != nil {
		return nil, err
	}
	pid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.GetByID(ctx, pid)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("patient")
	}
	if err != nil {
		return nil, apperr.Upstream("load patient", err)
	}
	return p, nil
}

// Search returns up to limit patients whose name contains query, newest
// first. An empty query returns the most recent patients.
func (s *Service) Search(ctx context.Context, caller *auth.Identity, query string, limit int) ([]*Patient, error) {
	if err := auth.Require(caller, auth.ActionReadPatients, nil); err != nil {
		return nil, err
	}
	patients, err := s.repo.Search(ctx, strings.TrimSpace(query), limit)
	if err != nil {
		return nil, apperr.Upstream("search patients", err)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	return patients, nil
}

func (s *Service) Options(ctx context.Context, caller *auth.Identity, query string) ([]*Option, error) {
	if err := auth.Require(caller, auth.ActionReadPatients, nil); err != nil {
		return nil, err
	}
	opts, err := s.repo.Options(ctx, strings.TrimSpace(query), OptionsLimit)
	if err != nil {
		return nil, apperr.Upstream("list patient options", err)
	}
	if opts == nil {
		opts = []*Option{}
	}
	return opts, nil
}
