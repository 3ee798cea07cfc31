package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fede-claims/internal/auth"
	claims "fede-claims/internal/claims/domain"
	"fede-claims/internal/observability/metrics"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// ClaimRepository persists claims and calculation snapshots.
type ClaimRepository interface {
	Create(ctx context.Context, claim *claims.Claim) error
	GetByID(ctx context.Context, id string) (*claims.Claim, error)
	ListByUser(ctx context.Context, userID string) ([]claims.Claim, error)
	ListByAssociation(ctx context.Context, associationID string) ([]claims.Claim, error)
	ListByUserAndDate(ctx context.Context, userID string, date time.Time) ([]claims.Claim, error)
	UpdateStatus(ctx context.Context, id, status string, expectedVersion int, updatedAt time.Time) error
	SaveCalculation(ctx context.Context, claimID string, calc reimbursement.Calculation, duplicateIDs []string, calculatedAt time.Time) error
	GetCalculation(ctx context.Context, claimID string) (*reimbursement.Calculation, error)
}

// RateProvider supplies the rate snapshot valid at an instant.
type RateProvider interface {
	RateSetAt(ctx context.Context, at time.Time) (reimbursement.RateSet, error)
}

// Notifier is told about submissions that need a second validation.
type Notifier interface {
	NotifySecondValidation(ctx context.Context, claim claims.Claim, calc reimbursement.Calculation)
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

// CreateClaimInput carries the fields a member supplies for a new claim.
type CreateClaimInput struct {
	AssociationID    string
	UserID           string
	UserRole         string
	Category         string
	Label            string
	ExpenseDate      time.Time
	AmountTTC        float64
	DistanceKM       float64
	FiscalHorsepower int
	IBAN             string
}

// SubmitResult bundles everything a submission produced.
type SubmitResult struct {
	Claim       *claims.Claim
	Calculation reimbursement.Calculation
	Duplicates  []claims.Claim
}

// ClaimService drives the claim lifecycle: creation, submission with
// duplicate detection and reimbursement calculation, and status
// transitions up to payment.
type ClaimService struct {
	repo          ClaimRepository
	rates         RateProvider
	notifier      Notifier
	clock         Clock
	tenantID      string
	fallbackBands []reimbursement.TrainBand
}

// ServiceOption configures the service.
type ServiceOption func(*ClaimService)

// WithNotifier sets the second-validation notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(s *ClaimService) {
		s.notifier = notifier
	}
}

// WithFallbackTrainBands sets the band table used when the rate tables
// carry none.
func WithFallbackTrainBands(bands []reimbursement.TrainBand) ServiceOption {
	return func(s *ClaimService) {
		if len(bands) > 0 {
			s.fallbackBands = bands
		}
	}
}

// NewClaimService constructs a service.
func NewClaimService(repo ClaimRepository, rates RateProvider, clock Clock, tenantID string, opts ...ServiceOption) (*ClaimService, error) {
	if repo == nil {
		return nil, errors.New("claim service: nil repo")
	}
	if rates == nil {
		return nil, errors.New("claim service: nil rate provider")
	}
	if clock == nil {
		return nil, errors.New("claim service: nil clock")
	}
	if tenantID == "" {
		return nil, errors.New("claim service: empty tenant id")
	}
	s := &ClaimService{
		repo:          repo,
		rates:         rates,
		clock:         clock,
		tenantID:      tenantID,
		fallbackBands: reimbursement.DefaultTrainBands(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create validates the input and stores a draft claim.
func (s *ClaimService) Create(ctx context.Context, input CreateClaimInput) (*claims.Claim, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.IBAN != "" {
		if result := reimbursement.ValidateIBAN(input.IBAN); !result.Valid {
			metrics.IncIBANRejected(result.Err)
			return nil, fmt.Errorf("claim service: %s", result.Err)
		}
	}

	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		tenantID = s.tenantID
	}
	now := s.clock.Now().UTC()
	claim := &claims.Claim{
		ID:               buildClaimID(input.UserID, now),
		TenantID:         tenantID,
		AssociationID:    input.AssociationID,
		UserID:           input.UserID,
		UserRole:         input.UserRole,
		Category:         input.Category,
		Label:            input.Label,
		ExpenseDate:      input.ExpenseDate.UTC(),
		AmountTTC:        input.AmountTTC,
		DistanceKM:       input.DistanceKM,
		FiscalHorsepower: input.FiscalHorsepower,
		IBAN:             input.IBAN,
		Status:           claims.StatusDraft,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

// Submit runs duplicate detection and the reimbursement calculation, stores
// the snapshot and moves the claim to submitted. Duplicates and calculation
// warnings never block the submission; the caller decides what to do with
// them.
func (s *ClaimService) Submit(ctx context.Context, id string) (*SubmitResult, error) {
	start := s.clock.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveClaimSubmit(result, time.Since(start))
	}()

	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if claim == nil {
		result = metrics.ResultError
		return nil, claims.ErrClaimNotFound
	}
	if !claims.CanTransition(claim.Status, claims.StatusSubmitted, false) {
		result = metrics.ResultError
		return nil, claims.ErrInvalidTransition
	}
	if validation := reimbursement.ValidateIBAN(claim.IBAN); !validation.Valid {
		result = metrics.ResultError
		metrics.IncIBANRejected(validation.Err)
		return nil, fmt.Errorf("claim service: %s", validation.Err)
	}

	existing, err := s.repo.ListByUserAndDate(ctx, claim.UserID, claim.ExpenseDate)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	duplicates := reimbursement.DetectDuplicates(*claim, existing)
	if duplicates.IsDuplicate {
		metrics.IncDuplicateDetected()
	}

	calc, err := s.calculate(ctx, *claim)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}

	now := s.clock.Now().UTC()
	duplicateIDs := make([]string, 0, len(duplicates.Duplicates))
	for _, duplicate := range duplicates.Duplicates {
		duplicateIDs = append(duplicateIDs, duplicate.ID)
	}
	if err := s.repo.SaveCalculation(ctx, claim.ID, calc, duplicateIDs, now); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, claim.ID, claims.StatusSubmitted, claim.Version, now); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	claim.Status = claims.StatusSubmitted
	claim.Version++
	claim.UpdatedAt = now

	if calc.RequiresSecondValidation && s.notifier != nil {
		s.notifier.NotifySecondValidation(ctx, *claim, calc)
	}

	return &SubmitResult{Claim: claim, Calculation: calc, Duplicates: duplicates.Duplicates}, nil
}

// Preview computes a calculation without persisting anything.
func (s *ClaimService) Preview(ctx context.Context, input CreateClaimInput) (reimbursement.Calculation, error) {
	if err := validateInput(input); err != nil {
		return reimbursement.Calculation{}, err
	}
	claim := claims.Claim{
		Category:         input.Category,
		ExpenseDate:      input.ExpenseDate.UTC(),
		AmountTTC:        input.AmountTTC,
		DistanceKM:       input.DistanceKM,
		FiscalHorsepower: input.FiscalHorsepower,
		UserRole:         input.UserRole,
	}
	return s.calculate(ctx, claim)
}

// Transition moves a claim to the target status, enforcing the lifecycle
// and the second-validation gate from the stored calculation.
func (s *ClaimService) Transition(ctx context.Context, id, target string) (*claims.Claim, error) {
	result := metrics.ResultSuccess
	defer func() {
		metrics.IncClaimTransition(target, result)
	}()

	claim, err := s.repo.GetByID(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if claim == nil {
		result = metrics.ResultError
		return nil, claims.ErrClaimNotFound
	}
	requiresSecond := false
	calc, err := s.repo.GetCalculation(ctx, id)
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	if calc != nil {
		requiresSecond = calc.RequiresSecondValidation
	}
	if !claims.CanTransition(claim.Status, target, requiresSecond) {
		result = metrics.ResultError
		return nil, claims.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, claim.ID, target, claim.Version, now); err != nil {
		result = metrics.ResultError
		return nil, err
	}
	claim.Status = target
	claim.Version++
	claim.UpdatedAt = now
	return claim, nil
}

// Get fetches a claim.
func (s *ClaimService) Get(ctx context.Context, id string) (*claims.Claim, error) {
	return s.repo.GetByID(ctx, id)
}

// GetCalculation fetches the stored calculation snapshot, or nil.
func (s *ClaimService) GetCalculation(ctx context.Context, id string) (*reimbursement.Calculation, error) {
	return s.repo.GetCalculation(ctx, id)
}

// ListByUser returns a user's claims.
func (s *ClaimService) ListByUser(ctx context.Context, userID string) ([]claims.Claim, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListByAssociation returns an association's claims.
func (s *ClaimService) ListByAssociation(ctx context.Context, associationID string) ([]claims.Claim, error) {
	return s.repo.ListByAssociation(ctx, associationID)
}

func (s *ClaimService) calculate(ctx context.Context, claim claims.Claim) (reimbursement.Calculation, error) {
	start := s.clock.Now()
	defer func() {
		metrics.ObserveCalculation(claim.Category, time.Since(start))
	}()

	rates, err := s.rates.RateSetAt(ctx, claim.ExpenseDate)
	if err != nil {
		return reimbursement.Calculation{}, err
	}
	if len(rates.TrainBands) == 0 {
		rates.TrainBands = s.fallbackBands
	}
	tier := reimbursement.TierForRole(claim.UserRole)
	return reimbursement.Calculate(claim, tier, rates), nil
}

func validateInput(input CreateClaimInput) error {
	if !claims.ValidCategory(input.Category) {
		return claims.ErrInvalidCategory
	}
	if input.UserID == "" {
		return errors.New("claim service: empty user id")
	}
	if input.ExpenseDate.IsZero() {
		return errors.New("claim service: missing expense date")
	}
	switch input.Category {
	case claims.CategoryCar:
		if input.DistanceKM <= 0 || input.FiscalHorsepower <= 0 {
			return errors.New("claim service: mileage claims need distance and fiscal horsepower")
		}
	case claims.CategoryTrain:
		if input.DistanceKM <= 0 || input.AmountTTC <= 0 {
			return errors.New("claim service: train claims need distance and ticket price")
		}
	default:
		if input.AmountTTC <= 0 {
			return errors.New("claim service: missing amount")
		}
	}
	return nil
}

func buildClaimID(userID string, at time.Time) string {
	return fmt.Sprintf("claim-%s-%d", userID, at.UnixNano())
}
