package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	claims "fede-claims/internal/claims/domain"
	"fede-claims/internal/claims/infrastructure/memory"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

const testIBAN = "FR7630001007941234567890185"

type stubRates struct {
	rates reimbursement.RateSet
	err   error
}

func (s stubRates) RateSetAt(_ context.Context, _ time.Time) (reimbursement.RateSet, error) {
	return s.rates, s.err
}

type stubClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

type stubNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *stubNotifier) NotifySecondValidation(_ context.Context, _ claims.Claim, _ reimbursement.Calculation) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func newTestService(t *testing.T, opts ...ServiceOption) (*ClaimService, *memory.ClaimRepository) {
	t.Helper()
	repo := memory.NewClaimRepository()
	rates := stubRates{rates: reimbursement.RateSet{
		MileageRates: []reimbursement.MileageRate{{Horsepower: 5, RatePerKM: 0.636}},
		RoleRates: []reimbursement.RoleRate{
			{Tier: reimbursement.TierAssociation, Percentage: 0.80},
			{Tier: reimbursement.TierMember, Percentage: 0.65},
		},
	}}
	clock := &stubClock{now: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC), step: time.Millisecond}
	service, err := NewClaimService(repo, rates, clock, "tenant-fede", opts...)
	if err != nil {
		t.Fatalf("new claim service: %v", err)
	}
	return service, repo
}

func carInput() CreateClaimInput {
	return CreateClaimInput{
		AssociationID:    "asso-1",
		UserID:           "user-1",
		UserRole:         "association_admin",
		Category:         claims.CategoryCar,
		Label:            "AG nationale",
		ExpenseDate:      time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DistanceKM:       200,
		FiscalHorsepower: 5,
		IBAN:             testIBAN,
	}
}

func TestCreateAndSubmit(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	claim, err := service.Create(ctx, carInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if claim.Status != claims.StatusDraft {
		t.Fatalf("expected draft, got %s", claim.Status)
	}

	result, err := service.Submit(ctx, claim.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Claim.Status != claims.StatusSubmitted {
		t.Fatalf("expected submitted, got %s", result.Claim.Status)
	}
	if got := result.Calculation.ReimbursableAmount; got < 101.75 || got > 101.77 {
		t.Fatalf("expected about 101.76, got %f", got)
	}
	if len(result.Duplicates) != 0 {
		t.Fatalf("expected no duplicates, got %d", len(result.Duplicates))
	}

	stored, err := service.GetCalculation(ctx, claim.ID)
	if err != nil {
		t.Fatalf("get calculation: %v", err)
	}
	if stored == nil || stored.ReimbursableAmount != result.Calculation.ReimbursableAmount {
		t.Fatal("calculation snapshot not persisted")
	}
}

func TestSubmitDetectsDuplicates(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	input := CreateClaimInput{
		AssociationID: "asso-1",
		UserID:        "user-1",
		UserRole:      "member",
		Category:      claims.CategoryMeal,
		ExpenseDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		AmountTTC:     24.90,
		IBAN:          testIBAN,
	}
	first, err := service.Create(ctx, input)
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := service.Submit(ctx, first.ID); err != nil {
		t.Fatalf("submit first: %v", err)
	}

	second, err := service.Create(ctx, input)
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	result, err := service.Submit(ctx, second.ID)
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0].ID != first.ID {
		t.Fatalf("expected the first claim as duplicate, got %+v", result.Duplicates)
	}
}

func TestSubmitRejectsInvalidIBAN(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	input := carInput()
	input.IBAN = ""
	claim, err := service.Create(ctx, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Submit(ctx, claim.ID); err == nil {
		t.Fatal("expected an IBAN error on submit")
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	bad := carInput()
	bad.Category = "taxi"
	if _, err := service.Create(ctx, bad); !errors.Is(err, claims.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}

	noDistance := carInput()
	noDistance.DistanceKM = 0
	if _, err := service.Create(ctx, noDistance); err == nil {
		t.Fatal("expected an error for a mileage claim without distance")
	}

	badIBAN := carInput()
	badIBAN.IBAN = "FR7630001007941234567890186"
	if _, err := service.Create(ctx, badIBAN); err == nil {
		t.Fatal("expected an error for an invalid IBAN")
	}
}

func TestTransitionSecondValidationGate(t *testing.T) {
	notifier := &stubNotifier{}
	service, _ := newTestService(t, WithNotifier(notifier))
	ctx := context.Background()

	input := CreateClaimInput{
		AssociationID: "asso-1",
		UserID:        "user-1",
		UserRole:      "national_board",
		Category:      claims.CategoryRegistration,
		ExpenseDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		AmountTTC:     1200.00,
		IBAN:          testIBAN,
	}
	claim, err := service.Create(ctx, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	result, err := service.Submit(ctx, claim.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// National board has no role-rate row in the stub set: default 50% of
	// 1200 is 600, above the second-validation threshold.
	if !result.Calculation.RequiresSecondValidation {
		t.Fatal("expected second validation")
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 notification, got %d", notifier.calls)
	}

	if _, err := service.Transition(ctx, claim.ID, claims.StatusValidated); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusPaid); !errors.Is(err, claims.ErrInvalidTransition) {
		t.Fatalf("expected payment blocked before approval, got %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusPaid); err != nil {
		t.Fatalf("pay: %v", err)
	}
}

func TestTransitionWithoutSecondValidation(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	claim, err := service.Create(ctx, carInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Submit(ctx, claim.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusValidated); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusApproved); !errors.Is(err, claims.ErrInvalidTransition) {
		t.Fatalf("expected approve to be blocked without the gate, got %v", err)
	}
	if _, err := service.Transition(ctx, claim.ID, claims.StatusPaid); err != nil {
		t.Fatalf("pay: %v", err)
	}
}

func TestPreviewDoesNotPersist(t *testing.T) {
	service, repo := newTestService(t)
	ctx := context.Background()

	calc, err := service.Preview(ctx, carInput())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if calc.ReimbursableAmount < 101.75 || calc.ReimbursableAmount > 101.77 {
		t.Fatalf("expected about 101.76, got %f", calc.ReimbursableAmount)
	}
	list, err := repo.ListByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected nothing persisted, got %d claims", len(list))
	}
}
