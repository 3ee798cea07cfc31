package memory

import (
	"context"
	"sync"
	"time"

	claims "fede-claims/internal/claims/domain"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// ClaimRepository is an in-memory claim store for tests and local runs.
type ClaimRepository struct {
	mu           sync.RWMutex
	data         map[string]*claims.Claim
	calculations map[string]*reimbursement.Calculation
}

// NewClaimRepository constructs a repository.
func NewClaimRepository() *ClaimRepository {
	return &ClaimRepository{
		data:         make(map[string]*claims.Claim),
		calculations: make(map[string]*reimbursement.Calculation),
	}
}

// Create inserts a new claim.
func (r *ClaimRepository) Create(ctx context.Context, claim *claims.Claim) error {
	_ = ctx
	if claim == nil {
		return claims.ErrNilClaim
	}
	clone := *claim
	r.mu.Lock()
	r.data[claim.ID] = &clone
	r.mu.Unlock()
	return nil
}

// GetByID fetches a claim, or nil.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*claims.Claim, error) {
	_ = ctx
	r.mu.RLock()
	claim := r.data[id]
	r.mu.RUnlock()
	if claim == nil {
		return nil, nil
	}
	clone := *claim
	return &clone, nil
}

// ListByUser returns a user's claims.
func (r *ClaimRepository) ListByUser(ctx context.Context, userID string) ([]claims.Claim, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []claims.Claim
	for _, claim := range r.data {
		if claim.UserID == userID {
			result = append(result, *claim)
		}
	}
	return result, nil
}

// ListByAssociation returns an association's claims.
func (r *ClaimRepository) ListByAssociation(ctx context.Context, associationID string) ([]claims.Claim, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []claims.Claim
	for _, claim := range r.data {
		if claim.AssociationID == associationID {
			result = append(result, *claim)
		}
	}
	return result, nil
}

// ListByUserAndDate returns a user's claims on a calendar day.
func (r *ClaimRepository) ListByUserAndDate(ctx context.Context, userID string, date time.Time) ([]claims.Claim, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []claims.Claim
	for _, claim := range r.data {
		if claim.UserID == userID && claims.SameExpenseDay(claim.ExpenseDate, date) {
			result = append(result, *claim)
		}
	}
	return result, nil
}

// UpdateStatus transitions a claim with an optimistic version predicate.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id, status string, expectedVersion int, updatedAt time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	claim := r.data[id]
	if claim == nil {
		return claims.ErrClaimNotFound
	}
	if claim.Version != expectedVersion {
		return claims.ErrVersionConflict
	}
	claim.Status = status
	claim.Version++
	claim.UpdatedAt = updatedAt
	return nil
}

// SaveCalculation stores the calculation snapshot for a claim.
func (r *ClaimRepository) SaveCalculation(ctx context.Context, claimID string, calc reimbursement.Calculation, duplicateIDs []string, calculatedAt time.Time) error {
	_ = ctx
	_ = duplicateIDs
	_ = calculatedAt
	clone := calc
	r.mu.Lock()
	r.calculations[claimID] = &clone
	r.mu.Unlock()
	return nil
}

// GetCalculation fetches the stored calculation snapshot, or nil.
func (r *ClaimRepository) GetCalculation(ctx context.Context, claimID string) (*reimbursement.Calculation, error) {
	_ = ctx
	r.mu.RLock()
	calc := r.calculations[claimID]
	r.mu.RUnlock()
	if calc == nil {
		return nil, nil
	}
	clone := *calc
	return &clone, nil
}
