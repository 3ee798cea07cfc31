package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	claims "fede-claims/internal/claims/domain"
	reimbursement "fede-claims/internal/reimbursement/domain"
)

// ClaimRepository persists expense claims and their calculation snapshots.
type ClaimRepository struct {
	db *sql.DB
}

// NewClaimRepository constructs a repository.
func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

const claimColumns = `
id, tenant_id, association_id, user_id, user_role, category, label,
expense_date, amount_ttc, distance_km, cv_fiscaux, iban, status, version,
created_at, updated_at`

// Create inserts a new claim.
func (r *ClaimRepository) Create(ctx context.Context, claim *claims.Claim) error {
	if r == nil || r.db == nil {
		return errors.New("claim repo: nil db")
	}
	if claim == nil {
		return claims.ErrNilClaim
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO claims (`+claimColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		claim.ID, claim.TenantID, claim.AssociationID, claim.UserID, claim.UserRole,
		claim.Category, claim.Label, claim.ExpenseDate, claim.AmountTTC, claim.DistanceKM,
		claim.FiscalHorsepower, claim.IBAN, claim.Status, claim.Version,
		claim.CreatedAt, claim.UpdatedAt)
	return err
}

// GetByID fetches a claim.
func (r *ClaimRepository) GetByID(ctx context.Context, id string) (*claims.Claim, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("claim repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE id = $1
LIMIT 1`, id)
	return scanClaim(row)
}

// ListByUser returns a user's claims, newest first.
func (r *ClaimRepository) ListByUser(ctx context.Context, userID string) ([]claims.Claim, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("claim repo: nil db")
	}
	return r.list(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE user_id = $1
ORDER BY expense_date DESC, created_at DESC`, userID)
}

// ListByAssociation returns an association's claims, newest first.
func (r *ClaimRepository) ListByAssociation(ctx context.Context, associationID string) ([]claims.Claim, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("claim repo: nil db")
	}
	return r.list(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE association_id = $1
ORDER BY expense_date DESC, created_at DESC`, associationID)
}

// ListByUserAndDate returns a user's claims on a calendar day. This is the
// candidate pool for duplicate detection.
func (r *ClaimRepository) ListByUserAndDate(ctx context.Context, userID string, date time.Time) ([]claims.Claim, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("claim repo: nil db")
	}
	dayStart := time.Date(date.UTC().Year(), date.UTC().Month(), date.UTC().Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return r.list(ctx, `
SELECT `+claimColumns+`
FROM claims
WHERE user_id = $1 AND expense_date >= $2 AND expense_date < $3
ORDER BY created_at ASC`, userID, dayStart, dayEnd)
}

func (r *ClaimRepository) list(ctx context.Context, query string, args ...any) ([]claims.Claim, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []claims.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		if claim != nil {
			result = append(result, *claim)
		}
	}
	return result, rows.Err()
}

// UpdateStatus transitions a claim with an optimistic version predicate.
func (r *ClaimRepository) UpdateStatus(ctx context.Context, id, status string, expectedVersion int, updatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("claim repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE claims
SET status = $1, version = version + 1, updated_at = $2
WHERE id = $3 AND version = $4`, status, updatedAt, id, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return claims.ErrVersionConflict
	}
	return nil
}

// SaveCalculation upserts the calculation snapshot for a claim.
func (r *ClaimRepository) SaveCalculation(ctx context.Context, claimID string, calc reimbursement.Calculation, duplicateIDs []string, calculatedAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("claim repo: nil db")
	}
	breakdown, err := json.Marshal(calc.Breakdown)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(calc.Warnings)
	if err != nil {
		return err
	}
	duplicates, err := json.Marshal(duplicateIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO claim_calculations (
	claim_id, base_amount, rate_applied, calculated_amount, reimbursable_amount,
	exceeds_ceiling, requires_second_validation, breakdown, warnings, duplicate_ids, calculated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (claim_id) DO UPDATE SET
	base_amount = EXCLUDED.base_amount,
	rate_applied = EXCLUDED.rate_applied,
	calculated_amount = EXCLUDED.calculated_amount,
	reimbursable_amount = EXCLUDED.reimbursable_amount,
	exceeds_ceiling = EXCLUDED.exceeds_ceiling,
	requires_second_validation = EXCLUDED.requires_second_validation,
	breakdown = EXCLUDED.breakdown,
	warnings = EXCLUDED.warnings,
	duplicate_ids = EXCLUDED.duplicate_ids,
	calculated_at = EXCLUDED.calculated_at`,
		claimID, calc.BaseAmount, calc.RateApplied, calc.CalculatedAmount, calc.ReimbursableAmount,
		calc.ExceedsCeiling, calc.RequiresSecondValidation, breakdown, warnings, duplicates, calculatedAt)
	return err
}

// GetCalculation fetches the stored calculation snapshot, or nil.
func (r *ClaimRepository) GetCalculation(ctx context.Context, claimID string) (*reimbursement.Calculation, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("claim repo: nil db")
	}
	var calc reimbursement.Calculation
	var breakdown, warnings []byte
	err := r.db.QueryRowContext(ctx, `
SELECT base_amount, rate_applied, calculated_amount, reimbursable_amount,
	exceeds_ceiling, requires_second_validation, breakdown, warnings
FROM claim_calculations
WHERE claim_id = $1
LIMIT 1`, claimID).Scan(
		&calc.BaseAmount, &calc.RateApplied, &calc.CalculatedAmount, &calc.ReimbursableAmount,
		&calc.ExceedsCeiling, &calc.RequiresSecondValidation, &breakdown, &warnings)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &calc.Breakdown); err != nil {
			return nil, err
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &calc.Warnings); err != nil {
			return nil, err
		}
	}
	return &calc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*claims.Claim, error) {
	var claim claims.Claim
	var label sql.NullString
	var iban sql.NullString
	err := row.Scan(
		&claim.ID,
		&claim.TenantID,
		&claim.AssociationID,
		&claim.UserID,
		&claim.UserRole,
		&claim.Category,
		&label,
		&claim.ExpenseDate,
		&claim.AmountTTC,
		&claim.DistanceKM,
		&claim.FiscalHorsepower,
		&iban,
		&claim.Status,
		&claim.Version,
		&claim.CreatedAt,
		&claim.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if label.Valid {
		claim.Label = label.String
	}
	if iban.Valid {
		claim.IBAN = iban.String
	}
	claim.ExpenseDate = claim.ExpenseDate.UTC()
	claim.CreatedAt = claim.CreatedAt.UTC()
	claim.UpdatedAt = claim.UpdatedAt.UTC()
	return &claim, nil
}
