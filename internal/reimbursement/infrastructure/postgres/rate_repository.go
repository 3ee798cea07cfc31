package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	reimbursement "fede-claims/internal/reimbursement/domain"
)

// RateRepository loads and administers the time-bounded rate tables.
// Rows are closed by setting valid_to, never deleted, so historical
// calculations stay auditable.
type RateRepository struct {
	db       *sql.DB
	tenantID string
}

// RateOption configures the repository.
type RateOption func(*RateRepository)

// WithTenantID sets the tenant id scope.
func WithTenantID(tenantID string) RateOption {
	return func(r *RateRepository) {
		if tenantID != "" {
			r.tenantID = tenantID
		}
	}
}

// NewRateRepository constructs a repository.
func NewRateRepository(db *sql.DB, opts ...RateOption) *RateRepository {
	r := &RateRepository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RateSetAt loads the snapshot of rows valid at a given instant. This is
// the caller-side filtering the calculation engine relies on: expired rows
// never reach the engine.
func (r *RateRepository) RateSetAt(ctx context.Context, at time.Time) (reimbursement.RateSet, error) {
	var rates reimbursement.RateSet
	if r == nil || r.db == nil {
		return rates, errors.New("rate repo: nil db")
	}
	if at.IsZero() {
		return rates, errors.New("rate repo: invalid instant")
	}
	at = at.UTC()

	mileage, err := r.mileageRatesAt(ctx, at)
	if err != nil {
		return rates, err
	}
	roles, err := r.roleRatesAt(ctx, at)
	if err != nil {
		return rates, err
	}
	ceilings, err := r.ceilingsAt(ctx, at)
	if err != nil {
		return rates, err
	}
	bands, err := r.trainBandsAt(ctx, at)
	if err != nil {
		return rates, err
	}

	rates.MileageRates = mileage
	rates.RoleRates = roles
	rates.Ceilings = ceilings
	rates.TrainBands = bands
	return rates, nil
}

func (r *RateRepository) mileageRatesAt(ctx context.Context, at time.Time) ([]reimbursement.MileageRate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT horsepower, rate_per_km, valid_from, valid_to
FROM mileage_rates
WHERE tenant_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
ORDER BY horsepower ASC`, r.tenantID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.MileageRate
	for rows.Next() {
		var rate reimbursement.MileageRate
		var validTo sql.NullTime
		if err := rows.Scan(&rate.Horsepower, &rate.RatePerKM, &rate.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		rate.ValidFrom = rate.ValidFrom.UTC()
		if validTo.Valid {
			rate.ValidTo = validTo.Time.UTC()
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

func (r *RateRepository) roleRatesAt(ctx context.Context, at time.Time) ([]reimbursement.RoleRate, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT tier, percentage, valid_from, valid_to
FROM role_rates
WHERE tenant_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
ORDER BY tier ASC`, r.tenantID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.RoleRate
	for rows.Next() {
		var rate reimbursement.RoleRate
		var tier string
		var validTo sql.NullTime
		if err := rows.Scan(&tier, &rate.Percentage, &rate.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		rate.Tier = reimbursement.RoleTier(tier)
		rate.ValidFrom = rate.ValidFrom.UTC()
		if validTo.Valid {
			rate.ValidTo = validTo.Time.UTC()
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

func (r *RateRepository) ceilingsAt(ctx context.Context, at time.Time) ([]reimbursement.Ceiling, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT category, per_unit, per_day, per_month, requires_validation, valid_from, valid_to
FROM expense_ceilings
WHERE tenant_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
ORDER BY category ASC`, r.tenantID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.Ceiling
	for rows.Next() {
		var ceiling reimbursement.Ceiling
		var perUnit, perDay, perMonth sql.NullFloat64
		var validTo sql.NullTime
		if err := rows.Scan(&ceiling.Category, &perUnit, &perDay, &perMonth,
			&ceiling.RequiresValidation, &ceiling.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		if perUnit.Valid {
			ceiling.PerUnit = perUnit.Float64
		}
		if perDay.Valid {
			ceiling.PerDay = perDay.Float64
		}
		if perMonth.Valid {
			ceiling.PerMonth = perMonth.Float64
		}
		ceiling.ValidFrom = ceiling.ValidFrom.UTC()
		if validTo.Valid {
			ceiling.ValidTo = validTo.Time.UTC()
		}
		result = append(result, ceiling)
	}
	return result, rows.Err()
}

func (r *RateRepository) trainBandsAt(ctx context.Context, at time.Time) ([]reimbursement.TrainBand, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT min_km, max_km, percentage, max_amount, label
FROM train_bands
WHERE tenant_id = $1 AND valid_from <= $2 AND (valid_to IS NULL OR valid_to > $2)
ORDER BY min_km ASC`, r.tenantID, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.TrainBand
	for rows.Next() {
		var band reimbursement.TrainBand
		var maxAmount sql.NullFloat64
		if err := rows.Scan(&band.MinKM, &band.MaxKM, &band.Percentage, &maxAmount, &band.Label); err != nil {
			return nil, err
		}
		if maxAmount.Valid {
			band.MaxAmount = maxAmount.Float64
		}
		result = append(result, band)
	}
	return result, rows.Err()
}

// CreateMileageRate closes the currently-open row for the horsepower class
// and inserts the new one in a single transaction.
func (r *RateRepository) CreateMileageRate(ctx context.Context, rate reimbursement.MileageRate) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	if rate.Horsepower <= 0 || rate.RatePerKM <= 0 {
		return errors.New("rate repo: invalid mileage rate")
	}
	if rate.ValidFrom.IsZero() {
		rate.ValidFrom = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE mileage_rates
SET valid_to = $1
WHERE tenant_id = $2 AND horsepower = $3 AND valid_to IS NULL`,
		rate.ValidFrom, r.tenantID, rate.Horsepower)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO mileage_rates (tenant_id, horsepower, rate_per_km, valid_from, valid_to)
VALUES ($1,$2,$3,$4,NULL)`, r.tenantID, rate.Horsepower, rate.RatePerKM, rate.ValidFrom)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateRoleRate closes the currently-open row for the tier and inserts the new one.
func (r *RateRepository) CreateRoleRate(ctx context.Context, rate reimbursement.RoleRate) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	if rate.Tier == "" || rate.Percentage < 0 || rate.Percentage > 1 {
		return errors.New("rate repo: invalid role rate")
	}
	if rate.ValidFrom.IsZero() {
		rate.ValidFrom = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE role_rates
SET valid_to = $1
WHERE tenant_id = $2 AND tier = $3 AND valid_to IS NULL`,
		rate.ValidFrom, r.tenantID, string(rate.Tier))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO role_rates (tenant_id, tier, percentage, valid_from, valid_to)
VALUES ($1,$2,$3,$4,NULL)`, r.tenantID, string(rate.Tier), rate.Percentage, rate.ValidFrom)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CreateCeiling closes the currently-open row for the category and inserts the new one.
func (r *RateRepository) CreateCeiling(ctx context.Context, ceiling reimbursement.Ceiling) error {
	if r == nil || r.db == nil {
		return errors.New("rate repo: nil db")
	}
	if ceiling.Category == "" {
		return errors.New("rate repo: empty ceiling category")
	}
	if ceiling.ValidFrom.IsZero() {
		ceiling.ValidFrom = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
UPDATE expense_ceilings
SET valid_to = $1
WHERE tenant_id = $2 AND category = $3 AND valid_to IS NULL`,
		ceiling.ValidFrom, r.tenantID, ceiling.Category)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO expense_ceilings (tenant_id, category, per_unit, per_day, per_month, requires_validation, valid_from, valid_to)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULL)`,
		r.tenantID, ceiling.Category,
		nullableFloat(ceiling.PerUnit), nullableFloat(ceiling.PerDay), nullableFloat(ceiling.PerMonth),
		ceiling.RequiresValidation, ceiling.ValidFrom)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListMileageRates returns the full history for the admin screens.
func (r *RateRepository) ListMileageRates(ctx context.Context) ([]reimbursement.MileageRate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT horsepower, rate_per_km, valid_from, valid_to
FROM mileage_rates
WHERE tenant_id = $1
ORDER BY horsepower ASC, valid_from DESC`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.MileageRate
	for rows.Next() {
		var rate reimbursement.MileageRate
		var validTo sql.NullTime
		if err := rows.Scan(&rate.Horsepower, &rate.RatePerKM, &rate.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		rate.ValidFrom = rate.ValidFrom.UTC()
		if validTo.Valid {
			rate.ValidTo = validTo.Time.UTC()
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

// ListRoleRates returns the full history for the admin screens.
func (r *RateRepository) ListRoleRates(ctx context.Context) ([]reimbursement.RoleRate, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT tier, percentage, valid_from, valid_to
FROM role_rates
WHERE tenant_id = $1
ORDER BY tier ASC, valid_from DESC`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.RoleRate
	for rows.Next() {
		var rate reimbursement.RoleRate
		var tier string
		var validTo sql.NullTime
		if err := rows.Scan(&tier, &rate.Percentage, &rate.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		rate.Tier = reimbursement.RoleTier(tier)
		rate.ValidFrom = rate.ValidFrom.UTC()
		if validTo.Valid {
			rate.ValidTo = validTo.Time.UTC()
		}
		result = append(result, rate)
	}
	return result, rows.Err()
}

// ListCeilings returns the full history for the admin screens.
func (r *RateRepository) ListCeilings(ctx context.Context) ([]reimbursement.Ceiling, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rate repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT category, per_unit, per_day, per_month, requires_validation, valid_from, valid_to
FROM expense_ceilings
WHERE tenant_id = $1
ORDER BY category ASC, valid_from DESC`, r.tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []reimbursement.Ceiling
	for rows.Next() {
		var ceiling reimbursement.Ceiling
		var perUnit, perDay, perMonth sql.NullFloat64
		var validTo sql.NullTime
		if err := rows.Scan(&ceiling.Category, &perUnit, &perDay, &perMonth,
			&ceiling.RequiresValidation, &ceiling.ValidFrom, &validTo); err != nil {
			return nil, err
		}
		if perUnit.Valid {
			ceiling.PerUnit = perUnit.Float64
		}
		if perDay.Valid {
			ceiling.PerDay = perDay.Float64
		}
		if perMonth.Valid {
			ceiling.PerMonth = perMonth.Float64
		}
		ceiling.ValidFrom = ceiling.ValidFrom.UTC()
		if validTo.Valid {
			ceiling.ValidTo = validTo.Time.UTC()
		}
		result = append(result, ceiling)
	}
	return result, rows.Err()
}

func nullableFloat(value float64) any {
	if value <= 0 {
		return nil
	}
	return value
}
