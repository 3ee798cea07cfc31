package auth

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrTenantMismatch indicates the resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates the resource was not found.
	ErrNotFound = errors.New("resource not found")
)

// AssociationTenantChecker validates association tenant ownership.
type AssociationTenantChecker interface {
	EnsureAssociationTenant(ctx context.Context, tenantID, associationID string) error
}

// AssociationChecker checks association ownership against the directory table.
type AssociationChecker struct {
	db *sql.DB
}

// NewAssociationChecker constructs an AssociationChecker.
func NewAssociationChecker(db *sql.DB) *AssociationChecker {
	if db == nil {
		return nil
	}
	return &AssociationChecker{db: db}
}

// EnsureAssociationTenant verifies the association belongs to the tenant.
func (c *AssociationChecker) EnsureAssociationTenant(ctx context.Context, tenantID, associationID string) error {
	if c == nil || c.db == nil {
		return nil
	}
	if tenantID == "" || associationID == "" {
		return nil
	}
	var owner string
	err := c.db.QueryRowContext(ctx, `
SELECT tenant_id FROM associations WHERE id = $1 LIMIT 1`, associationID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if owner != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
