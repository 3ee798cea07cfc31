package reimbursement

import (
	"math"

	claims "fede-claims/internal/claims/domain"
)

// AmountEpsilon absorbs floating rounding when comparing claim amounts.
// It is not a similarity heuristic: amounts further apart are distinct.
const AmountEpsilon = 0.01

// DuplicateResult lists the claims matching a candidate.
type DuplicateResult struct {
	IsDuplicate bool
	Duplicates  []claims.Claim
}

// DetectDuplicates scans existing claims for same-user, same-day,
// same-amount matches. Refused and closed claims never match; every other
// status, including paid, does. The candidate's own id is skipped.
func DetectDuplicates(candidate claims.Claim, existing []claims.Claim) DuplicateResult {
	var result DuplicateResult
	for _, other := range existing {
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.UserID != candidate.UserID {
			continue
		}
		if !claims.SameExpenseDay(other.ExpenseDate, candidate.ExpenseDate) {
			continue
		}
		if math.Abs(other.AmountTTC-candidate.AmountTTC) >= AmountEpsilon {
			continue
		}
		if claims.TerminalNegative(other.Status) {
			continue
		}
		result.Duplicates = append(result.Duplicates, other)
	}
	result.IsDuplicate = len(result.Duplicates) > 0
	return result
}
