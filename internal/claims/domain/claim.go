package claims

import "time"

// Expense categories accepted on a claim.
const (
	CategoryCar          = "car"
	CategoryTrain        = "train"
	CategoryTransport    = "transport"
	CategoryMeal         = "meal"
	CategoryHotel        = "hotel"
	CategoryRegistration = "registration"
	CategoryOther        = "other"
)

// Claim statuses.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusValidated = "validated"
	StatusApproved  = "approved"
	StatusPaid      = "paid"
	StatusRefused   = "refused"
	StatusClosed    = "closed"
)

// Claim represents an expense reimbursement claim.
type Claim struct {
	ID               string
	TenantID         string
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
	Status           string
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ValidCategory reports whether value is a known expense category.
func ValidCategory(value string) bool {
	switch value {
	case CategoryCar, CategoryTrain, CategoryTransport, CategoryMeal,
		CategoryHotel, CategoryRegistration, CategoryOther:
		return true
	default:
		return false
	}
}

// TerminalNegative reports whether a status ends the claim without payment.
// Paid claims are not terminal-negative, they still count for duplicate
// matching.
func TerminalNegative(status string) bool {
	return status == StatusRefused || status == StatusClosed
}

// CanTransition reports whether a status transition is allowed.
// requiresSecondValidation inserts the approved step between validation
// and payment.
func CanTransition(from, to string, requiresSecondValidation bool) bool {
	switch to {
	case StatusSubmitted:
		return from == StatusDraft
	case StatusValidated:
		return from == StatusSubmitted
	case StatusApproved:
		return from == StatusValidated && requiresSecondValidation
	case StatusPaid:
		if requiresSecondValidation {
			return from == StatusApproved
		}
		return from == StatusValidated
	case StatusRefused:
		return from == StatusSubmitted || from == StatusValidated || from == StatusApproved
	case StatusClosed:
		return from == StatusPaid || from == StatusRefused
	default:
		return false
	}
}

// SameExpenseDay reports whether two expense dates fall on the same calendar day.
func SameExpenseDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
