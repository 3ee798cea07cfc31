package reimbursement

import "time"

// RoleTier classifies a requester for the role-rate lookup. Any role outside
// the national-board and association-admin buckets falls into the member tier.
type RoleTier string

const (
	TierNational    RoleTier = "national_board"
	TierAssociation RoleTier = "association_admin"
	TierMember      RoleTier = "member"
)

// TierForRole maps a raw role string onto the closed tier enumeration.
func TierForRole(role string) RoleTier {
	switch role {
	case string(TierNational):
		return TierNational
	case string(TierAssociation):
		return TierAssociation
	default:
		return TierMember
	}
}

// MileageRate prices a kilometre for a fiscal-horsepower class.
// A zero ValidTo means the row is open-ended.
type MileageRate struct {
	Horsepower int
	RatePerKM  float64
	ValidFrom  time.Time
	ValidTo    time.Time
}

// RoleRate is the reimbursement fraction for a role tier.
type RoleRate struct {
	Tier       RoleTier
	Percentage float64
	ValidFrom  time.Time
	ValidTo    time.Time
}

// Ceiling bounds reimbursements for an expense category. Zero values mean
// the corresponding ceiling is not set.
type Ceiling struct {
	Category           string
	PerUnit            float64
	PerDay             float64
	PerMonth           float64
	RequiresValidation bool
	ValidFrom          time.Time
	ValidTo            time.Time
}

// RateSet is the immutable rate snapshot handed to Calculate. Callers must
// load only the rows valid for the claim's expense date: the engine looks
// rows up by key and does not re-filter by validity.
type RateSet struct {
	MileageRates []MileageRate
	RoleRates    []RoleRate
	Ceilings     []Ceiling
	TrainBands   []TrainBand
}

func findMileageRate(rates []MileageRate, horsepower int) (MileageRate, bool) {
	for _, rate := range rates {
		if rate.Horsepower == horsepower {
			return rate, true
		}
	}
	return MileageRate{}, false
}

func findRoleRate(rates []RoleRate, tier RoleTier) (RoleRate, bool) {
	for _, rate := range rates {
		if rate.Tier == tier {
			return rate, true
		}
	}
	return RoleRate{}, false
}

func findCeiling(ceilings []Ceiling, category string) (Ceiling, bool) {
	for _, ceiling := range ceilings {
		if ceiling.Category == category {
			return ceiling, true
		}
	}
	return Ceiling{}, false
}
