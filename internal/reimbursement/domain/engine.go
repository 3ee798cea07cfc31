package reimbursement

import (
	"fmt"
	"math"

	claims "fede-claims/internal/claims/domain"
)

const (
	// SecondValidationThreshold forces a second approval at or above this amount.
	SecondValidationThreshold = 500.0
	// DefaultRolePercentage applies when no role-rate row matches the tier.
	DefaultRolePercentage = 0.50
)

// BreakdownLine is one named contribution in the audit breakdown.
type BreakdownLine struct {
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

// Calculation is the immutable result of a reimbursement computation.
type Calculation struct {
	BaseAmount               float64         `json:"base_amount"`
	RateApplied              float64         `json:"rate_applied"`
	CalculatedAmount         float64         `json:"calculated_amount"`
	ReimbursableAmount       float64         `json:"reimbursable_amount"`
	ExceedsCeiling           bool            `json:"exceeds_ceiling"`
	RequiresSecondValidation bool            `json:"requires_second_validation"`
	Breakdown                []BreakdownLine `json:"breakdown"`
	Warnings                 []string        `json:"warnings"`
}

// Calculate computes the reimbursable amount for a claim against a rate
// snapshot. It is deterministic and total: missing rate data degrades to a
// documented default and a warning, never an error. Train claims skip the
// role-rate step since the band percentage already encodes the payout
// fraction. Train refunds are rounded to 2 decimals; other paths carry
// float precision and are rounded by the caller at display time.
func Calculate(claim claims.Claim, tier RoleTier, rates RateSet) Calculation {
	calc := Calculation{RateApplied: 1.0}

	var base float64
	skipRoleRate := false

	switch claim.Category {
	case claims.CategoryCar:
		rate, ok := findMileageRate(rates.MileageRates, claim.FiscalHorsepower)
		if !ok {
			base = claim.AmountTTC
			calc.Warnings = append(calc.Warnings, fmt.Sprintf(
				"aucun barème kilométrique pour %d CV, montant déclaré utilisé", claim.FiscalHorsepower))
			calc.Breakdown = append(calc.Breakdown, BreakdownLine{
				Description: "Montant déclaré (barème kilométrique absent)", Value: base})
		} else {
			base = claim.DistanceKM * rate.RatePerKM
			calc.Breakdown = append(calc.Breakdown, BreakdownLine{
				Description: fmt.Sprintf("Indemnité kilométrique : %.0f km x %.3f €/km (%d CV)",
					claim.DistanceKM, rate.RatePerKM, rate.Horsepower),
				Value: base,
			})
		}
	case claims.CategoryTrain:
		bands := rates.TrainBands
		if len(bands) == 0 {
			bands = DefaultTrainBands()
		}
		band, ok := FindBand(bands, claim.DistanceKM)
		if !ok {
			band = TrainBand{Percentage: OutOfBandPercentage, MaxAmount: OutOfBandCap, Label: OutOfBandLabel}
			calc.Warnings = append(calc.Warnings, fmt.Sprintf(
				"distance de %.0f km hors barème train, tranche par défaut à %.0f%% appliquée",
				claim.DistanceKM, OutOfBandPercentage))
		}
		calc.Breakdown = append(calc.Breakdown, BreakdownLine{
			Description: fmt.Sprintf("Billet de train (%s, %.0f%%)", band.Label, band.Percentage),
			Value:       claim.AmountTTC,
		})
		refund := Round2(claim.AmountTTC * band.Percentage / 100)
		if band.MaxAmount > 0 && refund > band.MaxAmount {
			refund = band.MaxAmount
		}
		base = refund
		calc.Breakdown = append(calc.Breakdown, BreakdownLine{
			Description: "Remboursement train après plafond de tranche", Value: refund})
		skipRoleRate = true
	default:
		base = claim.AmountTTC
		calc.Breakdown = append(calc.Breakdown, BreakdownLine{
			Description: "Montant TTC déclaré", Value: base})
	}

	calc.BaseAmount = base
	calc.CalculatedAmount = base

	if !skipRoleRate {
		percentage := DefaultRolePercentage
		if rate, ok := findRoleRate(rates.RoleRates, tier); ok {
			percentage = rate.Percentage
		} else {
			calc.Warnings = append(calc.Warnings, fmt.Sprintf(
				"aucun taux de remboursement pour le rôle %s, taux par défaut de %.0f%% appliqué",
				tier, DefaultRolePercentage*100))
		}
		calc.RateApplied = percentage
		calc.CalculatedAmount = base * percentage
		calc.Breakdown = append(calc.Breakdown, BreakdownLine{
			Description: fmt.Sprintf("Taux de remboursement de %.0f%% (%s)", percentage*100, tier),
			Value:       calc.CalculatedAmount,
		})
	}

	calc.ReimbursableAmount = calc.CalculatedAmount

	if ceiling, ok := findCeiling(rates.Ceilings, claim.Category); ok {
		if ceiling.PerUnit > 0 && calc.CalculatedAmount > ceiling.PerUnit {
			calc.ReimbursableAmount = ceiling.PerUnit
			calc.ExceedsCeiling = true
			calc.RequiresSecondValidation = true
			calc.Warnings = append(calc.Warnings, fmt.Sprintf(
				"plafond unitaire de %.2f € dépassé", ceiling.PerUnit))
			calc.Breakdown = append(calc.Breakdown, BreakdownLine{
				Description: fmt.Sprintf("Plafond unitaire appliqué (%.2f €)", ceiling.PerUnit),
				Value:       ceiling.PerUnit,
			})
		}
		if ceiling.RequiresValidation {
			calc.RequiresSecondValidation = true
		}
		if ceiling.PerDay > 0 || ceiling.PerMonth > 0 {
			// Daily/monthly ceilings exist in configuration but have no
			// enforcement path here: they would need aggregation over sibling
			// claims, which this per-claim computation cannot perform.
			calc.Warnings = append(calc.Warnings,
				"plafond journalier ou mensuel défini mais non appliqué au calcul unitaire")
		}
	}

	if calc.ReimbursableAmount >= SecondValidationThreshold {
		calc.RequiresSecondValidation = true
		calc.Warnings = append(calc.Warnings, fmt.Sprintf(
			"montant supérieur ou égal au seuil de %.0f €, seconde validation requise",
			SecondValidationThreshold))
	}

	return calc
}

// Round2 rounds a currency amount to 2 decimals.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}
