// Package fees computes platform fees on charging sessions.
package fees

import (
	"math"

	"chargeshare/backend/services/charging-service/internal/models"
)

// CentsPerUnit converts currency units into the smallest currency unit.
const CentsPerUnit = 100

// Breakdown is the priced result of a fee computation, in cents.
type Breakdown struct {
	Base  int64 `json:"base"`
	Fee   int64 `json:"fee"`
	Total int64 `json:"total"`
}

// Calculate returns fee = max(minimumFee, base*percentage/100) and total = base + fee.
// The percentage product is rounded half away from zero exactly once.
func Calculate(baseCents int64, cfg models.FeesConfig) Breakdown {
	if baseCents < 0 {
		baseCents = 0
	}
	minFee := ToCents(cfg.MinimumFee)
	pctFee := int64(math.Round(float64(baseCents) * cfg.Percentage / 100))

	fee := pctFee
	if minFee > fee {
		fee = minFee
	}
	return Breakdown{Base: baseCents, Fee: fee, Total: baseCents + fee}
}

// BaseAmount prices the requested energy.
func BaseAmount(kwNeeded float64, pricePerKWhCents int64) int64 {
	if kwNeeded <= 0 || pricePerKWhCents <= 0 {
		return 0
	}
	return int64(math.Round(kwNeeded * float64(pricePerKWhCents)))
}

// ToCents converts an amount in currency units to cents.
func ToCents(units float64) int64 {
	return int64(math.Round(units * CentsPerUnit))
}
