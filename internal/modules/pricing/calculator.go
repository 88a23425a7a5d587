package pricing

import "ridehail/internal/types"

// ComputeCost returns base + distance*perKm + duration*perMinute in minor units.
// Each rate term is rounded half-up to the minor unit. The result is linear in
// both quantities and equals the base price when both are zero.
func ComputeCost(t Tariff, distanceKm, durationMin Quantity) types.Money {
	currency := t.BasePrice.Currency
	if currency == "" {
		currency = types.DefaultCurrency
	}
	total := t.BasePrice.Amount +
		applyRate(t.PerKm.Amount, distanceKm) +
		applyRate(t.PerMinute.Amount, durationMin)
	return types.Money{Amount: total, Currency: currency}
}

// applyRate multiplies a per-unit rate by a fixed-point quantity. Whole units
// and the fraction are multiplied separately so the product cannot overflow
// for quantities up to MaxQuantity.
func applyRate(rate int64, q Quantity) int64 {
	if q <= 0 || rate == 0 {
		return 0
	}
	if q > MaxQuantity {
		q = MaxQuantity
	}
	whole := int64(q) / quantityScale
	frac := int64(q) % quantityScale
	return rate*whole + (rate*frac+quantityScale/2)/quantityScale
}
