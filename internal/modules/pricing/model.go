// README: Tariff definition and fixed-point quantities used by the fare formula.
package pricing

import (
	"math"
	"strconv"
	"strings"

	"ridehail/internal/apperr"
	"ridehail/internal/types"
)

var ErrTariffNotFound = apperr.New(apperr.KindNotFound, "tariff not found")

type Tariff struct {
	ID        string
	Name      string
	BasePrice types.Money
	PerKm     types.Money
	PerMinute types.Money
}

// Quantity is a non-negative distance or duration in thousandths (5.25 km -> 5250).
type Quantity int64

const (
	quantityScale = 1000
	// MaxQuantity caps absurd inputs so cost arithmetic stays within int64.
	MaxQuantity Quantity = 1_000_000 * quantityScale
)

// QuantityFromFloat rounds f to thousandths. NaN, infinities and values <= 0
// become zero; values above MaxQuantity are clamped.
func QuantityFromFloat(f float64) Quantity {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= float64(MaxQuantity/quantityScale) {
		return MaxQuantity
	}
	return Quantity(math.Round(f * quantityScale))
}

// ParseQuantity reads the longest numeric prefix of s ("5km" -> 5, "2.5 min" -> 2.5).
// Anything without a usable prefix, or negative, is zero. It never fails.
func ParseQuantity(s string) Quantity {
	prefix := numericPrefix(strings.TrimSpace(s))
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		// out of range for float64
		return 0
	}
	return QuantityFromFloat(f)
}

func numericPrefix(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if digits+frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return ""
	}
	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			exp++
		}
		if exp > 0 {
			end = j
		}
	}
	return s[:end]
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func (q Quantity) Float64() float64 {
	return float64(q) / quantityScale
}

// String renders the quantity without trailing zeros, e.g. 5250 -> "5.25".
func (q Quantity) String() string {
	return strconv.FormatFloat(q.Float64(), 'f', -1, 64)
}

type Quote struct {
	Tariff      Tariff
	DistanceKm  Quantity
	DurationMin Quantity
	Total       types.Money
}
