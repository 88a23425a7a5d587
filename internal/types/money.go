// README: Common value objects (IDs, money) shared across modules.
package types

import "fmt"

// DefaultCurrency is used for every tariff; the schema has no currency column.
const DefaultCurrency = "UAH"

type ID string

// Money holds an amount in minor units (kopecks).
type Money struct {
	Amount   int64
	Currency string
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.Currency}
}

// Decimal renders the amount with two fraction digits, e.g. 12050 -> "120.50".
func (m Money) Decimal() string {
	sign := ""
	a := m.Amount
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%02d", sign, a/100, a%100)
}

func (m Money) String() string {
	if m.Currency == "" {
		return m.Decimal()
	}
	return m.Decimal() + " " + m.Currency
}
