package aggregate

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
	one      = decimal.NewFromInt(1)
	cent     = decimal.New(1, -2)

	currencyUnits = []magnitude{{thousand, "K"}, {million, "M"}, {billion, "B"}}
	balanceUnits  = []magnitude{{thousand, "K"}, {million, "M"}}
)

type magnitude struct {
	unit   decimal.Decimal
	suffix string
}

// FormatCurrency renders a USD amount with precision that depends on its
// magnitude: B/M/K suffixes above a thousand, cents above one dollar, up to
// six decimals above a cent and up to eight below.
func FormatCurrency(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.IsZero() {
		return "$0.00"
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	if body, ok := compact(d, currencyUnits); ok {
		return sign + "$" + body
	}

	var body string
	switch {
	case d.GreaterThanOrEqual(one):
		body = grouped(d, 2, 2)
	case d.GreaterThanOrEqual(cent):
		body = grouped(d, 4, 6)
	default:
		body = grouped(d, 6, 8)
	}
	return sign + "$" + body
}

// FormatTokenBalance converts a raw integer balance with the token's decimals
// into a display amount. Unparseable input renders as "0.00".
func FormatTokenBalance(raw string, decimals int32) string {
	amount, err := TokenAmount(raw, decimals)
	if err != nil {
		return "0.00"
	}

	if body, ok := compact(amount, balanceUnits); ok {
		return body
	}

	switch {
	case amount.GreaterThanOrEqual(one):
		return grouped(amount, 2, 4)
	default:
		return grouped(amount, 6, 8)
	}
}

// TokenAmount shifts a raw integer balance by decimals.
func TokenAmount(raw string, decimals int32) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(-decimals), nil
}

// compact renders d with two decimals and the largest suffix in units
// (ascending) that d reaches. When rounding lifts the scaled value to a
// thousand the next suffix is used. ok is false below the first unit.
func compact(d decimal.Decimal, units []magnitude) (string, bool) {
	idx := -1
	for i, m := range units {
		if d.GreaterThanOrEqual(m.unit) {
			idx = i
		}
	}
	if idx < 0 {
		return "", false
	}

	v := d.Div(units[idx].unit).Round(2)
	if v.GreaterThanOrEqual(thousand) && idx+1 < len(units) {
		idx++
		v = d.Div(units[idx].unit).Round(2)
	}
	return v.StringFixed(2) + units[idx].suffix, true
}

// grouped formats a non-negative d with comma-grouped integer digits and
// between minFrac and maxFrac fractional digits.
func grouped(d decimal.Decimal, minFrac, maxFrac int32) string {
	fixed := d.StringFixed(maxFrac)

	intPart, frac, _ := strings.Cut(fixed, ".")
	for int32(len(frac)) > minFrac && strings.HasSuffix(frac, "0") {
		frac = frac[:len(frac)-1]
	}

	whole := decimal.RequireFromString(intPart).IntPart()
	if frac == "" {
		return humanize.Comma(whole)
	}
	return humanize.Comma(whole) + "." + frac
}
