package enums

import (
	"fmt"
	"strings"
)

// Currency is the ISO-4217 lowercase code the gateway settles in.
type Currency string

const (
	CurrencyUSD Currency = "usd"
	CurrencyEUR Currency = "eur"
	CurrencyGBP Currency = "gbp"
)

// CurrencyDefault is applied when a purchase request omits the currency.
const CurrencyDefault = CurrencyUSD

var validCurrencies = []Currency{
	CurrencyUSD,
	CurrencyEUR,
	CurrencyGBP,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into a Currency, defaulting empty input.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return CurrencyDefault, nil
	}
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
