package fx

import (
	"log/slog"
	"math"
	"strings"

	"golang.org/x/text/currency"
)

// RateTable maps a source currency code to its target rates.
// Rates are directed; no implicit inverse lookup is performed.
type RateTable map[string]map[string]float64

// Converter converts monetary amounts between currency codes.
type Converter struct {
	rates  RateTable
	logger *slog.Logger
}

// NewConverter constructs a converter over a rate table.
func NewConverter(rates RateTable, logger *slog.Logger) *Converter {
	if rates == nil {
		rates = RateTable{}
	}
	return &Converter{rates: rates, logger: logger}
}

// Convert converts amount from one currency to another. Identity when the
// codes match. A missing pair does not fail: the amount is returned unchanged
// with ok=false and a warning is logged, so a stale rate table degrades
// reporting instead of aborting it.
func (c *Converter) Convert(amount float64, from, to string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to || from == "" || to == "" {
		return amount, true
	}
	rate, ok := c.rates[from][to]
	if !ok || rate <= 0 {
		if c.logger != nil {
			c.logger.Warn("fx rate missing", slog.String("from", from), slog.String("to", to))
		}
		return amount, false
	}
	return round2(amount * rate), true
}

// Rate returns the direct rate for a pair, ok=false when absent.
func (c *Converter) Rate(from, to string) (float64, bool) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1, true
	}
	rate, ok := c.rates[from][to]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// ValidCode reports whether code is a well-formed ISO 4217 currency code.
func ValidCode(code string) bool {
	_, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	return err == nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
