package metrics

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// CoerceAmount parses a raw source amount. ok is false for NULL, blank or
// unparseable text; callers treat that as NULL and keep the row.
func CoerceAmount(raw *string) (decimal.Decimal, bool) {
	if raw == nil {
		return decimal.Decimal{}, false
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// NullAmount returns the coerced amount as a nullable column value
func NullAmount(raw *string) decimal.NullDecimal {
	d, ok := CoerceAmount(raw)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

// CountUncoercible counts deals whose non-null amount failed to parse
func CountUncoercible(deals []contracts.Deal) int {
	n := 0
	for _, d := range deals {
		if d.Amount == nil || strings.TrimSpace(*d.Amount) == "" {
			continue
		}
		if _, ok := CoerceAmount(d.Amount); !ok {
			n++
		}
	}
	return n
}

// nullSum is SQL SUM semantics: NULL until the first non-null input
type nullSum struct {
	total decimal.Decimal
	valid bool
}

func (s *nullSum) add(raw *string) {
	d, ok := CoerceAmount(raw)
	if !ok {
		return
	}
	s.total = s.total.Add(d)
	s.valid = true
}

func (s nullSum) value() decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: s.total, Valid: s.valid}
}

// compareNullDesc orders non-null values descending, then nulls
func compareNullDesc(a, b decimal.NullDecimal) int {
	switch {
	case !a.Valid && !b.Valid:
		return 0
	case !a.Valid:
		return 1
	case !b.Valid:
		return -1
	}
	return b.Decimal.Cmp(a.Decimal)
}
