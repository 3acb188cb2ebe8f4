// Package ratetable holds the term-keyed base interest rates and the fee
// schedule used to price quotes. A Table is an immutable snapshot; replacing
// rates means building a new Table and swapping it in at the holder.
package ratetable

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptyRateTable indicates the engine was configured without any rates.
var ErrEmptyRateTable = errors.New("rate table has no entries")

// Fee predicate tags. Fees tagged AppliesAlways are included on every quote;
// conditional tags are matched against the FeeContext.
const (
	AppliesAlways          = "always"
	AppliesPrivateSaleOnly = "private-sale-only"
)

// Entry maps a loan term in months to a base annual interest rate.
type Entry struct {
	TermMonths  int     `json:"termMonths" yaml:"termMonths"`
	RatePercent float64 `json:"ratePercent" yaml:"ratePercent"`
}

// Fee is a single fee line on a quote. Amounts are integer cents.
type Fee struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	AmountCents int64  `json:"amountCents" yaml:"amountCents"`
	AppliesWhen string `json:"appliesWhen" yaml:"appliesWhen"`
}

// FeeContext carries the quote attributes that conditional fees depend on.
type FeeContext struct {
	PrivateSale bool
}

// Table is a read-only snapshot of rates and fees.
type Table struct {
	entries []Entry
	fees    []Fee
}

// New builds a Table from the given entries and fees. Entries are stored
// sorted by term; a duplicate term is an error since each bracket must price
// unambiguously.
func New(entries []Entry, fees []Fee) (*Table, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TermMonths < sorted[j].TermMonths
	})

	for i := range sorted {
		if sorted[i].TermMonths <= 0 {
			return nil, fmt.Errorf("rate table term must be positive, got %d", sorted[i].TermMonths)
		}
		if sorted[i].RatePercent < 0 {
			return nil, fmt.Errorf("rate for term %d must be non-negative, got %.2f",
				sorted[i].TermMonths, sorted[i].RatePercent)
		}
		if i > 0 && sorted[i].TermMonths == sorted[i-1].TermMonths {
			return nil, fmt.Errorf("duplicate rate table term %d", sorted[i].TermMonths)
		}
	}

	for _, fee := range fees {
		if fee.AmountCents < 0 {
			return nil, fmt.Errorf("fee %q amount must be non-negative, got %d", fee.Name, fee.AmountCents)
		}
	}

	copiedFees := make([]Fee, len(fees))
	copy(copiedFees, fees)

	return &Table{entries: sorted, fees: copiedFees}, nil
}

// RateForTerm resolves the base annual rate for a requested term. Pricing is
// flat per bracket: a term between configured brackets takes the rate of the
// nearest configured term not exceeding it, and a term below the lowest
// bracket takes the lowest bracket's rate. Returns ErrEmptyRateTable when no
// rates are configured.
func (t *Table) RateForTerm(termMonths int) (float64, error) {
	if len(t.entries) == 0 {
		return 0, ErrEmptyRateTable
	}

	// entries are sorted ascending; walk down from the largest bracket.
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].TermMonths <= termMonths {
			return t.entries[i].RatePercent, nil
		}
	}
	return t.entries[0].RatePercent, nil
}

// FeeSchedule returns the fees applicable under the given context.
// Unconditional fees are always included; unknown predicate tags exclude the
// fee rather than guessing.
func (t *Table) FeeSchedule(ctx FeeContext) []Fee {
	applicable := make([]Fee, 0, len(t.fees))
	for _, fee := range t.fees {
		switch fee.AppliesWhen {
		case AppliesAlways, "":
			applicable = append(applicable, fee)
		case AppliesPrivateSaleOnly:
			if ctx.PrivateSale {
				applicable = append(applicable, fee)
			}
		}
	}
	return applicable
}

// Entries returns a copy of the configured rate entries sorted by term.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Fees returns a copy of the full fee schedule regardless of context.
func (t *Table) Fees() []Fee {
	out := make([]Fee, len(t.fees))
	copy(out, t.fees)
	return out
}
