package reconciliation

import (
	"pixwebhook/internal/money"
)

// Invoice is an open invoice as reported by the billing system
type Invoice struct {
	ID    int64       `json:"id"`
	Total money.Cents `json:"total"`
}

// Kind identifies which rule produced a match
type Kind string

const (
	KindIndividual Kind = "individual"
	KindTolerance  Kind = "tolerance"
	KindSumTotal   Kind = "sum_total"
	KindSumPartial Kind = "sum_partial"
)

// Result is the outcome of a successful reconciliation attempt
type Result struct {
	Kind     Kind        `json:"kind"`
	Invoices []Invoice   `json:"invoices"`
	Applied  money.Cents `json:"applied"`
}

const (
	// Overpayment allowed by the tolerance rule, in percent of the invoice total
	tolerancePercent = 15

	// Largest subset size tried by the partial sum rule
	maxSubsetSize = 3
)

// Options toggles the non-exact rules
type Options struct {
	// FlexibleRules enables tolerance, sum-of-all and partial-sum matching.
	FlexibleRules bool
}

// DefaultOptions enables every rule
func DefaultOptions() Options {
	return Options{FlexibleRules: true}
}

// Match selects the invoice(s) that paid should settle using all rules.
// Returns nil when no rule applies or the exact rule is ambiguous.
func Match(invoices []Invoice, paid money.Cents) *Result {
	return MatchWith(invoices, paid, DefaultOptions())
}

// MatchWith is Match with explicit options.
// Rules run in order and the first success wins:
//  1. exact amount on a single invoice (several equal invoices are ambiguous)
//  2. tolerance on the only open invoice
//  3. sum of every open invoice
//  4. sum of a subset of size 2 or 3
func MatchWith(invoices []Invoice, paid money.Cents, opts Options) *Result {
	if len(invoices) == 0 || paid <= 0 {
		return nil
	}

	// Strategy 1: exact match
	var exact []Invoice
	for _, inv := range invoices {
		if inv.Total == paid {
			exact = append(exact, inv)
		}
	}
	switch {
	case len(exact) == 1:
		return newMatch(KindIndividual, paid, exact...)
	case len(exact) > 1:
		return nil
	}

	if !opts.FlexibleRules {
		return nil
	}

	// Strategy 2: tolerance on a lone invoice
	if len(invoices) == 1 && withinTolerance(invoices[0].Total, paid) {
		return newMatch(KindTolerance, paid, invoices[0])
	}

	// Strategy 3: everything that is open
	if len(invoices) > 1 && sumOf(invoices) == paid {
		return newMatch(KindSumTotal, paid, invoices...)
	}

	// Strategy 4: smallest subset first, lexicographic index order
	for size := 2; size <= maxSubsetSize && size <= len(invoices); size++ {
		if subset := firstSubset(invoices, size, paid); subset != nil {
			return newMatch(KindSumPartial, paid, subset...)
		}
	}

	return nil
}

// withinTolerance accepts an overpayment of a non-round invoice by a round amount,
// up to tolerancePercent of the invoice total.
func withinTolerance(total, paid money.Cents) bool {
	diff := paid - total
	if diff <= 0 || total <= 0 {
		return false
	}
	if !paid.IsRound() || total.IsRound() {
		return false
	}
	return int64(diff)*100 <= int64(total)*tolerancePercent
}

// firstSubset walks index combinations of the given size in lexicographic order.
func firstSubset(invoices []Invoice, size int, target money.Cents) []Invoice {
	n := len(invoices)
	idx := make([]int, size)
	for i := range idx {
		idx[i] = i
	}

	for {
		var total money.Cents
		for _, i := range idx {
			total += invoices[i].Total
		}
		if total == target {
			picked := make([]Invoice, size)
			for k, i := range idx {
				picked[k] = invoices[i]
			}
			return picked
		}

		// Advance to the next combination
		k := size - 1
		for k >= 0 && idx[k] == n-size+k {
			k--
		}
		if k < 0 {
			return nil
		}
		idx[k]++
		for j := k + 1; j < size; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func sumOf(invoices []Invoice) money.Cents {
	var total money.Cents
	for _, inv := range invoices {
		total += inv.Total
	}
	return total
}

func newMatch(kind Kind, applied money.Cents, invoices ...Invoice) *Result {
	picked := make([]Invoice, len(invoices))
	copy(picked, invoices)
	return &Result{Kind: kind, Invoices: picked, Applied: applied}
}

// Allocations returns how much of the payment goes to each matched invoice.
// Tolerance matches put the whole paid amount on the single invoice; every other
// kind allocates each invoice its own total.
func (m *Result) Allocations() []Allocation {
	out := make([]Allocation, 0, len(m.Invoices))
	for _, inv := range m.Invoices {
		amount := inv.Total
		if m.Kind == KindTolerance {
			amount = m.Applied
		}
		out = append(out, Allocation{InvoiceID: inv.ID, Amount: amount})
	}
	return out
}

// Allocation assigns part of a payment to one invoice
type Allocation struct {
	InvoiceID int64       `json:"invoice_id"`
	Amount    money.Cents `json:"amount"`
}
