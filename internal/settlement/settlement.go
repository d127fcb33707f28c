package settlement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pixwebhook/internal/billing"
	"pixwebhook/internal/logger"
	"pixwebhook/internal/money"
	"pixwebhook/internal/reconciliation"
)

// Status is the outcome of a settlement attempt
type Status string

const (
	StatusSettled          Status = "settled"
	StatusPartiallyApplied Status = "partially_applied"
	StatusNoOpenInvoices   Status = "no_open_invoices"
	StatusAmountMismatch   Status = "amount_mismatch"
	StatusQueryError       Status = "query_error"
	StatusTransactionError Status = "transaction_error"
)

// referencePrefix tags transactions created from Pix notifications
const referencePrefix = "PIX-"

// Application is the result of applying the transaction to one invoice
type Application struct {
	InvoiceID int64       `json:"invoice_id"`
	Amount    money.Cents `json:"amount"`
	Applied   bool        `json:"applied"`
	Error     string      `json:"error,omitempty"`
}

// Outcome describes what happened in the billing system
type Outcome struct {
	Status        Status                   `json:"status"`
	Paid          money.Cents              `json:"paid"`
	OpenInvoices  []reconciliation.Invoice `json:"open_invoices,omitempty"`
	Match         *reconciliation.Result   `json:"match,omitempty"`
	Reference     string                   `json:"reference,omitempty"`
	TransactionID *int64                   `json:"transaction_id,omitempty"`
	Applications  []Application            `json:"applications,omitempty"`
}

// Settled reports whether a billing transaction was created
func (o *Outcome) Settled() bool {
	return o.TransactionID != nil
}

// Executor reconciles a payment against open invoices and records it
type Executor struct {
	billing billing.Client
	opts    reconciliation.Options
}

// NewExecutor creates an executor over a billing client
func NewExecutor(c billing.Client, opts reconciliation.Options) *Executor {
	return &Executor{billing: c, opts: opts}
}

// Reference builds the deterministic transaction reference for a set of invoices
func Reference(invoices []reconciliation.Invoice) string {
	ids := make([]string, len(invoices))
	for i, inv := range invoices {
		ids[i] = strconv.FormatInt(inv.ID, 10)
	}
	return referencePrefix + strings.Join(ids, "-")
}

// Settle fetches the open invoices of accountID, matches paid against them,
// then creates one transaction and applies it to each matched invoice.
// Query, transaction and partial application failures come back both in the
// outcome status and as a non-nil error. No call is retried.
func (e *Executor) Settle(ctx context.Context, accountID int64, paid money.Cents) (*Outcome, error) {
	l := logger.FromContext(ctx).With("account_id", accountID, "paid", paid.String())
	out := &Outcome{Paid: paid}

	open, err := e.billing.ListOpenInvoices(ctx, accountID)
	if err != nil {
		out.Status = StatusQueryError
		l.Error("settlement_query_failed", "error", err.Error())
		return out, fmt.Errorf("query open invoices: %w", err)
	}
	if len(open) == 0 {
		out.Status = StatusNoOpenInvoices
		l.Info("settlement_no_open_invoices")
		return out, nil
	}

	out.OpenInvoices = make([]reconciliation.Invoice, len(open))
	for i, inv := range open {
		out.OpenInvoices[i] = reconciliation.Invoice{ID: inv.ID, Total: inv.Total}
	}

	match := reconciliation.MatchWith(out.OpenInvoices, paid, e.opts)
	if match == nil {
		out.Status = StatusAmountMismatch
		l.Warn("settlement_amount_mismatch", "open_invoices", len(open))
		return out, nil
	}
	out.Match = match
	out.Reference = Reference(match.Invoices)
	l = l.With("reference", out.Reference, "match_kind", match.Kind)

	allocations := match.Allocations()
	tx := billing.Transaction{
		AccountID:   accountID,
		Amount:      paid,
		Reference:   out.Reference,
		Note:        "Pix " + string(match.Kind),
		Allocations: make([]billing.Allocation, len(allocations)),
	}
	for i, a := range allocations {
		tx.Allocations[i] = billing.Allocation{InvoiceID: a.InvoiceID, Amount: a.Amount}
	}

	txID, err := e.billing.CreateTransaction(ctx, tx)
	if err != nil {
		out.Status = StatusTransactionError
		l.Error("settlement_transaction_failed", "error", err.Error())
		return out, fmt.Errorf("create transaction %s: %w", out.Reference, err)
	}
	out.TransactionID = &txID
	l.Info("settlement_transaction_created", "transaction_id", txID)

	var failures []error
	for _, alloc := range allocations {
		app := Application{InvoiceID: alloc.InvoiceID, Amount: alloc.Amount}
		if err := e.billing.ApplyTransaction(ctx, txID, alloc.InvoiceID, alloc.Amount); err != nil {
			app.Error = err.Error()
			failures = append(failures, err)
			l.Error("settlement_apply_failed", "invoice_id", alloc.InvoiceID, "error", err.Error())
		} else {
			app.Applied = true
			l.Info("settlement_applied", "invoice_id", alloc.InvoiceID, "amount", alloc.Amount.String())
		}
		out.Applications = append(out.Applications, app)
	}

	if len(failures) > 0 {
		out.Status = StatusPartiallyApplied
		return out, fmt.Errorf("apply transaction %d: %d of %d invoices failed: %w",
			txID, len(failures), len(out.Applications), errors.Join(failures...))
	}

	out.Status = StatusSettled
	l.Info("settlement_completed", "invoices", len(out.Applications))
	return out, nil
}
