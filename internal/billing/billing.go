package billing

import (
	"context"
	"errors"

	"pixwebhook/internal/money"
)

// Error kinds returned by billing clients. Callers match with errors.Is.
var (
	// ErrTransport covers unreachable hosts and timeouts
	ErrTransport = errors.New("billing transport error")
	// ErrStatus is a non-success HTTP status from the billing API
	ErrStatus = errors.New("billing API returned an error status")
	// ErrPayload is a response that could not be decoded or made no sense
	ErrPayload = errors.New("billing API returned an invalid payload")
)

// Invoice is an open invoice of one account
type Invoice struct {
	ID       int64
	ClientID int64
	// Total is the amount still open on the invoice
	Total    money.Cents
	Currency string
	DateDue  string
}

// Allocation is the part of a transaction meant for one invoice
type Allocation struct {
	InvoiceID int64
	Amount    money.Cents
}

// Transaction describes a payment to record against an account
type Transaction struct {
	AccountID int64
	Amount    money.Cents
	// Reference is stored as the billing system's transaction id, e.g. PIX-11-12
	Reference string
	Note      string
	// Allocations carries one invoice/amount pair per matched invoice
	Allocations []Allocation
}

// Client is the billing collaborator the settlement step talks to
type Client interface {
	ListOpenInvoices(ctx context.Context, accountID int64) ([]Invoice, error)
	CreateTransaction(ctx context.Context, tx Transaction) (int64, error)
	ApplyTransaction(ctx context.Context, transactionID, invoiceID int64, amount money.Cents) error
}
