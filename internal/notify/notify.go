package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Kind identifies why an operator is being told about a run
type Kind string

const (
	KindClientCreated   Kind = "client_created"
	KindClientIDUpdated Kind = "client_id_updated"
	KindAmountMismatch  Kind = "amount_mismatch"
)

// Event is a human-readable summary for the operator
type Event struct {
	Kind      Kind
	Subject   string
	Body      string
	Client    string
	AccountID *int64
	RunID     string
	At        time.Time
}

// Notifier delivers operator events. Callers treat failures as best effort.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// LogNotifier writes events to the structured log
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier backed by logger
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	attrs := []any{"kind", e.Kind, "subject", e.Subject, "client", e.Client}
	if e.AccountID != nil {
		attrs = append(attrs, "account_id", *e.AccountID)
	}
	if e.RunID != "" {
		attrs = append(attrs, "run_id", e.RunID)
	}
	n.logger.Info("operator_notification", attrs...)
	return nil
}

// Multi fans an event out to every notifier. All sinks are tried; their
// errors are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", n, err))
		}
	}
	return errors.Join(errs...)
}
