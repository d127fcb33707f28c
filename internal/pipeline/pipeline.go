package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pixwebhook/internal/clients"
	"pixwebhook/internal/filestore"
	"pixwebhook/internal/logger"
	"pixwebhook/internal/models"
	"pixwebhook/internal/money"
	"pixwebhook/internal/notify"
	"pixwebhook/internal/parser"
	"pixwebhook/internal/settlement"
)

// Settler records a payment against the open invoices of an account
type Settler interface {
	Settle(ctx context.Context, accountID int64, paid money.Cents) (*settlement.Outcome, error)
}

// Ledger remembers which messages already produced a billing transaction
type Ledger interface {
	GetSettlementByMessage(ctx context.Context, sha string) (*models.Settlement, error)
	RecordSettlement(ctx context.Context, s *models.Settlement) (bool, error)
}

// Config wires the pipeline stages. Notifier, Archive and Ledger are optional.
type Config struct {
	Engine   *parser.Engine
	Resolver *clients.Resolver
	Settler  Settler
	Notifier notify.Notifier
	Archive  filestore.Archiver
	Ledger   Ledger
}

// Pipeline runs extraction, client resolution and settlement for one message
type Pipeline struct {
	cfg Config
	now func() time.Time
}

// New creates a pipeline
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, now: time.Now}
}

// Result is everything a run learned. Extraction and resolver failures are
// returned as errors; settlement problems are reported in Settlement and
// SettlementErr so the extracted data is never lost.
type Result struct {
	RunID         string `json:"run_id"`
	MessageSHA256 string `json:"message_sha256"`
	ArchivePath   string `json:"archive_path,omitempty"`

	Payment *parser.Payment     `json:"payment,omitempty"`
	Client  *clients.Resolution `json:"client,omitempty"`

	Settlement      *settlement.Outcome `json:"settlement,omitempty"`
	SettlementErr   error               `json:"-"`
	SettlementError string              `json:"settlement_error,omitempty"`

	// AlreadySettled is set when the ledger shows this exact message was settled before
	AlreadySettled *models.Settlement `json:"already_settled,omitempty"`
}

// Process runs one raw inbound message through the pipeline
func (p *Pipeline) Process(ctx context.Context, raw []byte) (*Result, error) {
	sum := sha256.Sum256(raw)
	res := &Result{
		RunID:         uuid.NewString(),
		MessageSHA256: hex.EncodeToString(sum[:]),
	}
	ctx = logger.WithRunID(ctx, res.RunID)
	l := logger.FromContext(ctx)
	receivedAt := p.now()

	l.Info("pipeline_started", "bytes", len(raw), "message_sha256", res.MessageSHA256)

	if p.cfg.Archive != nil {
		loc, err := p.cfg.Archive.Archive(ctx, raw, receivedAt)
		if err != nil {
			l.Warn("message_archive_failed", "error", err.Error())
		} else {
			res.ArchivePath = loc
		}
	}

	payment, err := p.cfg.Engine.WithLogger(l).Extract(raw)
	if err != nil {
		l.Error("pipeline_failed", "stage", "extraction", "error", err.Error())
		return res, fmt.Errorf("extract payment: %w", err)
	}
	res.Payment = payment

	resolution, err := p.cfg.Resolver.Resolve(ctx, payment.PayerName, payment.LearnedAccountID)
	res.Client = &resolution
	if err != nil {
		l.Error("pipeline_failed", "stage", "resolve", "status", resolution.Status, "error", err.Error())
		return res, fmt.Errorf("resolve client: %w", err)
	}

	switch resolution.Status {
	case clients.StatusCreated:
		p.notify(ctx, clientCreatedEvent(res, receivedAt))
	case clients.StatusUpdated:
		p.notify(ctx, clientUpdatedEvent(res, receivedAt))
	}

	if !resolution.Settleable() {
		l.Info("pipeline_completed", "client_status", resolution.Status, "settled", false)
		return res, nil
	}

	if p.cfg.Ledger != nil {
		prev, err := p.cfg.Ledger.GetSettlementByMessage(ctx, res.MessageSHA256)
		if err != nil {
			l.Warn("ledger_lookup_failed", "error", err.Error())
		} else if prev != nil {
			res.AlreadySettled = prev
			l.Warn("message_already_settled",
				"reference", prev.Reference,
				"previous_run_id", prev.RunID)
			return res, nil
		}
	}

	outcome, err := p.cfg.Settler.Settle(ctx, *resolution.AccountID, payment.Amount)
	res.Settlement = outcome
	if err != nil {
		res.SettlementErr = err
		res.SettlementError = err.Error()
	}

	if outcome != nil {
		if outcome.Status == settlement.StatusAmountMismatch {
			p.notify(ctx, amountMismatchEvent(res, receivedAt))
		}
		if outcome.Settled() {
			p.record(ctx, res)
		}
	}

	l.Info("pipeline_completed",
		"client_status", resolution.Status,
		"settlement_status", outcomeStatus(outcome),
		"settled", outcome != nil && outcome.Settled())
	return res, nil
}

// notify delivers an operator event; failures never abort the run
func (p *Pipeline) notify(ctx context.Context, e notify.Event) {
	if p.cfg.Notifier == nil {
		return
	}
	if err := p.cfg.Notifier.Notify(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("notification_failed", "kind", e.Kind, "error", err.Error())
	}
}

// record writes the ledger row for a created transaction
func (p *Pipeline) record(ctx context.Context, res *Result) {
	if p.cfg.Ledger == nil {
		return
	}
	out := res.Settlement
	row := &models.Settlement{
		MessageSHA256: res.MessageSHA256,
		Reference:     out.Reference,
		RunID:         res.RunID,
		ClientName:    res.Client.Name,
		AccountID:     *res.Client.AccountID,
		AmountCents:   int64(res.Payment.Amount),
		Status:        string(out.Status),
		TransactionID: out.TransactionID,
	}
	if out.Match != nil {
		for _, inv := range out.Match.Invoices {
			row.InvoiceIDs = append(row.InvoiceIDs, inv.ID)
		}
	}
	if _, err := p.cfg.Ledger.RecordSettlement(ctx, row); err != nil {
		logger.FromContext(ctx).Error("ledger_record_failed", "reference", row.Reference, "error", err.Error())
	}
}

func outcomeStatus(o *settlement.Outcome) string {
	if o == nil {
		return ""
	}
	return string(o.Status)
}
