package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pixwebhook/internal/money"
)

// ErrExtraction is returned when payer name or amount cannot be found.
// It is terminal for a pipeline run.
var ErrExtraction = errors.New("extraction failed")

// Payment is what the engine pulls out of one notification
type Payment struct {
	PayerName  string      `json:"payer_name"`
	Amount     money.Cents `json:"amount"`
	AmountText string      `json:"amount_text"`
	OccurredAt string      `json:"occurred_at,omitempty"`
	Class      Class       `json:"class"`

	// LearnedAccountID is an account id found above the forwarding banner
	LearnedAccountID *int64 `json:"learned_account_id,omitempty"`

	// Rules that produced the name and amount, for diagnostics
	NameRule   string `json:"name_rule"`
	AmountRule string `json:"amount_rule"`
}

// Engine runs the extraction cascades against inbound messages
type Engine struct {
	logger *slog.Logger

	// LearnAccountID enables the forwarded account-id scan
	LearnAccountID bool
}

// NewEngine creates an extraction engine
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger, LearnAccountID: true}
}

// WithLogger returns a copy of the engine that logs to l
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	c := *e
	c.logger = l
	return &c
}

// Extract normalizes a raw message and extracts payer name, amount and timestamp.
func (e *Engine) Extract(raw []byte) (*Payment, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrExtraction)
	}

	class := Classify(string(raw))
	norm := Normalize(raw)
	e.logger.Debug("extraction_started", "class", class, "bytes", len(raw), "text_chars", len(norm.Text))

	p := &Payment{Class: class}

	for _, c := range cascadesFor(nameRules, class) {
		if v, name, ok := c.first(norm); ok {
			p.PayerName = Sanitize(v)
			p.NameRule = name
			break
		}
	}

	for _, c := range cascadesFor(amountRules, class) {
		if v, name, ok := c.first(norm); ok {
			amount, err := money.ParseBRL(v)
			if err != nil {
				e.logger.Warn("extraction_amount_invalid", "rule", name, "value", Sanitize(v))
				continue
			}
			p.Amount = amount
			p.AmountText = "R$ " + v
			p.AmountRule = name
			break
		}
	}

	if m := timestampPattern.FindStringSubmatch(norm.Text); len(m) > 2 {
		p.OccurredAt = Sanitize(collapseSpace(m[1]) + " às " + strings.TrimSpace(m[2]))
	}

	if class == ClassForwarded && e.LearnAccountID {
		if id, ok := ForwardedAccountID(norm.Decoded); ok {
			p.LearnedAccountID = &id
			e.logger.Info("extraction_account_id_found", "account_id", id)
		}
	}

	if p.PayerName == "" || p.AmountRule == "" {
		e.logger.Warn("extraction_incomplete",
			"class", class,
			"name_found", p.PayerName != "",
			"amount_found", p.AmountRule != "",
		)
		return nil, fmt.Errorf("%w: name found=%t, amount found=%t",
			ErrExtraction, p.PayerName != "", p.AmountRule != "")
	}

	e.logger.Info("extraction_succeeded",
		"class", class,
		"payer", p.PayerName,
		"amount", p.Amount.String(),
		"occurred_at", p.OccurredAt,
		"name_rule", p.NameRule,
		"amount_rule", p.AmountRule,
	)
	return p, nil
}
