package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixwebhook/internal/money"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultCurrency = "BRL"
	maxErrorBody    = 512
)

// BlestaConfig holds API credentials and limits
type BlestaConfig struct {
	BaseURL  string // e.g. https://billing.example.com/api
	APIUser  string
	APIKey   string
	Currency string
	Timeout  time.Duration
}

// BlestaClient talks to the Blesta REST API over JSON
type BlestaClient struct {
	cfg    BlestaConfig
	http   *http.Client
	logger *slog.Logger
}

// NewBlestaClient creates a client. Every request is bounded by cfg.Timeout.
func NewBlestaClient(cfg BlestaConfig, logger *slog.Logger) *BlestaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = slog.Default()
	}
	return &BlestaClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// envelope is the wrapper Blesta puts around every response
type envelope struct {
	Message  string          `json:"message"`
	Response json.RawMessage `json:"response"`
}

// flexString accepts JSON strings and numbers, Blesta returns both
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type blestaInvoice struct {
	ID       flexString  `json:"id"`
	ClientID flexString  `json:"client_id"`
	Total    flexString  `json:"total"`
	Due      *flexString `json:"due"`
	Currency string      `json:"currency"`
	DateDue  string      `json:"date_due"`
}

// ListOpenInvoices returns the open invoices of accountID
func (c *BlestaClient) ListOpenInvoices(ctx context.Context, accountID int64) ([]Invoice, error) {
	q := url.Values{}
	q.Set("client_id", strconv.FormatInt(accountID, 10))
	q.Set("status", "open")

	raw, err := c.do(ctx, http.MethodGet, "invoices/getList.json", q)
	if err != nil {
		return nil, fmt.Errorf("list open invoices: %w", err)
	}

	// Blesta answers with null or false when there is nothing to list
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == "false" {
		return nil, nil
	}

	var rows []blestaInvoice
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("list open invoices: %w: decode invoices: %v", ErrPayload, err)
	}

	invoices := make([]Invoice, 0, len(rows))
	for _, row := range rows {
		inv, err := row.toInvoice()
		if err != nil {
			return nil, fmt.Errorf("list open invoices: %w: %v", ErrPayload, err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (r blestaInvoice) toInvoice() (Invoice, error) {
	id, err := strconv.ParseInt(string(r.ID), 10, 64)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice id %q: %v", r.ID, err)
	}
	clientID, _ := strconv.ParseInt(string(r.ClientID), 10, 64)

	amountText := r.Total
	if r.Due != nil && *r.Due != "" {
		amountText = *r.Due
	}
	total, err := money.ParseDecimal(string(amountText))
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice %d amount: %v", id, err)
	}
	return Invoice{ID: id, ClientID: clientID, Total: total, Currency: r.Currency, DateDue: r.DateDue}, nil
}

// CreateTransaction records an approved payment and returns its billing id
func (c *BlestaClient) CreateTransaction(ctx context.Context, tx Transaction) (int64, error) {
	form := url.Values{}
	form.Set("vars[client_id]", strconv.FormatInt(tx.AccountID, 10))
	form.Set("vars[amount]", tx.Amount.String())
	form.Set("vars[currency]", c.cfg.Currency)
	form.Set("vars[type]", "other")
	form.Set("vars[status]", "approved")
	form.Set("vars[transaction_id]", tx.Reference)
	if tx.Note != "" {
		form.Set("vars[reference_id]", tx.Note)
	}
	for i, a := range tx.Allocations {
		form.Set(fmt.Sprintf("vars[amounts][%d][invoice_id]", i), strconv.FormatInt(a.InvoiceID, 10))
		form.Set(fmt.Sprintf("vars[amounts][%d][amount]", i), a.Amount.String())
	}

	raw, err := c.do(ctx, http.MethodPost, "transactions/add.json", form)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	var id flexString
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("create transaction: %w: decode id: %v", ErrPayload, err)
	}
	txID, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || txID <= 0 {
		return 0, fmt.Errorf("create transaction: %w: transaction id %q", ErrPayload, id)
	}
	return txID, nil
}

// ApplyTransaction applies amount of a transaction to one invoice
func (c *BlestaClient) ApplyTransaction(ctx context.Context, transactionID, invoiceID int64, amount money.Cents) error {
	form := url.Values{}
	form.Set("transaction_id", strconv.FormatInt(transactionID, 10))
	form.Set("vars[amounts][0][invoice_id]", strconv.FormatInt(invoiceID, 10))
	form.Set("vars[amounts][0][amount]", amount.String())

	if _, err := c.do(ctx, http.MethodPost, "transactions/apply.json", form); err != nil {
		return fmt.Errorf("apply transaction %d to invoice %d: %w", transactionID, invoiceID, err)
	}
	return nil
}

// do sends one request and returns the unwrapped response field
func (c *BlestaClient) do(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := c.cfg.BaseURL + "/" + path
	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("BLESTA-API-USER", c.cfg.APIUser)
	req.Header.Set("BLESTA-API-KEY", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("billing_request_failed", "method", method, "path", path, "error", err.Error())
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrTransport, path, err)
	}

	c.logger.Debug("billing_request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, fmt.Errorf("%w: %s %s: %d %s", ErrStatus, method, path, resp.StatusCode, strings.TrimSpace(snippet))
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %s: decode envelope: %v", ErrPayload, path, err)
	}
	return env.Response, nil
}
