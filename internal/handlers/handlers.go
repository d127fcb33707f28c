package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pixwebhook/internal/database"
	"pixwebhook/internal/logger"
	"pixwebhook/internal/models"
	"pixwebhook/internal/money"
	"pixwebhook/internal/version"
)

// Handler serves the webhook API
type Handler struct {
	db           *database.DB
	maxBodyBytes int64
	now          func() time.Time
}

func New(db *database.DB, maxBodyBytes int64) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 1 << 20
	}
	return &Handler{db: db, maxBodyBytes: maxBodyBytes, now: time.Now}
}

// Routes registers every endpoint on mux
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", h.Webhook)
	mux.HandleFunc("GET /api/jobs/{id}", h.JobStatus)
	mux.HandleFunc("GET /api/settlements", h.Settlements)
	mux.HandleFunc("GET /api/version", h.APIVersion)
	mux.HandleFunc("GET /healthz", h.Healthz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Webhook queues a raw inbound message for processing. The mail relay gets
// 202 as soon as the message is durably queued.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	l := logger.FromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			l.Warn("webhook_body_too_large", "limit", h.maxBodyBytes)
			http.Error(w, "Message too large", http.StatusRequestEntityTooLarge)
			return
		}
		l.Error("webhook_read_error", "error", err.Error())
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}

	payload := models.ProcessMessagePayload{
		Message:    string(body),
		ReceivedAt: h.now().UTC().Format(time.RFC3339),
	}
	// No automatic retries: redelivery is the relay's call
	jobID, err := h.db.CreateJob(models.JobTypeProcessMessage, payload, 1)
	if err != nil {
		l.Error("webhook_enqueue_error", "error", err.Error())
		http.Error(w, "Failed to queue message", http.StatusInternalServerError)
		return
	}

	l.Info("webhook_message_queued", "job_id", jobID, "bytes", len(body))
	logger.AddRequestAttrs(r.Context(), "job_id", jobID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     jobID,
		"status_url": fmt.Sprintf("/api/jobs/%d", jobID),
	})
}

// JobStatus returns the status of a background job as JSON (for polling)
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, err := h.db.GetJob(id)
	if errors.Is(err, database.ErrJobNotFound) {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("job_status_error", "job_id", id, "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"id":       job.ID,
		"status":   job.Status,
		"progress": job.Progress,
		"attempts": job.Attempts,
	}
	// completed jobs carry the pipeline result as JSON, failed ones an error message
	if job.Status == "completed" && json.Valid([]byte(job.Result)) {
		resp["result"] = json.RawMessage(job.Result)
	} else if job.Result != "" {
		resp["error"] = job.Result
	}
	writeJSON(w, http.StatusOK, resp)
}

type settlementView struct {
	ID            int64   `json:"id"`
	Reference     string  `json:"reference"`
	RunID         string  `json:"run_id"`
	Client        string  `json:"client"`
	AccountID     int64   `json:"account_id"`
	Amount        string  `json:"amount"`
	Status        string  `json:"status"`
	TransactionID *int64  `json:"transaction_id,omitempty"`
	InvoiceIDs    []int64 `json:"invoice_ids"`
	CreatedAt     string  `json:"created_at"`
}

// Settlements lists the most recent ledger rows
func (h *Handler) Settlements(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := h.db.ListSettlements(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("settlement_list_error", "error", err.Error())
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	out := make([]settlementView, 0, len(rows))
	for _, s := range rows {
		out = append(out, settlementView{
			ID:            s.ID,
			Reference:     s.Reference,
			RunID:         s.RunID,
			Client:        s.ClientName,
			AccountID:     s.AccountID,
			Amount:        money.Cents(s.AmountCents).String(),
			Status:        s.Status,
			TransactionID: s.TransactionID,
			InvoiceIDs:    s.InvoiceIDs,
			CreatedAt:     s.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": out})
}

// APIVersion reports build information
func (h *Handler) APIVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"build_time": version.BuildTime,
		"git_commit": version.GitCommit,
	})
}

// Healthz reports whether the database is reachable
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Write([]byte("ok"))
}
