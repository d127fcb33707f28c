package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"pixwebhook/internal/database"
	"pixwebhook/internal/models"
)

func newTestServer(t *testing.T, maxBody int64) (*database.DB, http.Handler) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	mux := http.NewServeMux()
	New(db, maxBody).Routes(mux)
	return db, mux
}

func TestWebhookQueuesMessage(t *testing.T) {
	db, srv := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("raw message"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		JobID     int64  `json:"job_id"`
		StatusURL string `json:"status_url"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusURL != fmt.Sprintf("/api/jobs/%d", resp.JobID) {
		t.Errorf("status_url = %s", resp.StatusURL)
	}

	job, err := db.GetJob(resp.JobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.JobType != models.JobTypeProcessMessage || job.MaxAttempts != 1 {
		t.Errorf("job = %+v", job)
	}
	var payload models.ProcessMessagePayload
	json.Unmarshal([]byte(job.Payload), &payload)
	if payload.Message != "raw message" || payload.ReceivedAt == "" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWebhookRejectsBadBodies(t *testing.T) {
	_, srv := newTestServer(t, 16)

	tests := []struct {
		body string
		want int
	}{
		{"   ", http.StatusBadRequest},
		{strings.Repeat("x", 17), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("body %q: status = %d, want %d", tt.body, rec.Code, tt.want)
		}
	}
}

func TestJobStatus(t *testing.T) {
	db, srv := newTestServer(t, 0)

	done, _ := db.CreateJob(models.JobTypeProcessMessage, models.ProcessMessagePayload{Message: "a"}, 1)
	db.CompleteJob(done, `{"run_id":"r1"}`)
	failed, _ := db.CreateJob(models.JobTypeProcessMessage, models.ProcessMessagePayload{Message: "b"}, 1)
	db.FailJob(failed, "extract payment: extraction failed")

	tests := []struct {
		path       string
		wantCode   int
		wantSubstr string
	}{
		{fmt.Sprintf("/api/jobs/%d", done), http.StatusOK, `"result":{"run_id":"r1"}`},
		{fmt.Sprintf("/api/jobs/%d", failed), http.StatusOK, `"error":"extract payment: extraction failed"`},
		{"/api/jobs/999", http.StatusNotFound, "Job not found"},
		{"/api/jobs/abc", http.StatusBadRequest, "Invalid job ID"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.wantCode)
		}
		if !strings.Contains(rec.Body.String(), tt.wantSubstr) {
			t.Errorf("%s: body = %s, want %s", tt.path, rec.Body, tt.wantSubstr)
		}
	}
}

func TestSettlementsAndHealth(t *testing.T) {
	db, srv := newTestServer(t, 0)

	txID := int64(9001)
	db.RecordSettlement(context.Background(), &models.Settlement{
		MessageSHA256: "h1",
		Reference:     "PIX-11",
		ClientName:    "MARIA DA SILVA",
		AccountID:     101,
		AmountCents:   8735,
		Status:        "settled",
		TransactionID: &txID,
		InvoiceIDs:    []int64{11},
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settlements", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"amount":"87.35"`) {
		t.Errorf("settlements: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz: %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	if !strings.Contains(rec.Body.String(), `"version"`) {
		t.Errorf("version: %s", rec.Body)
	}
}
