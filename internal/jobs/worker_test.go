package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pixwebhook/internal/database"
	"pixwebhook/internal/models"
	"pixwebhook/internal/parser"
	"pixwebhook/internal/pipeline"
)

type fakeProcessor struct {
	got []string
	err error
}

func (f *fakeProcessor) Process(ctx context.Context, raw []byte) (*pipeline.Result, error) {
	f.got = append(f.got, string(raw))
	if f.err != nil {
		return &pipeline.Result{RunID: "r1"}, f.err
	}
	return &pipeline.Result{RunID: "r1", MessageSHA256: "abc"}, nil
}

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return db
}

func waitForStatus(t *testing.T, db *database.DB, id int64, status string) *models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := db.GetJob(id)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	job, _ := db.GetJob(id)
	t.Fatalf("job %d never reached %s, last state %+v", id, status, job)
	return nil
}

func newWorker(db *database.DB, p Processor) *Worker {
	w := NewWorker(db, slog.New(slog.NewTextHandler(io.Discard, nil)), 20*time.Millisecond)
	w.Register(models.JobTypeProcessMessage, ProcessMessageHandler(p))
	return w
}

func TestWorkerCompletesMessageJob(t *testing.T) {
	db := openDB(t)
	p := &fakeProcessor{}
	w := newWorker(db, p)
	w.Start()
	defer w.Stop()

	id, err := db.CreateJob(models.JobTypeProcessMessage, models.ProcessMessagePayload{Message: "raw body"}, 1)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	job := waitForStatus(t, db, id, "completed")
	var result pipeline.Result
	if err := json.Unmarshal([]byte(job.Result), &result); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if result.RunID != "r1" {
		t.Errorf("result = %+v", result)
	}
	if len(p.got) != 1 || p.got[0] != "raw body" {
		t.Errorf("processed %v", p.got)
	}
}

func TestWorkerFailsWithoutRetry(t *testing.T) {
	db := openDB(t)
	p := &fakeProcessor{err: parser.ErrExtraction}
	w := newWorker(db, p)
	w.Start()
	defer w.Stop()

	id, _ := db.CreateJob(models.JobTypeProcessMessage, models.ProcessMessagePayload{Message: "junk"}, 1)

	job := waitForStatus(t, db, id, "failed")
	if !strings.Contains(job.Result, parser.ErrExtraction.Error()) {
		t.Errorf("result = %q", job.Result)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", job.Attempts)
	}
}

func TestWorkerUnknownJobType(t *testing.T) {
	db := openDB(t)
	w := newWorker(db, &fakeProcessor{})
	w.Start()
	defer w.Stop()

	id, _ := db.CreateJob("mystery", map[string]string{}, 1)
	job := waitForStatus(t, db, id, "failed")
	if !strings.Contains(job.Result, "unknown job type") {
		t.Errorf("result = %q", job.Result)
	}
}

func TestProcessMessageHandlerBadPayload(t *testing.T) {
	db := openDB(t)
	h := ProcessMessageHandler(&fakeProcessor{})
	err := h(context.Background(), &models.Job{ID: 1, Payload: "{"}, db)
	if err == nil {
		t.Fatal("expected error")
	}
	var syntax *json.SyntaxError
	if !errors.As(err, &syntax) {
		t.Errorf("err = %v, want a JSON syntax error", err)
	}
}
