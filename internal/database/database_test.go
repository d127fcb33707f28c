package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pixwebhook/internal/clients"
	"pixwebhook/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pixwebhook.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return db
}

func TestJobLifecycle(t *testing.T) {
	db := openTestDB(t)

	payload := models.ProcessMessagePayload{Message: "raw", ReceivedAt: "2026-01-02T03:04:05Z"}
	id, err := db.CreateJob(models.JobTypeProcessMessage, payload, 1)
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	job, err := db.ClaimNextJob()
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != id {
		t.Fatalf("claimed %+v, want job %d", job, id)
	}
	if job.Status != "running" || job.Attempts != 1 || job.MaxAttempts != 1 {
		t.Errorf("claimed job = %+v", job)
	}

	next, err := db.ClaimNextJob()
	if err != nil || next != nil {
		t.Fatalf("second claim = %+v, %v; want nothing pending", next, err)
	}

	if err := db.CompleteJob(id, `{"ok":true}`); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	got, err := db.GetJob(id)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != "completed" || got.Progress != 100 || got.Result != `{"ok":true}` {
		t.Errorf("completed job = %+v", got)
	}

	if _, err := db.GetJob(id + 100); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("GetJob unknown = %v, want ErrJobNotFound", err)
	}
}

func TestClientBackendResolve(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	store := clients.NewStore(NewClientBackend(db))
	r := clients.NewResolver(store)

	res, err := r.Resolve(ctx, "Maria da Silva", nil)
	if err != nil || res.Status != clients.StatusCreated {
		t.Fatalf("Resolve new = %+v, %v", res, err)
	}

	id := int64(101)
	res, err = r.Resolve(ctx, "MARIA DA SILVA", &id)
	if err != nil || res.Status != clients.StatusUpdated {
		t.Fatalf("Resolve learned = %+v, %v", res, err)
	}

	if err := store.Upsert(ctx, clients.Record{Name: "Jose Pereira"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	res, err = r.Resolve(ctx, "Jose Pereira", &id)
	if !errors.Is(err, clients.ErrDuplicateID) || res.Status != clients.StatusDuplicateID {
		t.Fatalf("Resolve duplicate = %+v, %v", res, err)
	}

	recs, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Name != "Maria da Silva" || recs[0].AccountID == nil || *recs[0].AccountID != 101 {
		t.Errorf("first record = %+v", recs[0])
	}
	if recs[1].HasID() {
		t.Errorf("second record should have no id: %+v", recs[1])
	}
}

func TestRecordSettlementOncePerMessage(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	txID := int64(9001)
	s := &models.Settlement{
		MessageSHA256: "abc123",
		Reference:     "PIX-11-12",
		RunID:         "run-1",
		ClientName:    "MARIA DA SILVA",
		AccountID:     101,
		AmountCents:   17470,
		Status:        "settled",
		TransactionID: &txID,
		InvoiceIDs:    []int64{11, 12},
	}

	recorded, err := db.RecordSettlement(ctx, s)
	if err != nil || !recorded {
		t.Fatalf("RecordSettlement = %v, %v", recorded, err)
	}
	again := *s
	recorded, err = db.RecordSettlement(ctx, &again)
	if err != nil || recorded {
		t.Fatalf("second RecordSettlement = %v, %v; want not recorded", recorded, err)
	}

	got, err := db.GetSettlementByMessage(ctx, "abc123")
	if err != nil || got == nil {
		t.Fatalf("GetSettlementByMessage = %+v, %v", got, err)
	}
	if got.Reference != "PIX-11-12" || len(got.InvoiceIDs) != 2 || got.InvoiceIDs[1] != 12 || *got.TransactionID != 9001 {
		t.Errorf("ledger row = %+v", got)
	}

	missing, err := db.GetSettlementByMessage(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("missing row = %+v, %v", missing, err)
	}

	list, err := db.ListSettlements(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Errorf("ListSettlements = %d rows, %v", len(list), err)
	}
}
