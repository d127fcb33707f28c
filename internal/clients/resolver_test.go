package clients

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newMemResolver(contents string) (*Resolver, *MemoryBackend) {
	backend := NewMemoryBackend(contents)
	return NewResolver(NewStore(backend)), backend
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payer      string
		learned    *int64
		wantStatus Status
		wantID     *int64
		wantErr    error
		wantStore  string
	}{
		{
			name:       "known name with id",
			payer:      "maria da silva",
			wantStatus: StatusFound,
			wantID:     int64p(101),
			wantStore:  sampleStore,
		},
		{
			name:       "known name with id ignores different learned id",
			payer:      "MARIA DA SILVA",
			learned:    int64p(999),
			wantStatus: StatusFound,
			wantID:     int64p(101),
			wantStore:  sampleStore,
		},
		{
			name:       "known name without id",
			payer:      "JOSE PEREIRA",
			wantStatus: StatusFoundNoID,
			wantStore:  sampleStore,
		},
		{
			name:       "learned id applied",
			payer:      "Jose Pereira",
			learned:    int64p(555),
			wantStatus: StatusUpdated,
			wantID:     int64p(555),
			wantStore:  strings.Replace(sampleStore, "Jose Pereira|\n", "Jose Pereira|555\n", 1),
		},
		{
			name:       "learned id held by another client",
			payer:      "Jose Pereira",
			learned:    int64p(4321),
			wantStatus: StatusDuplicateID,
			wantErr:    ErrDuplicateID,
			wantStore:  sampleStore,
		},
		{
			name:       "unknown name is appended without id",
			payer:      "ANA PAULA MENDES",
			learned:    int64p(98765),
			wantStatus: StatusCreated,
			wantStore:  sampleStore + "ANA PAULA MENDES|\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, backend := newMemResolver(sampleStore)
			res, err := r.Resolve(context.Background(), tt.payer, tt.learned)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if res.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", res.Status, tt.wantStatus)
			}
			switch {
			case tt.wantID == nil && res.AccountID != nil && tt.wantStatus != StatusDuplicateID:
				t.Errorf("account id = %d, want none", *res.AccountID)
			case tt.wantID != nil && (res.AccountID == nil || *res.AccountID != *tt.wantID):
				t.Errorf("account id = %v, want %d", res.AccountID, *tt.wantID)
			}
			if got := backend.Contents(); got != tt.wantStore {
				t.Errorf("store:\n%s\nwant:\n%s", got, tt.wantStore)
			}
		})
	}
}

func TestResolveDuplicateReportsHolder(t *testing.T) {
	t.Parallel()

	r, _ := newMemResolver(sampleStore)
	res, _ := r.Resolve(context.Background(), "Jose Pereira", int64p(101))
	if res.ConflictName != "MARIA DA SILVA" {
		t.Errorf("ConflictName = %q, want MARIA DA SILVA", res.ConflictName)
	}
	if res.Settleable() {
		t.Error("duplicate id resolution must not be settleable")
	}
}

func TestResolveIsIdempotentForUnknownNames(t *testing.T) {
	t.Parallel()

	r, backend := newMemResolver(sampleStore)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "Novo Cliente", nil)
	if err != nil || first.Status != StatusCreated {
		t.Fatalf("first resolve = %+v, %v", first, err)
	}
	second, err := r.Resolve(ctx, "NOVO CLIENTE", nil)
	if err != nil || second.Status != StatusFoundNoID {
		t.Fatalf("second resolve = %+v, %v", second, err)
	}
	if n := strings.Count(strings.ToUpper(backend.Contents()), "NOVO CLIENTE|"); n != 1 {
		t.Errorf("store has %d entries for the name, want 1", n)
	}
}

// failingBackend cannot be read
type failingBackend struct{}

func (failingBackend) Update(context.Context, func(*Set) error) error {
	return storeError("read clients file", errors.New("input/output error"))
}

func TestResolveStoreError(t *testing.T) {
	t.Parallel()

	r := NewResolver(NewStore(failingBackend{}))
	res, err := r.Resolve(context.Background(), "ANYONE", int64p(5))
	if !errors.Is(err, ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	if res.Status != StatusStoreError {
		t.Errorf("status = %s, want %s", res.Status, StatusStoreError)
	}
	if res.AccountID != nil || res.Settleable() {
		t.Errorf("store error resolution = %+v, want no account id", res)
	}
}

func TestResolveSurvivesMalformedLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const store = "ALICE|12\nBOB|12a\n"
	r, backend := newMemResolver(store)

	res, err := r.Resolve(ctx, "ALICE", nil)
	if err != nil || res.Status != StatusFound || *res.AccountID != 12 {
		t.Fatalf("Resolve(ALICE) = %+v, %v", res, err)
	}

	res, err = r.Resolve(ctx, "bob", nil)
	if err != nil || res.Status != StatusFoundNoID {
		t.Fatalf("Resolve(bob) = %+v, %v", res, err)
	}
	if got := backend.Contents(); got != store {
		t.Errorf("store changed:\n%s\nwant:\n%s", got, store)
	}

	res, err = r.Resolve(ctx, "BOB", int64p(34))
	if err != nil || res.Status != StatusUpdated {
		t.Fatalf("Resolve(BOB, 34) = %+v, %v", res, err)
	}
	if got, want := backend.Contents(), "ALICE|12\nBOB|34\n"; got != want {
		t.Errorf("store:\n%s\nwant:\n%s", got, want)
	}
}

func TestResolveFileBackendMalformedLine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clientes.txt")
	if err := os.WriteFile(path, []byte("ALICE|12\nBOB|12a\n"), 0600); err != nil {
		t.Fatal(err)
	}
	r := NewResolver(NewStore(NewFileBackend(path)))

	res, err := r.Resolve(context.Background(), "ALICE", nil)
	if err != nil || res.Status != StatusFound {
		t.Fatalf("Resolve(ALICE) = %+v, %v", res, err)
	}
	res, err = r.Resolve(context.Background(), "BOB", nil)
	if err != nil || res.Status != StatusFoundNoID {
		t.Fatalf("Resolve(BOB) = %+v, %v", res, err)
	}
}

func TestSetID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r, backend := newMemResolver(sampleStore)
	res, err := r.SetID(ctx, "maria da silva", 111)
	if err != nil {
		t.Fatalf("SetID: %v", err)
	}
	if res.Status != StatusUpdated || *res.AccountID != 111 {
		t.Errorf("got %+v", res)
	}
	if !strings.Contains(backend.Contents(), "MARIA DA SILVA|111\n") {
		t.Errorf("store not updated:\n%s", backend.Contents())
	}

	if _, err := r.SetID(ctx, "Jose Pereira", 4321); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("err = %v, want ErrDuplicateID", err)
	}
	if _, err := r.SetID(ctx, "Nobody", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResolveConcurrentFileBackend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "clientes.txt")
	ctx := context.Background()

	// two resolvers over separate backends share only the file and its flock
	resolvers := []*Resolver{
		NewResolver(NewStore(NewFileBackend(path))),
		NewResolver(NewStore(NewFileBackend(path))),
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(r *Resolver) {
			defer wg.Done()
			if _, err := r.Resolve(ctx, "Cliente Concorrente", nil); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}(resolvers[i%2])
	}
	wg.Wait()

	recs, err := NewStore(NewFileBackend(path)).ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d records, want 1: %+v", len(recs), recs)
	}
}
