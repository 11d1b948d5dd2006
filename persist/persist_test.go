package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/waypoint/dbopen"
)

var fixedNow = func() time.Time { return time.UnixMilli(1708700000000) }

// failingStorage fails every operation.
type failingStorage struct {
	calls int
	panic bool
}

var errQuota = errors.New("quota exceeded")

func (f *failingStorage) Get(context.Context, string) ([]byte, bool, error) {
	f.calls++
	if f.panic {
		panic("storage disabled")
	}
	return nil, false, errQuota
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	f.calls++
	if f.panic {
		panic("storage disabled")
	}
	return errQuota
}

func (f *failingStorage) Delete(context.Context, string) error {
	f.calls++
	return errQuota
}

func TestPersister_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	p := New(Config{Storage: store, Now: fixedNow})
	saved := p.Save(ctx, 3, true)
	if saved.Timestamp != 1708700000000 {
		t.Errorf("Timestamp: got %d", saved.Timestamp)
	}

	// A fresh persister over the same storage simulates a reload.
	rec, ok := New(Config{Storage: store}).Load(ctx)
	if !ok {
		t.Fatal("Load: expected a record")
	}
	if rec.CurrentStepIndex != 3 || !rec.IsActive {
		t.Fatalf("Load: got %+v, want {3 true}", rec)
	}
}

func TestPersister_Missing(t *testing.T) {
	rec, ok := New(Config{}).Load(context.Background())
	if ok {
		t.Fatal("Load on empty storage should report ok=false")
	}
	if rec != (Record{}) {
		t.Fatalf("Load: got %+v, want zero record", rec)
	}
}

func TestPersister_Corrupted(t *testing.T) {
	ctx := context.Background()
	for _, payload := range []string{"{not json", `{"currentStepIndex":-4,"isActive":true}`, `"str"`} {
		store := NewMemory()
		store.Set(ctx, DefaultKey, []byte(payload))

		rec, ok := New(Config{Storage: store}).Load(ctx)
		if ok {
			t.Errorf("%q: expected ok=false", payload)
		}
		if rec.CurrentStepIndex != 0 || rec.IsActive {
			t.Errorf("%q: got %+v, want default {0 false}", payload, rec)
		}
	}
}

func TestPersister_DegradesOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	fs := &failingStorage{}
	var failures []string
	p := New(Config{Storage: fs, OnFailure: func(op string, err error) {
		if !errors.Is(err, errQuota) {
			t.Errorf("OnFailure: unexpected error %v", err)
		}
		failures = append(failures, op)
	}})

	p.Save(ctx, 1, true)
	if !p.Degraded() {
		t.Fatal("expected degraded persister after failed save")
	}

	// Later writes and reads go to memory and stay consistent.
	p.Save(ctx, 2, true)
	rec, ok := p.Load(ctx)
	if !ok || rec.CurrentStepIndex != 2 || !rec.IsActive {
		t.Fatalf("Load after degrade: got %+v ok=%v", rec, ok)
	}
	if fs.calls != 1 {
		t.Errorf("durable storage calls: got %d, want 1", fs.calls)
	}
	if len(failures) != 1 || failures[0] != "save" {
		t.Errorf("failures: got %v", failures)
	}
}

func TestPersister_RecoversPanics(t *testing.T) {
	ctx := context.Background()
	p := New(Config{Storage: &failingStorage{panic: true}})

	if _, ok := p.Load(ctx); ok {
		t.Fatal("Load: expected ok=false")
	}
	if !p.Degraded() {
		t.Fatal("expected degraded persister after panic")
	}
	p.Save(ctx, 4, false)
	if rec, _ := p.Load(ctx); rec.CurrentStepIndex != 4 {
		t.Fatalf("Load: got %+v", rec)
	}
}

func TestPersister_Reset(t *testing.T) {
	ctx := context.Background()
	p := New(Config{Key: "custom"})
	p.Save(ctx, 5, false)
	p.Reset(ctx)
	if _, ok := p.Load(ctx); ok {
		t.Fatal("Load after Reset: expected ok=false")
	}
	if p.Key() != "custom" {
		t.Errorf("Key: got %q", p.Key())
	}
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := dbopen.OpenMemory(t)
	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	s := &SQLite{DB: db}

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	if err := s.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("Get: got (%q, %v, %v)", v, ok, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("Get after Delete: expected missing")
	}
}

func TestSQLite_Persister(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/state/tour.db"

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	New(Config{Storage: s}).Save(ctx, 2, true)
	s.Close()

	s2, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	rec, ok := New(Config{Storage: s2}).Load(ctx)
	if !ok || rec.CurrentStepIndex != 2 || !rec.IsActive {
		t.Fatalf("Load after reopen: got %+v ok=%v", rec, ok)
	}
}
