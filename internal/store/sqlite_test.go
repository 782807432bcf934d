package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "bloatmon.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("initializing schema: %v", err)
	}
	return s
}

func persistSized(t *testing.T, s *SQLiteStore, projectID string, size int64) *Snapshot {
	t.Helper()
	snap, err := s.Persist(context.Background(), projectID, NewSnapshot{
		TotalSizeBytes: size,
		FileCount:      1,
		Entries:        map[string]Entry{"/r/f.bin": {SizeBytes: size, ModUnixNano: 42}},
	})
	if err != nil {
		t.Fatalf("persisting snapshot: %v", err)
	}
	// Keeps taken_at strictly increasing across snapshots.
	time.Sleep(10 * time.Millisecond)
	return snap
}

func TestEnsureProjectStableIdentity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p1, err := s.EnsureProject(ctx, "/home/alice/projects/api")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	p2, err := s.EnsureProject(ctx, "/home/alice/projects/api")
	if err != nil {
		t.Fatalf("EnsureProject (second): %v", err)
	}
	if p1.ProjectID != p2.ProjectID {
		t.Errorf("project identity changed across calls: %s vs %s", p1.ProjectID, p2.ProjectID)
	}

	other, err := s.EnsureProject(ctx, "/home/alice/projects/web")
	if err != nil {
		t.Fatalf("EnsureProject (other root): %v", err)
	}
	if other.ProjectID == p1.ProjectID {
		t.Error("distinct roots must get distinct project IDs")
	}
}

func TestGetProjectNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProject(context.Background(), "/nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistAndGetRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureProject(ctx, "/r")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}

	in := NewSnapshot{
		TotalSizeBytes: 12345,
		FileCount:      3,
		Entries: map[string]Entry{
			"/r/a.bin": {SizeBytes: 100, ModUnixNano: 1111},
			"/r/b.bin": {SizeBytes: 245, ModUnixNano: 2222},
		},
		Dupes: DupeSummary{GroupCount: 1, WastedBytes: 100},
		Bloat: BloatSummary{FlaggedCount: 2, FlaggedBytes: 345},
	}
	snap, err := s.Persist(ctx, p.ProjectID, in)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if snap.SnapshotID == "" || snap.TakenAt.IsZero() {
		t.Fatalf("snapshot missing identity: %+v", snap)
	}

	got, err := s.Get(ctx, snap.SnapshotID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TotalSizeBytes != in.TotalSizeBytes || got.FileCount != in.FileCount {
		t.Errorf("totals = (%d, %d), want (%d, %d)",
			got.TotalSizeBytes, got.FileCount, in.TotalSizeBytes, in.FileCount)
	}
	if len(got.Entries) != 2 {
		t.Fatalf("entries = %v, want 2", got.Entries)
	}
	if e := got.Entries["/r/b.bin"]; e.SizeBytes != 245 || e.ModUnixNano != 2222 {
		t.Errorf("entry /r/b.bin = %+v", e)
	}
	if got.Dupes != in.Dupes || got.Bloat != in.Bloat {
		t.Errorf("summaries = %+v / %+v", got.Dupes, got.Bloat)
	}
}

func TestGetSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "no-such-snapshot")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListOrderAndLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureProject(ctx, "/r")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}

	if _, err := s.Latest(ctx, p.ProjectID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Latest on empty history: expected ErrNotFound, got %v", err)
	}

	first := persistSized(t, s, p.ProjectID, 100)
	second := persistSized(t, s, p.ProjectID, 200)
	third := persistSized(t, s, p.ProjectID, 300)

	snaps, err := s.List(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("List returned %d snapshots, want 3", len(snaps))
	}
	wantOrder := []string{first.SnapshotID, second.SnapshotID, third.SnapshotID}
	for i, want := range wantOrder {
		if snaps[i].SnapshotID != want {
			t.Errorf("List[%d] = %s, want %s (oldest first)", i, snaps[i].SnapshotID, want)
		}
		if snaps[i].Entries != nil {
			t.Error("List must not load entries")
		}
	}

	latest, err := s.Latest(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.SnapshotID != third.SnapshotID {
		t.Errorf("Latest = %s, want %s", latest.SnapshotID, third.SnapshotID)
	}
	if latest.Entries == nil {
		t.Error("Latest must load entries")
	}
}

func TestSaveAndListAlerts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureProject(ctx, "/r")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}
	snap := persistSized(t, s, p.ProjectID, 100)

	in := []AlertRecord{
		{Severity: "warning", Category: "growth", Message: "size grew 25.0%"},
		{Severity: "info", Category: "mass-addition", Message: "1200 files added"},
	}
	if err := s.SaveAlerts(ctx, snap.SnapshotID, in); err != nil {
		t.Fatalf("SaveAlerts: %v", err)
	}

	alerts, err := s.ListAlerts(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("ListAlerts returned %d, want 2", len(alerts))
	}
	if alerts[0].Category != "growth" || alerts[1].Category != "mass-addition" {
		t.Errorf("alert order = %s, %s", alerts[0].Category, alerts[1].Category)
	}
	if alerts[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p, err := s.EnsureProject(ctx, "/r")
	if err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, persistSized(t, s, p.ProjectID, int64(100*(i+1))).SnapshotID)
	}

	// keep <= 0 retains everything.
	n, err := s.Prune(ctx, p.ProjectID, 0)
	if err != nil || n != 0 {
		t.Fatalf("Prune(0) = (%d, %v), want (0, nil)", n, err)
	}

	n, err = s.Prune(ctx, p.ProjectID, 2)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 3 {
		t.Errorf("Prune removed %d, want 3", n)
	}

	snaps, err := s.List(ctx, p.ProjectID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("after prune %d snapshots remain, want 2", len(snaps))
	}
	if snaps[0].SnapshotID != ids[3] || snaps[1].SnapshotID != ids[4] {
		t.Errorf("prune kept %s, %s; want the two newest %s, %s",
			snaps[0].SnapshotID, snaps[1].SnapshotID, ids[3], ids[4])
	}
}
