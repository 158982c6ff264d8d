package runlog

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Begin(`{"iters":100}`)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if id == "" {
		t.Fatal("empty run id")
	}
	for step := 10; step <= 30; step += 10 {
		if err := s.LogStep(id, step, 1.5, 0.001, 2000); err != nil {
			t.Fatalf("LogStep(%d): %v", step, err)
		}
	}
	if err := s.Finish(id, 1.23, 30); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	runs, err := s.Runs(10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != id {
		t.Errorf("run id %q, want %q", r.ID, id)
	}
	if r.Config != `{"iters":100}` {
		t.Errorf("config %q not preserved", r.Config)
	}
	if !r.FinalLoss.Valid || r.FinalLoss.Float64 != 1.23 {
		t.Errorf("final loss %+v, want 1.23", r.FinalLoss)
	}
	if !r.Steps.Valid || r.Steps.Int64 != 30 {
		t.Errorf("steps %+v, want 30", r.Steps)
	}
	if r.StartedAt.IsZero() {
		t.Error("started_at not parsed")
	}
}

func TestUnfinishedRunHasNullLoss(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Begin(`{}`); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	runs, err := s.Runs(10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0].FinalLoss.Valid {
		t.Errorf("expected NULL final loss, got %+v", runs[0].FinalLoss)
	}
}

func TestLogStepUnknownRunRejected(t *testing.T) {
	s := openTestStore(t)
	if err := s.LogStep("no-such-run", 1, 0.5, 0.001, 100); err == nil {
		t.Fatal("expected a foreign key violation for an unknown run")
	}
}

func TestDuplicateStepRejected(t *testing.T) {
	s := openTestStore(t)
	id, err := s.Begin(`{}`)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.LogStep(id, 1, 0.5, 0.001, 100); err != nil {
		t.Fatalf("LogStep: %v", err)
	}
	if err := s.LogStep(id, 1, 0.4, 0.001, 100); err == nil {
		t.Fatal("expected a primary key violation for a duplicate step")
	}
}
