package runstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mnohosten/storeiter/pkg/engine"
)

func strKey(s string) []engine.Value {
	return []engine.Value{engine.StringValue(s)}
}

func drainSource(t *testing.T, s engine.Source) []*engine.Statement {
	t.Helper()
	var out []*engine.Statement
	for {
		stmt, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		if stmt == nil {
			return out
		}
		out = append(out, stmt)
	}
}

func TestRunWriteAndScanRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-0001")
	kd := engine.NewKeyDef(engine.KeyPart{})

	w, err := NewWriter(path, kd)
	if err != nil {
		t.Fatal(err)
	}
	want := []*engine.Statement{
		engine.NewOwned(engine.Insert, 1, strKey("a"), []engine.Value{engine.StringValue("a"), engine.IntValue(1)}),
		engine.NewOwned(engine.Replace, 2, strKey("b"), []engine.Value{engine.StringValue("b"), engine.IntValue(2)}),
		engine.NewOwned(engine.Delete, 3, strKey("c"), nil),
	}
	for _, stmt := range want {
		if err := w.Write(stmt); err != nil {
			t.Fatal(err)
		}
	}
	run, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if run.NumEntries() != 3 {
		t.Fatalf("expected 3 entries, got %d", run.NumEntries())
	}

	src, err := run.NewSource()
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	got := drainSource(t, src)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements back, got %d", len(got))
	}
	for i, stmt := range got {
		if stmt.LSN != want[i].LSN || stmt.Type != want[i].Type {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, stmt, want[i])
		}
	}
}

func TestRunSpansMultipleBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-0002")
	kd := engine.NewKeyDef(engine.KeyPart{})

	w, err := NewWriter(path, kd)
	if err != nil {
		t.Fatal(err)
	}
	const n = blockStatements*2 + 7
	for i := 0; i < n; i++ {
		stmt := engine.NewOwned(engine.Insert, int64(i+1), strKey("k"), []engine.Value{engine.IntValue(int64(i))})
		if err := w.Write(stmt); err != nil {
			t.Fatal(err)
		}
	}
	run, err := w.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if run.NumEntries() != n {
		t.Fatalf("expected %d entries, got %d", n, run.NumEntries())
	}

	src, err := run.NewSource()
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	got := drainSource(t, src)
	if len(got) != n {
		t.Fatalf("expected %d statements scanned across block boundaries, got %d", n, len(got))
	}
}

func TestRunOpenReopensFooter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run-0003")
	kd := engine.NewKeyDef(engine.KeyPart{})

	w, err := NewWriter(path, kd)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Write(engine.NewOwned(engine.Insert, 1, strKey("a"), []engine.Value{engine.IntValue(1)})); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Finalize(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path, kd)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.NumEntries() != 1 {
		t.Fatalf("expected 1 entry after reopen, got %d", reopened.NumEntries())
	}
	if reopened.MinKey()[0].S != "a" || reopened.MaxKey()[0].S != "a" {
		t.Fatalf("unexpected min/max key: %v / %v", reopened.MinKey(), reopened.MaxKey())
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("run file should still exist on disk: %v", err)
	}
}
