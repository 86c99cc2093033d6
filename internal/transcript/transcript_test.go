package transcript

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"nachos/internal/kernel"
	"nachos/internal/selftest"
)

func TestSaveLoadRecordedRun(t *testing.T) {
	res := selftest.Run(context.Background(), "speak-first", kernel.Config{})
	if !res.Passed() {
		t.Fatalf("speak-first: %v", res.Err)
	}
	tr, err := FromResult(res)
	if err != nil {
		t.Fatalf("FromResult: %v", err)
	}

	path := filepath.Join(t.TempDir(), "runs", "speak-first.mp")
	if err := Save(path, tr); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Scenario != "speak-first" || got.Outcome != "pass" || got.Error != "" {
		t.Fatalf("unexpected header: %+v", got)
	}
	if int(got.EventCount) != len(got.Events) || len(got.Events) != len(res.Events) {
		t.Fatalf("event count mismatch: header %d, stored %d, recorded %d",
			got.EventCount, len(got.Events), len(res.Events))
	}
	if got.Stats != res.Report.Stats {
		t.Fatalf("stats mismatch: %+v vs %+v", got.Stats, res.Report.Stats)
	}
	listens := 0
	for _, e := range got.Events {
		if e.Name == "listen" {
			listens++
			if e.Scope != "sync" {
				t.Fatalf("listen recorded with scope %q", e.Scope)
			}
		}
	}
	if listens != 2 {
		t.Fatalf("expected two listen entries, got %d", listens)
	}

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "tmp-*"))
	if err != nil || len(leftovers) != 0 {
		t.Fatalf("temp files left behind: %v (%v)", leftovers, err)
	}
}

func TestFailedRunKeepsError(t *testing.T) {
	res := selftest.Run(context.Background(), "missing", kernel.Config{})
	tr, err := FromResult(res)
	if err != nil {
		t.Fatalf("FromResult: %v", err)
	}
	if tr.Outcome != "fail" || tr.Error == "" {
		t.Fatalf("failure not recorded: %+v", tr)
	}
}

func TestLoadRejectsOtherSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.mp")
	data, err := msgpack.Marshal(&Transcript{Schema: SchemaVersion + 1, Scenario: "join"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.mp"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
