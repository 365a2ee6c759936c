package history

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndListRuns(t *testing.T) {
	store := newTestStore(t)

	run := RunRecord{
		ID:              "sess-1",
		Provider:        "faster-whisper",
		Model:           "base",
		Device:          "cuda",
		ComputeType:     "float16",
		Total:           3,
		Processed:       2,
		Failed:          1,
		DurationSeconds: 42.5,
	}
	if err := store.RecordRun(run); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.ID != "sess-1" || got.Processed != 2 || got.ComputeType != "float16" {
		t.Fatalf("run = %+v", got)
	}
}

func TestRecordRunReplacesSameSession(t *testing.T) {
	store := newTestStore(t)

	if err := store.RecordRun(RunRecord{ID: "sess-1", Processed: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordRun(RunRecord{ID: "sess-1", Processed: 5}); err != nil {
		t.Fatal(err)
	}

	runs, err := store.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Processed != 5 {
		t.Fatalf("runs = %+v", runs)
	}
}

func TestFilesForRunKeepsOrder(t *testing.T) {
	store := newTestStore(t)

	files := []FileRecord{
		{RunID: "sess-1", FilePath: "/a.wav", Status: "done", DurationSeconds: 10, Confidence: 0.9, OutputTxt: "/out/a.txt"},
		{RunID: "sess-1", FilePath: "/b.wav", Status: "failed", Error: "boom"},
		{RunID: "sess-2", FilePath: "/c.wav", Status: "done"},
	}
	for _, file := range files {
		if err := store.RecordFile(file); err != nil {
			t.Fatalf("RecordFile: %v", err)
		}
	}

	got, err := store.FilesForRun("sess-1")
	if err != nil {
		t.Fatalf("FilesForRun: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d files, want 2", len(got))
	}
	if got[0].FilePath != "/a.wav" || got[1].Error != "boom" {
		t.Fatalf("files = %+v", got)
	}
}
