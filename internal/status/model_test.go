package status

import (
	"context"
	"testing"
)

func newTestModelTracker(t *testing.T) *ModelTracker {
	t.Helper()
	st, _ := newTestStore(t)
	return NewModelTracker(st, 0)
}

func TestModelTracker_QueuedCountsAsInProgress(t *testing.T) {
	models := newTestModelTracker(t)
	ctx := context.Background()

	if _, err := models.Start(ctx, "llama3", 0); err != nil {
		t.Fatalf("start error: %v", err)
	}

	running, err := models.InProgress(ctx, "llama3")
	if err != nil {
		t.Fatalf("in progress error: %v", err)
	}
	if !running {
		t.Fatalf("expected queued pull to count as in progress")
	}
}

func TestModelTracker_MarkCompletedForcesFullProgress(t *testing.T) {
	models := newTestModelTracker(t)
	ctx := context.Background()

	if _, err := models.Start(ctx, "llama3", 0); err != nil {
		t.Fatalf("start error: %v", err)
	}
	if err := models.RecordProgress(ctx, "llama3", 40, 100); err != nil {
		t.Fatalf("record progress error: %v", err)
	}
	if err := models.MarkCompleted(ctx, "llama3"); err != nil {
		t.Fatalf("mark completed error: %v", err)
	}

	pct, _ := models.Progress(ctx, "llama3")
	if pct != 100 {
		t.Fatalf("expected progress forced to 100, got %d", pct)
	}
	done, _ := models.IsDone(ctx, "llama3")
	if !done {
		t.Fatalf("expected completed model to read as done")
	}
}

func TestModelTracker_StartResetsProgress(t *testing.T) {
	models := newTestModelTracker(t)
	ctx := context.Background()

	if _, err := models.Start(ctx, "llama3", 0); err != nil {
		t.Fatalf("start error: %v", err)
	}
	pct, err := models.Progress(ctx, "llama3")
	if err != nil {
		t.Fatalf("progress error: %v", err)
	}
	if pct != 0 {
		t.Fatalf("expected progress reset to 0 on start, got %d", pct)
	}
}

func TestModelTracker_DownloadingScan(t *testing.T) {
	models := newTestModelTracker(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := models.Start(ctx, name, 0); err != nil {
			t.Fatalf("start error: %v", err)
		}
	}
	if err := models.MarkDownloading(ctx, "b"); err != nil {
		t.Fatalf("mark downloading error: %v", err)
	}
	if err := models.MarkCompleted(ctx, "c"); err != nil {
		t.Fatalf("mark completed error: %v", err)
	}

	active, err := models.Downloading(ctx)
	if err != nil {
		t.Fatalf("downloading error: %v", err)
	}
	if len(active) != 1 || active[0] != "b" {
		t.Fatalf("expected only b downloading, got %v", active)
	}
}
