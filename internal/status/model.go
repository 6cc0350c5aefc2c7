package status

import (
	"context"
	"time"
)

// Model-download status values.
const (
	ModelQueued      = "queued"
	ModelDownloading = "downloading"
	ModelCompleted   = "completed"
	ModelFailed      = "failed"
)

const modelprefix = "model"

// DefaultModelTTL bounds how long a model download's tracking entry
// lives without a terminal write. Pulls are slower than file jobs, so
// the horizon is longer.
const DefaultModelTTL = 2 * time.Hour

// ModelTracker tracks inference-model downloads. Unlike file jobs, a
// download counts as in progress while queued or downloading, so a
// second pull request for the same model is deduplicated as soon as
// the first one is claimed.
type ModelTracker struct {
	*Tracker
}

func NewModelTracker(store *Store, defaultTTL time.Duration) *ModelTracker {
	if defaultTTL <= 0 {
		defaultTTL = DefaultModelTTL
	}
	return &ModelTracker{
		Tracker: NewTracker(store, modelprefix, Vocabulary{
			Initial:    ModelQueued,
			InProgress: []string{ModelQueued, ModelDownloading},
			Done:       ModelCompleted,
			Failed:     ModelFailed,
		}, defaultTTL),
	}
}

// MarkDownloading transitions a queued pull to downloading.
func (t *ModelTracker) MarkDownloading(ctx context.Context, name string) error {
	return t.SetStatus(ctx, name, ModelDownloading)
}

// MarkCompleted records terminal success and forces progress to 100 so
// readers never see a completed model with partial progress.
func (t *ModelTracker) MarkCompleted(ctx context.Context, name string) error {
	if err := t.MarkDone(ctx, name); err != nil {
		return err
	}
	return t.store.SetProgress(ctx, t.prefix, name, 100)
}

// Downloading returns the names of models currently being pulled. This
// is an explicit O(n) scan over the model namespace; the set of active
// downloads is expected to be small.
func (t *ModelTracker) Downloading(ctx context.Context) ([]string, error) {
	return t.ActiveIDs(ctx, ModelDownloading)
}
