package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"docflow/internal/metrics"
	"docflow/internal/queue"
	"docflow/internal/status"
)

// Publisher is the slice of the broker connection the dispatcher
// needs. Narrowed to an interface so tests can observe publishes
// without a running broker.
type Publisher interface {
	PublishFileExtract(ctx context.Context, msg queue.FileExtractMessage) error
	PublishModelPull(ctx context.Context, msg queue.ModelPullMessage) error
}

// AlreadyRunningError reports that a job with the same id is already
// tracked. It is a normal branch, not a failure: the caller gets the
// job's current status and progress instead of a re-dispatch. Status
// is the tracked value as stored, so a completed job reports its
// terminal status rather than posing as in progress.
type AlreadyRunningError struct {
	ID       string
	Status   string
	Progress int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s already tracked as %s (%d%%)", e.ID, e.Status, e.Progress)
}

// Dispatcher is the only component that talks to both the trackers and
// the broker. Submission claims the job first via an atomic
// set-if-absent, then publishes; a failed publish releases the claim so
// no "tracked but never enqueued" state is left behind.
type Dispatcher struct {
	files  *status.FileTracker
	models *status.ModelTracker
	pub    Publisher
	logger *slog.Logger
}

func New(files *status.FileTracker, models *status.ModelTracker, pub Publisher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		files:  files,
		models: models,
		pub:    pub,
		logger: logger,
	}
}

// alreadyTracked builds the duplicate-submission error from the job's
// stored state. The entry can expire between the lost claim and this
// read; the kind's initial value stands in for that sliver.
func (d *Dispatcher) alreadyTracked(ctx context.Context, t *status.Tracker, id, fallback string) error {
	val, ok, err := t.Status(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		val = fallback
	}
	pct, err := t.Progress(ctx, id)
	if err != nil {
		return err
	}
	return &AlreadyRunningError{ID: id, Status: val, Progress: pct}
}

// SubmitFile dispatches a file-extraction job. Exactly one of two
// concurrent submissions for the same id wins the claim; the loser
// receives an AlreadyRunningError. A job tracked as failed is
// reclaimed and re-dispatched; a job tracked as done stays blocked
// until its entry expires and the error reports the done status.
func (d *Dispatcher) SubmitFile(ctx context.Context, id string, msg queue.FileExtractMessage) error {
	claimed, err := d.files.Start(ctx, id, 0)
	if err != nil {
		return fmt.Errorf("claim file job %s: %w", id, err)
	}
	if !claimed {
		return d.alreadyTracked(ctx, d.files.Tracker, id, status.FilePending)
	}

	if err := d.pub.PublishFileExtract(ctx, msg); err != nil {
		// Roll the claim back; the job was never enqueued and must be
		// submittable again immediately, not after TTL expiry.
		if relErr := d.files.Release(ctx, id); relErr != nil {
			d.logger.Error("release claim after failed publish", "id", id, "err", relErr)
		}
		return err
	}

	metrics.RecordPublish(queue.NewFileExtract)
	d.logger.Info("file job queued", "id", id, "engine", msg.Engine, "format", msg.Format)
	return nil
}

// SubmitModelPull dispatches a model download. Deduplication covers
// both the queued and downloading phases.
func (d *Dispatcher) SubmitModelPull(ctx context.Context, name string) error {
	claimed, err := d.models.Start(ctx, name, 0)
	if err != nil {
		return fmt.Errorf("claim model pull %s: %w", name, err)
	}
	if !claimed {
		return d.alreadyTracked(ctx, d.models.Tracker, name, status.ModelQueued)
	}

	if err := d.pub.PublishModelPull(ctx, queue.ModelPullMessage{Name: name}); err != nil {
		if relErr := d.models.Release(ctx, name); relErr != nil {
			d.logger.Error("release claim after failed publish", "name", name, "err", relErr)
		}
		return err
	}

	metrics.RecordPublish(queue.OllamaModelPull)
	d.logger.Info("model pull queued", "name", name)
	return nil
}
