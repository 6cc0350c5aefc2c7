package status

import (
	"context"
	"time"
)

// Vocabulary defines the status strings for one job kind. Each kind is
// a specialization of the same state machine: one initial value written
// at claim time, a set of values that count as "in progress", and two
// terminal values.
type Vocabulary struct {
	Initial    string
	InProgress []string
	Done       string
	Failed     string
}

// Tracker maps one job kind's vocabulary onto the Store and owns the
// progress-to-terminal coupling rule: recording 100% marks the job
// done in the same call.
type Tracker struct {
	store      *Store
	prefix     string
	vocab      Vocabulary
	defaultTTL time.Duration
}

func NewTracker(store *Store, prefix string, vocab Vocabulary, defaultTTL time.Duration) *Tracker {
	return &Tracker{
		store:      store,
		prefix:     prefix,
		vocab:      vocab,
		defaultTTL: defaultTTL,
	}
}

// Start claims the job: it writes the initial status with a TTL and
// resets progress to 0, but only if no status key currently exists.
// The claimed return is false when another caller got there first (or
// a previous run has not expired yet). A lost claim whose current
// status is the terminal failure value is cleared and re-claimed, so a
// failed job is submittable again immediately rather than after TTL
// expiry. A failed progress reset releases the claim; a claim with no
// progress key behind it must not survive.
func (t *Tracker) Start(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = t.defaultTTL
	}
	claimed, err := t.store.Claim(ctx, t.prefix, id, t.vocab.Initial, ttl)
	if err != nil {
		return false, err
	}
	if !claimed {
		val, ok, err := t.store.GetStatus(ctx, t.prefix, id)
		if err != nil {
			return false, err
		}
		if !ok || val != t.vocab.Failed {
			return false, nil
		}
		if err := t.store.Clear(ctx, t.prefix, id); err != nil {
			return false, err
		}
		claimed, err = t.store.Claim(ctx, t.prefix, id, t.vocab.Initial, ttl)
		if err != nil || !claimed {
			return claimed, err
		}
	}
	if err := t.store.ResetProgress(ctx, t.prefix, id, ttl); err != nil {
		if clErr := t.store.Clear(ctx, t.prefix, id); clErr != nil {
			return false, clErr
		}
		return false, err
	}
	return true, nil
}

// Release drops the tracked entry so the id can be claimed again.
func (t *Tracker) Release(ctx context.Context, id string) error {
	return t.store.Clear(ctx, t.prefix, id)
}

// Status returns the raw status string, or ok=false when the entry is
// absent or expired.
func (t *Tracker) Status(ctx context.Context, id string) (string, bool, error) {
	return t.store.GetStatus(ctx, t.prefix, id)
}

// InProgress reports whether the current status is one of the kind's
// in-progress values. An absent key is false: "never started" and
// "expired mid-flight" are indistinguishable here.
func (t *Tracker) InProgress(ctx context.Context, id string) (bool, error) {
	val, ok, err := t.store.GetStatus(ctx, t.prefix, id)
	if err != nil || !ok {
		return false, err
	}
	for _, s := range t.vocab.InProgress {
		if val == s {
			return true, nil
		}
	}
	return false, nil
}

// IsDone reports whether the job reached the terminal success value.
func (t *Tracker) IsDone(ctx context.Context, id string) (bool, error) {
	val, ok, err := t.store.GetStatus(ctx, t.prefix, id)
	if err != nil || !ok {
		return false, err
	}
	return val == t.vocab.Done, nil
}

// MarkDone overwrites the status with the terminal success value. No
// prior claim is required; marking a never-started job silently
// succeeds (and writes a key with no TTL).
func (t *Tracker) MarkDone(ctx context.Context, id string) error {
	return t.store.SetStatus(ctx, t.prefix, id, t.vocab.Done)
}

// MarkFailed overwrites the status with the terminal failure value.
func (t *Tracker) MarkFailed(ctx context.Context, id string) error {
	return t.store.SetStatus(ctx, t.prefix, id, t.vocab.Failed)
}

// SetStatus overwrites the status with an arbitrary vocabulary value,
// for intermediate transitions like queued -> downloading.
func (t *Tracker) SetStatus(ctx context.Context, id, status string) error {
	return t.store.SetStatus(ctx, t.prefix, id, status)
}

// RecordProgress computes floor(completed/total*100) clamped to
// [0,100] and stores it. A total of zero or less records 0% rather
// than dividing by zero. Reaching 100 marks the job done.
func (t *Tracker) RecordProgress(ctx context.Context, id string, completed, total int) error {
	pct := 0
	if total > 0 {
		pct = completed * 100 / total
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	if err := t.store.SetProgress(ctx, t.prefix, id, pct); err != nil {
		return err
	}
	if pct == 100 {
		return t.MarkDone(ctx, id)
	}
	return nil
}

// Progress returns the recorded percentage, 0 when absent.
func (t *Tracker) Progress(ctx context.Context, id string) (int, error) {
	return t.store.GetProgress(ctx, t.prefix, id)
}

// ActiveIDs scans the kind's whole namespace and returns ids whose
// status matches one of the given values.
func (t *Tracker) ActiveIDs(ctx context.Context, statuses ...string) ([]string, error) {
	ids, err := t.store.ScanIDs(ctx, t.prefix)
	if err != nil {
		return nil, err
	}

	var active []string
	for _, id := range ids {
		val, ok, err := t.store.GetStatus(ctx, t.prefix, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, s := range statuses {
			if val == s {
				active = append(active, id)
				break
			}
		}
	}
	return active, nil
}
