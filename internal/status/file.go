package status

import (
	"context"
	"time"
)

// File-processing status values. These are the exact strings stored in
// redis and read back by both the API and the extract workers.
const (
	FilePending = "pending"
	FileDone    = "done"
	FileFailed  = "failed"
)

const fileprefix = "processing"

// DefaultFileTTL bounds how long a file job's tracking entry lives
// without a terminal write.
const DefaultFileTTL = time.Hour

// FileTracker tracks file-processing jobs. A file job is in progress
// only while its status is exactly "pending"; done and failed are
// terminal, and an absent key means the job is unknown.
type FileTracker struct {
	*Tracker
}

func NewFileTracker(store *Store, defaultTTL time.Duration) *FileTracker {
	if defaultTTL <= 0 {
		defaultTTL = DefaultFileTTL
	}
	return &FileTracker{
		Tracker: NewTracker(store, fileprefix, Vocabulary{
			Initial:    FilePending,
			InProgress: []string{FilePending},
			Done:       FileDone,
			Failed:     FileFailed,
		}, defaultTTL),
	}
}

// RecordPage records per-page extraction progress; finishing the last
// page flips the job to done.
func (t *FileTracker) RecordPage(ctx context.Context, id string, page, totalPages int) error {
	return t.RecordProgress(ctx, id, page, totalPages)
}
