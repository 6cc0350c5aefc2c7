package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"docflow/internal/ollama"
	"docflow/internal/queue"
	"docflow/internal/status"
	"docflow/internal/storage"
)

// JobID derives the tracking id from the stored file name, e.g.
// "1712345678.pdf" -> "1712345678". It matches the id handed out at
// upload time.
func JobID(file string) string {
	return strings.TrimSuffix(file, filepath.Ext(file))
}

// pageWindow resolves the requested page range against the actual
// document. Start pages below 1 snap to 1; a count of 0 (or one that
// overruns the document) means everything from start to the last page.
func pageWindow(start, count, total int) (int, int, error) {
	if start < 1 {
		start = 1
	}
	if start > total {
		return 0, 0, fmt.Errorf("start page %d beyond last page %d", start, total)
	}
	if count <= 0 || start+count-1 > total {
		count = total - start + 1
	}
	return start, count, nil
}

// Extractor runs one file-extraction job end to end: resolve the page
// window, extract each page with the requested engine, record per-page
// progress, persist the processed output, and flip the job terminal.
type Extractor struct {
	store  *storage.Storage
	files  *status.FileTracker
	ollama *ollama.Client
	logger *slog.Logger
}

func NewExtractor(store *storage.Storage, files *status.FileTracker, oc *ollama.Client, logger *slog.Logger) *Extractor {
	return &Extractor{
		store:  store,
		files:  files,
		ollama: oc,
		logger: logger,
	}
}

// Run processes one queue message. A returned error means the job
// failed terminally; Run has already recorded the failed status by
// then.
func (e *Extractor) Run(ctx context.Context, msg queue.FileExtractMessage) error {
	id := JobID(msg.File)
	if err := e.run(ctx, id, msg); err != nil {
		if markErr := e.files.MarkFailed(ctx, id); markErr != nil {
			e.logger.Error("mark failed", "id", id, "err", markErr)
		}
		return fmt.Errorf("extract %s: %w", id, err)
	}
	return nil
}

func (e *Extractor) run(ctx context.Context, id string, msg queue.FileExtractMessage) error {
	path := e.store.UploadPath(msg.File)
	if !e.store.UploadExists(msg.File) {
		return fmt.Errorf("file does not exist: %s", path)
	}

	engine, err := NewEngine(msg.Engine, msg.Model, e.ollama)
	if err != nil {
		return err
	}

	total, err := PageCount(ctx, path)
	if err != nil {
		return err
	}
	if total == 0 {
		return fmt.Errorf("document has no pages")
	}

	start, limit, err := pageWindow(msg.StartPage, msg.PageCount, total)
	if err != nil {
		return err
	}

	e.logger.Info("extracting", "id", id, "engine", msg.Engine, "pages", limit, "start", start)

	pages := make([]storage.Page, 0, limit)
	for i := 0; i < limit; i++ {
		pageNum := start + i
		text, err := engine.ExtractPage(ctx, path, pageNum)
		if err != nil {
			// A single unreadable page does not fail the job; the page
			// is recorded empty, matching how image-level errors were
			// always tolerated.
			e.logger.Warn("page extraction failed", "id", id, "page", pageNum, "err", err)
			text = ""
		}
		pages = append(pages, storage.Page{PageNum: pageNum, Text: text})

		// The final progress write happens after the output is saved,
		// so a reader never sees "done" without readable content.
		if i+1 < limit {
			if err := e.files.RecordPage(ctx, id, i+1, limit); err != nil {
				e.logger.Error("record progress", "id", id, "err", err)
			}
		}
	}

	if err := e.store.SaveProcessed(id, pages); err != nil {
		return err
	}
	return e.files.RecordPage(ctx, id, limit, limit)
}
