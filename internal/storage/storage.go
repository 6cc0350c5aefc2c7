package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidType is returned when an upload is not a PDF.
var ErrInvalidType = errors.New("invalid file type, only .pdf is accepted")

// Page is one page of processed output as written to the shared
// processed directory.
type Page struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

// Storage manages the shared filesystem contract between the API and
// the workers: uploads under <root>/upload/pdf, processed output under
// <root>/processed. The uploader guarantees a file exists before a job
// for it is dispatched; workers only ever read uploads and write
// processed output.
type Storage struct {
	root string
}

func New(root string) (*Storage, error) {
	s := &Storage{root: root}
	for _, dir := range []string{s.uploadDir(), s.processedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Storage) uploadDir() string {
	return filepath.Join(s.root, "upload", "pdf")
}

func (s *Storage) processedDir() string {
	return filepath.Join(s.root, "processed")
}

// SaveUpload stores an uploaded PDF under a timestamp-derived name and
// returns the stored file name and size. The name doubles as the
// stable job identifier (minus extension) for later dispatch. Two
// uploads in the same millisecond would collide on the timestamp
// alone, so creation is exclusive and collisions get a numeric suffix.
func (s *Storage) SaveUpload(originalName string, r io.Reader) (string, int64, error) {
	if strings.ToLower(filepath.Ext(originalName)) != ".pdf" {
		return "", 0, ErrInvalidType
	}

	base := time.Now().UnixMilli()
	var f *os.File
	var name string
	for attempt := 0; ; attempt++ {
		name = fmt.Sprintf("%d.pdf", base)
		if attempt > 0 {
			name = fmt.Sprintf("%d-%d.pdf", base, attempt)
		}
		var err error
		f, err = os.OpenFile(filepath.Join(s.uploadDir(), name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("create upload: %w", err)
		}
		break
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	return name, size, nil
}

// UploadPath returns the absolute path of an uploaded file.
func (s *Storage) UploadPath(file string) string {
	return filepath.Join(s.uploadDir(), file)
}

// UploadExists reports whether the named upload is present on shared
// storage.
func (s *Storage) UploadExists(file string) bool {
	_, err := os.Stat(s.UploadPath(file))
	return err == nil
}

// SaveProcessed writes the extracted pages for a job as JSON.
func (s *Storage) SaveProcessed(id string, pages []Page) error {
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("encode processed %s: %w", id, err)
	}
	path := filepath.Join(s.processedDir(), id+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write processed %s: %w", id, err)
	}
	return nil
}

// ReadProcessed returns the processed output for a job, with ok=false
// when no output exists yet.
func (s *Storage) ReadProcessed(id string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.processedDir(), id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read processed %s: %w", id, err)
	}
	return data, true, nil
}
