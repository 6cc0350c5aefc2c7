package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"docflow/internal/ollama"
	"docflow/internal/queue"
)

// Engine extracts the text of one page of a PDF.
type Engine interface {
	ExtractPage(ctx context.Context, pdfPath string, page int) (string, error)
}

// NewEngine resolves an engine name from a queue message. Model is
// required for the ollama engine and ignored by tesseract.
func NewEngine(name, model string, oc *ollama.Client) (Engine, error) {
	switch strings.ToLower(name) {
	case queue.EngineTesseract:
		return &TesseractEngine{}, nil
	case queue.EngineOllama:
		if model == "" {
			return nil, fmt.Errorf("ollama engine requires a model")
		}
		return &OllamaEngine{client: oc, model: model}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// renderPage rasterizes a single PDF page to a PNG via pdftoppm and
// returns the image bytes.
func renderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "docflow-page-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "page")
	p := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", "150", "-f", p, "-l", p, "-singlefile", pdfPath, out)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %v: %s", page, err, stderr.String())
	}

	img, err := os.ReadFile(out + ".png")
	if err != nil {
		return nil, fmt.Errorf("read rendered page %d: %w", page, err)
	}
	return img, nil
}

// PageCount returns the number of pages in a PDF using pdfinfo.
func PageCount(ctx context.Context, pdfPath string) (int, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("pdfinfo: %w", err)
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("parse page count: %w", err)
		}
		return n, nil
	}
	return 0, fmt.Errorf("pdfinfo: no page count in output")
}

// TesseractEngine shells out to the tesseract CLI on a rasterized
// page.
type TesseractEngine struct{}

func (e *TesseractEngine) ExtractPage(ctx context.Context, pdfPath string, page int) (string, error) {
	img, err := renderPage(ctx, pdfPath, page)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "docflow-ocr-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	imgPath := filepath.Join(dir, "page.png")
	if err := os.WriteFile(imgPath, img, 0o644); err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, "tesseract", imgPath, "stdout")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract page %d: %v: %s", page, err, stderr.String())
	}
	return stdout.String(), nil
}

// OllamaEngine sends a rasterized page to a vision model for OCR.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

func (e *OllamaEngine) ExtractPage(ctx context.Context, pdfPath string, page int) (string, error) {
	img, err := renderPage(ctx, pdfPath, page)
	if err != nil {
		return "", err
	}
	return e.client.Generate(ctx, e.model, img)
}
