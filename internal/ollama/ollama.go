package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docflow/internal/config"
)

// Client is a thin HTTP client for the inference runtime. The API
// process uses it to list installed models; the worker uses it to pull
// models (with streamed progress) and to OCR page images.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg config.OllamaConfig) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "http://localhost:11434"
	}
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

// Model describes one installed model as reported by the runtime.
type Model struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// List returns the models installed on the runtime.
func (c *Client) List(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list models: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return out.Models, nil
}

// PullProgress receives streamed download progress. Total may be zero
// for status-only lines.
type PullProgress func(completed, total int64)

// Pull downloads a model, invoking fn for every progress line the
// runtime streams back.
func (c *Client) Pull(ctx context.Context, name string, fn PullProgress) error {
	body, err := json.Marshal(map[string]any{"name": name, "stream": true})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pull %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pull %s: unexpected status %d", name, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk struct {
			Status    string `json:"status"`
			Error     string `json:"error"`
			Total     int64  `json:"total"`
			Completed int64  `json:"completed"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return fmt.Errorf("pull %s: %s", name, chunk.Error)
		}
		if fn != nil && chunk.Total > 0 {
			fn(chunk.Completed, chunk.Total)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pull %s: read stream: %w", name, err)
	}
	return nil
}

// ocrPrompt instructs the model to transcribe without commentary.
const ocrPrompt = "Please perform OCR on the supplied image and output the extracted text exactly as it appears. " +
	"If the image contains multiple columns or sections, preserve the structural layout as much as possible. " +
	"Do not include any explanations, commentary, or formatting modifications."

// Generate runs the OCR prompt against a page image and returns the
// model's transcription.
func (c *Client) Generate(ctx context.Context, model string, imagePNG []byte) (string, error) {
	payload := map[string]any{
		"model":  model,
		"prompt": ocrPrompt,
		"images": []string{base64.StdEncoding.EncodeToString(imagePNG)},
		"stream": false,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}
