package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"docflow/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OllamaConfig{BaseURL: srv.URL})
}

func TestList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.2-vision","size":123,"modified_at":"2025-01-01T00:00:00Z"}]}`)
	})

	models, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(models) != 1 || models[0].Name != "llama3.2-vision" {
		t.Fatalf("unexpected models: %+v", models)
	}
}

func TestPull_StreamsProgress(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/pull" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode pull request: %v", err)
		}
		if req.Name != "mistral" {
			t.Errorf("expected model mistral, got %q", req.Name)
		}
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","total":200,"completed":50}`)
		fmt.Fprintln(w, `{"status":"downloading","total":200,"completed":200}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	})

	var calls [][2]int64
	err := c.Pull(context.Background(), "mistral", func(completed, total int64) {
		calls = append(calls, [2]int64{completed, total})
	})
	if err != nil {
		t.Fatalf("pull error: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 progress callbacks, got %d", len(calls))
	}
	if calls[0] != [2]int64{50, 200} || calls[1] != [2]int64{200, 200} {
		t.Fatalf("unexpected progress values: %v", calls)
	}
}

func TestPull_ErrorLineFailsPull(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	})

	err := c.Pull(context.Background(), "no-such-model", nil)
	if err == nil {
		t.Fatalf("expected error from pull")
	}
	if !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected runtime error message, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model  string   `json:"model"`
			Prompt string   `json:"prompt"`
			Images []string `json:"images"`
			Stream bool     `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode generate request: %v", err)
		}
		if req.Model != "llama3.2-vision" {
			t.Errorf("expected model llama3.2-vision, got %q", req.Model)
		}
		if len(req.Images) != 1 {
			t.Errorf("expected one image, got %d", len(req.Images))
		}
		if req.Stream {
			t.Errorf("expected stream=false")
		}
		fmt.Fprint(w, `{"response":"extracted text"}`)
	})

	text, err := c.Generate(context.Background(), "llama3.2-vision", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	if text != "extracted text" {
		t.Fatalf("expected extracted text, got %q", text)
	}
}

func TestList_UpstreamErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := c.List(context.Background()); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}
