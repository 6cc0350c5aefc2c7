package metrics

import (
	"strings"
	"testing"
)

func TestExportIncludesRecordedSamples(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	RecordRequest("GET", "/progress/:id", 200, 12)
	RecordRequest("GET", "/progress/:id", 200, 8)
	RecordPublish("NEW_FILE_EXTRACT")
	RecordConsume("NEW_FILE_EXTRACT", "ok")
	RecordConsume("NEW_FILE_EXTRACT", "failed")

	out := Export()

	for _, want := range []string{
		`docflow_http_requests_total{method="GET",path="/progress/:id",status="200"} 2`,
		`docflow_http_request_duration_ms_sum{method="GET",path="/progress/:id"} 20`,
		`docflow_http_request_duration_ms_count{method="GET",path="/progress/:id"} 2`,
		`docflow_queue_published_total{queue="NEW_FILE_EXTRACT"} 1`,
		`docflow_queue_consumed_total{queue="NEW_FILE_EXTRACT",outcome="failed"} 1`,
		`docflow_queue_consumed_total{queue="NEW_FILE_EXTRACT",outcome="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("export missing %q\n%s", want, out)
		}
	}
}

func TestResetClearsSamples(t *testing.T) {
	RecordPublish("OLLAMA_MODEL_PULL")
	Reset()

	if strings.Contains(Export(), "OLLAMA_MODEL_PULL") {
		t.Fatalf("expected no samples after reset")
	}
}
