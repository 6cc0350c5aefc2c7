package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and queue traffic.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	publishedTotal = make(map[string]int64)
	consumedTotal  = make(map[consumeKey]int64)
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type consumeKey struct {
	Queue   string
	Outcome string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordPublish increments the published-message counter for a queue.
func RecordPublish(queue string) {
	mu.Lock()
	defer mu.Unlock()
	publishedTotal[queue]++
}

// RecordConsume increments the consumed-delivery counter for a queue
// with the handling outcome (ok, failed, malformed).
func RecordConsume(queue, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	consumedTotal[consumeKey{Queue: queue, Outcome: outcome}]++
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP docflow_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE docflow_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "docflow_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP docflow_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE docflow_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP docflow_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE docflow_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "docflow_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "docflow_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	b.WriteString("# HELP docflow_queue_published_total Messages accepted by the broker per queue\n")
	b.WriteString("# TYPE docflow_queue_published_total counter\n")

	var pubKeys []string
	for k := range publishedTotal {
		pubKeys = append(pubKeys, k)
	}
	sort.Strings(pubKeys)
	for _, k := range pubKeys {
		fmt.Fprintf(&b, "docflow_queue_published_total{queue=\"%s\"} %d\n", k, publishedTotal[k])
	}

	b.WriteString("# HELP docflow_queue_consumed_total Deliveries handled per queue and outcome\n")
	b.WriteString("# TYPE docflow_queue_consumed_total counter\n")

	var conKeys []consumeKey
	for k := range consumedTotal {
		conKeys = append(conKeys, k)
	}
	sort.Slice(conKeys, func(i, j int) bool {
		if conKeys[i].Queue != conKeys[j].Queue {
			return conKeys[i].Queue < conKeys[j].Queue
		}
		return conKeys[i].Outcome < conKeys[j].Outcome
	})
	for _, k := range conKeys {
		fmt.Fprintf(&b, "docflow_queue_consumed_total{queue=\"%s\",outcome=\"%s\"} %d\n",
			k.Queue, k.Outcome, consumedTotal[k])
	}

	return b.String()
}

// Reset clears all metric state. Test helper.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	requestsTotal = make(map[reqKey]int64)
	latencyMsSum = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	publishedTotal = make(map[string]int64)
	consumedTotal = make(map[consumeKey]int64)
}
