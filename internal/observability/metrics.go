package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	syncCount    map[string]int64
	fetchLatency time.Duration
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		syncCount:    make(map[string]int64),
	}
}

// RecordRequest increments counters for sandbox HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordFetch counts a settled ticket-list fetch by outcome
// ("ok", "error", "superseded", "auth").
func (m *Metrics) RecordFetch(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCount["fetch."+outcome]++
	m.fetchLatency = took
}

// RecordPush counts a push channel event by kind.
func (m *Metrics) RecordPush(kind string) {
	m.incr("push." + kind)
}

// RecordAlert counts a raised user alert.
func (m *Metrics) RecordAlert() {
	m.incr("alert.shown")
}

func (m *Metrics) incr(key string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCount[key]++
}

// Counter returns a sync counter value, e.g. Counter("fetch.ok").
func (m *Metrics) Counter(key string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncCount[key]
}

// Snapshot copies every sync counter, sorted keys first, for status output.
func (m *Metrics) Snapshot() []Sample {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, 0, len(m.syncCount))
	for k, v := range m.syncCount {
		out = append(out, Sample{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Sample is one named counter value.
type Sample struct {
	Name  string
	Value int64
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}

// LastFetchLatency reports how long the most recent fetch took, retries included.
func (m *Metrics) LastFetchLatency() time.Duration {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchLatency
}

// Requests reports the request count for one route, method and status.
func (m *Metrics) Requests(path, method string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount[pathKey(path, method, status)]
}

// Errors reports the error count for one path, method and error code.
func (m *Metrics) Errors(path, method, code string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errorCount[path+"|"+method+"|"+code]
}
