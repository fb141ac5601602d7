package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/nailsalon/admin-gate/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	decisionCount map[string]int64
	proxyLatency  time.Duration
	proxyCalls    int64
}

// Snapshot is a copy of the counters at one instant.
type Snapshot struct {
	Requests       map[string]int64 `json:"requests"`
	Errors         map[string]int64 `json:"errors"`
	Decisions      map[string]int64 `json:"decisions"`
	AvgProxyMillis float64          `json:"avg_proxy_ms"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		decisionCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
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

// RecordDecision counts one proxy outcome by operation, target, role and
// error code ("ok" on success).
func (m *Metrics) RecordDecision(op domain.Operation, table string, role domain.Role, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	key := string(op) + "|" + table + "|" + role.String() + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisionCount[key]++
	m.proxyLatency += duration
	m.proxyCalls++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{
		Requests:  copyCounts(m.requestCount),
		Errors:    copyCounts(m.errorCount),
		Decisions: copyCounts(m.decisionCount),
	}
	if m.proxyCalls > 0 {
		s.AvgProxyMillis = float64(m.proxyLatency.Milliseconds()) / float64(m.proxyCalls)
	}
	return s
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
