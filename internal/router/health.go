package router

import (
	"sync"
	"time"

	"github.com/benvon/smart-coach/internal/models"
)

const (
	// HealthWindow is the number of samples retained per service
	HealthWindow = 100
	// StatusWindow is the number of most recent samples status is computed from
	StatusWindow = 10
	// DefaultHealthCooldown is how long a sample counts toward status. Once a
	// down service's failures age out it is eligible for a trial call again.
	DefaultHealthCooldown = 30 * time.Second

	downErrorRate     = 0.5
	degradedErrorRate = 0.2
	degradedLatency   = 10 * time.Second
)

// healthTracker is a fixed-size ring buffer of execution samples
type healthTracker struct {
	mu      sync.Mutex
	samples []models.ExecutionSample
	next    int
}

func newHealthTracker() *healthTracker {
	return &healthTracker{samples: make([]models.ExecutionSample, 0, HealthWindow)}
}

func (h *healthTracker) record(s models.ExecutionSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.samples) < HealthWindow {
		h.samples = append(h.samples, s)
		return
	}
	h.samples[h.next] = s
	h.next = (h.next + 1) % HealthWindow
}

func (h *healthTracker) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples = h.samples[:0]
	h.next = 0
}

// recent returns up to n of the newest samples, oldest first
func (h *healthTracker) recent(n int) []models.ExecutionSample {
	h.mu.Lock()
	defer h.mu.Unlock()

	total := len(h.samples)
	if n > total {
		n = total
	}
	out := make([]models.ExecutionSample, 0, n)
	// h.next is the oldest slot once the buffer has wrapped
	for i := total - n; i < total; i++ {
		out = append(out, h.samples[(h.next+i)%total])
	}
	return out
}

// freshSamples drops samples recorded before cutoff
func freshSamples(samples []models.ExecutionSample, cutoff time.Time) []models.ExecutionSample {
	out := samples[:0]
	for _, s := range samples {
		if !s.At.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

// windowStats summarizes a run of samples
type windowStats struct {
	count      int
	errors     int
	errorRate  float64
	avgLatency time.Duration
	cost       float64
	tokens     int
	lastAt     time.Time
}

func summarize(samples []models.ExecutionSample) windowStats {
	var st windowStats
	var latency time.Duration
	for _, s := range samples {
		st.count++
		if !s.Success {
			st.errors++
		}
		latency += s.Latency
		st.cost += s.Cost
		st.tokens += s.TokensUsed
		if s.At.After(st.lastAt) {
			st.lastAt = s.At
		}
	}
	if st.count > 0 {
		st.errorRate = float64(st.errors) / float64(st.count)
		st.avgLatency = latency / time.Duration(st.count)
	}
	return st
}

// statusFor grades a status window: down above 50% errors, degraded above
// 20% errors or 10s mean latency
func statusFor(st windowStats) models.ServiceStatus {
	switch {
	case st.count == 0:
		return models.ServiceHealthy
	case st.errorRate > downErrorRate:
		return models.ServiceDown
	case st.errorRate > degradedErrorRate || st.avgLatency > degradedLatency:
		return models.ServiceDegraded
	default:
		return models.ServiceHealthy
	}
}

func statusRank(s models.ServiceStatus) int {
	switch s {
	case models.ServiceDown:
		return 2
	case models.ServiceDegraded:
		return 1
	default:
		return 0
	}
}

// worseStatus returns the more severe of two statuses
func worseStatus(a, b models.ServiceStatus) models.ServiceStatus {
	if statusRank(b) > statusRank(a) {
		return b
	}
	if a == "" {
		return models.ServiceHealthy
	}
	return a
}
