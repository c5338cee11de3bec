package gateway

import (
	"context"
	"time"
)

// HealthChecker is the part of Client the probe needs
type HealthChecker interface {
	Health(ctx context.Context) (*HealthResponse, error)
}

// ProbeResult is the outcome of one health check
type ProbeResult struct {
	Ready     bool
	Reachable bool
	Health    *HealthResponse
	Err       error
	Latency   time.Duration
}

// Probe answers whether the agent service is reachable and its agent
// initialized. It never retries; callers decide the cadence.
type Probe struct {
	checker HealthChecker
}

// NewProbe creates a probe over a health checker, usually a *Client
func NewProbe(checker HealthChecker) *Probe {
	return &Probe{checker: checker}
}

// Check reports readiness. Any failure, including an unreachable service,
// is reported as not ready rather than as an error.
func (p *Probe) Check(ctx context.Context) bool {
	return p.Status(ctx).Ready
}

// Status performs one health check and keeps the details for diagnostics
func (p *Probe) Status(ctx context.Context) ProbeResult {
	start := time.Now()
	health, err := p.checker.Health(ctx)
	res := ProbeResult{Health: health, Err: err, Latency: time.Since(start)}

	switch {
	case err == nil:
		res.Reachable = true
		res.Ready = health.AgentInitialized
	case StatusCode(err) != 0:
		// The service answered, just not with 2xx.
		res.Reachable = true
	}
	return res
}

// Poll checks readiness every interval until ctx is done. onChange is
// called with the first result and then only when readiness flips.
func (p *Probe) Poll(ctx context.Context, interval time.Duration, onChange func(ready bool)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := p.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	onChange(last)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready := p.Check(ctx)
			if ctx.Err() != nil {
				return
			}
			if ready != last {
				last = ready
				onChange(ready)
			}
		}
	}
}
