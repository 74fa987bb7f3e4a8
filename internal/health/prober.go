package health

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/octoroute/internal/metrics"
)

const (
	probeInterval = 30 * time.Second
	probeTimeout  = 5 * time.Second
	maxRestarts   = 5
)

// EndpointSource supplies the set of (name, base URL) pairs the prober
// sweeps every interval. *internal/catalog.Catalog satisfies this directly
// through its ProbeTargets method.
type EndpointSource interface {
	ProbeTargets() map[string]string // endpoint name -> base URL
}

// Prober runs the periodic HTTP HEAD sweep against every configured
// endpoint and feeds the result into the shared Tracker. It is supervised:
// if the sweep loop panics or returns, it is restarted up to maxRestarts
// times; beyond that the loss of health tracking is permanent until
// process restart and must be surfaced via Degraded().
type Prober struct {
	tracker  *Tracker
	source   EndpointSource
	log      *logrus.Logger
	metrics  *metrics.Sink
	client   *http.Client
	restarts atomic.Int64
	degraded atomic.Bool
}

// NewProber constructs a Prober. Run must be called to start the sweep.
func NewProber(tracker *Tracker, source EndpointSource, sink *metrics.Sink, log *logrus.Logger) *Prober {
	return &Prober{
		tracker: tracker,
		source:  source,
		log:     log,
		metrics: sink,
		client:  &http.Client{Timeout: probeTimeout},
	}
}

// Run blocks until ctx is cancelled, supervising the sweep loop with
// bounded restarts.
func (p *Prober) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.runSupervised(ctx); err != nil {
			n := p.restarts.Add(1)
			p.log.WithError(err).WithField("restart_count", n).Warn("health: prober sweep loop terminated, restarting")
			p.metrics.RecordBackgroundHealthTaskFailure(metrics.SweepPanic)
			if n > maxRestarts {
				p.degraded.Store(true)
				p.log.Error("health: prober exhausted restart budget; health tracking is now permanently degraded until process restart")
				p.metrics.RecordBackgroundHealthTaskFailure(metrics.RestartBudgetExhausted)
				return
			}
			continue
		}
		return
	}
}

// runSupervised runs the sweep loop, converting a panic into an error so
// the supervisor above can count and bound restarts.
func (p *Prober) runSupervised(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in prober sweep: %v", r)
		}
	}()

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Prober) sweep(ctx context.Context) {
	for name, baseURL := range p.source.ProbeTargets() {
		go p.probeOne(ctx, name, baseURL)
	}
}

func (p *Prober) probeOne(ctx context.Context, name, baseURL string) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, baseURL+"/models", nil)
	if err != nil {
		p.markFailure(name, err)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.markFailure(name, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if merr := p.tracker.MarkSuccess(name); merr != nil {
			p.log.WithError(merr).WithField("endpoint", name).Warn("health: mark_success failed during probe")
		}
		return
	}
	p.markFailure(name, fmt.Errorf("probe returned status %d", resp.StatusCode))
}

func (p *Prober) markFailure(name string, cause error) {
	if merr := p.tracker.MarkFailure(name); merr != nil {
		p.log.WithError(merr).WithField("endpoint", name).Warn("health: mark_failure failed during probe")
		return
	}
	p.log.WithError(cause).WithField("endpoint", name).Debug("health: probe failed")
}

// Degraded reports whether the prober has permanently exhausted its
// restart budget. Surfaced by GET /health as status "degraded".
func (p *Prober) Degraded() bool { return p.degraded.Load() }

// RestartCount returns how many times the sweep loop has been restarted.
func (p *Prober) RestartCount() int64 { return p.restarts.Load() }
