package health

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/pasaeventos-api/internal/probe"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Report maps dependency name to its probe result.
type Report map[string]probe.Result

// Healthy reports whether every entry is ok.
func (r Report) Healthy() bool {
	for _, res := range r {
		if !res.OK {
			return false
		}
	}
	return true
}

// Failing returns the names of failed entries, sorted.
func (r Report) Failing() []string {
	var out []string
	for name, res := range r {
		if !res.OK {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Observer is called once per probe with its outcome and wall time.
type Observer func(name string, res probe.Result, took time.Duration)

// Aggregator is a registry of named probes.
type Aggregator struct {
	mu      sync.RWMutex
	probes  map[string]probe.Pinger
	observe Observer
}

type Option func(*Aggregator)

// WithObserver installs fn as the per-probe observer (metrics).
func WithObserver(fn Observer) Option {
	return func(a *Aggregator) { a.observe = fn }
}

func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{probes: make(map[string]probe.Pinger)}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Register adds or replaces the probe for name.
func (a *Aggregator) Register(name string, p probe.Pinger) {
	a.mu.Lock()
	a.probes[name] = p
	a.mu.Unlock()
}

// Names returns the registered dependency names, sorted.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.probes))
	for name := range a.probes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Check runs every registered probe concurrently and returns once all
// have finished.
func (a *Aggregator) Check(ctx context.Context) Report {
	a.mu.RLock()
	snapshot := make(map[string]probe.Pinger, len(a.probes))
	for name, p := range a.probes {
		snapshot[name] = p
	}
	a.mu.RUnlock()
	return aggregate(ctx, snapshot, a.observe)
}

// Require returns a readiness check failing while any of names is down.
// Unregistered names are ignored.
func (a *Aggregator) Require(names ...string) CheckFunc {
	return func(ctx context.Context) error {
		if len(names) == 0 {
			return nil
		}
		a.mu.RLock()
		subset := make(map[string]probe.Pinger, len(names))
		for _, name := range names {
			if p, ok := a.probes[name]; ok {
				subset[name] = p
			}
		}
		a.mu.RUnlock()
		if failing := aggregate(ctx, subset, a.observe).Failing(); len(failing) > 0 {
			return xerrors.Newf("dependencies down: %s", strings.Join(failing, ","))
		}
		return nil
	}
}

// Aggregate runs probes concurrently and joins on all of them.
func Aggregate(ctx context.Context, probes map[string]probe.Pinger) Report {
	return aggregate(ctx, probes, nil)
}

type entry struct {
	name string
	p    probe.Pinger
}

func aggregate(ctx context.Context, probes map[string]probe.Pinger, observe Observer) Report {
	entries := make([]entry, 0, len(probes))
	for name, p := range probes {
		entries = append(entries, entry{name, p})
	}
	results := make([]probe.Result, len(entries))

	tracer := otel.Tracer("pasaeventos/health")

	// plain Group: no shared cancellation, a failed probe never stops its siblings
	var g errgroup.Group
	for i, e := range entries {
		g.Go(func() error {
			pctx, span := tracer.Start(ctx, "health.probe",
				trace.WithAttributes(attribute.String("dependency", e.name)))
			start := time.Now()
			res := probe.Run(pctx, e.p)
			took := time.Since(start)
			if !res.OK {
				span.SetStatus(codes.Error, res.Detail)
			}
			span.End()

			results[i] = res
			if observe != nil {
				observe(e.name, res, took)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make(Report, len(entries))
	for i, e := range entries {
		out[e.name] = results[i]
	}
	return out
}
