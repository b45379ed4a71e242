package aggregator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"cloudscope/internal/broker"
	"cloudscope/internal/collect"
)

// Collectors bundles the per-run collaborators built for a delegated caller.
type Collectors struct {
	Tenants TenantLister
	Compute InstanceCollector
	Assets  AssetCollector
	Metric  MetricCollector
}

// Factory builds collectors bound to a delegated caller. Wiring against the
// real upstream APIs lives in cmd; tests inject fakes.
type Factory func(ctx context.Context, caller *broker.Caller) (Collectors, error)

// Pipeline is the full run: authenticate, discover, collect. Authentication
// failure is the one fatal outcome; everything after degrades per slot.
type Pipeline struct {
	log      *zap.SugaredLogger
	broker   *broker.Broker
	identity broker.DelegatedIdentity
	factory  Factory
	opts     []Option
}

func NewPipeline(log *zap.SugaredLogger, b *broker.Broker, identity broker.DelegatedIdentity, factory Factory, opts ...Option) *Pipeline {
	return &Pipeline{log: log, broker: b, identity: identity, factory: factory, opts: opts}
}

// Run executes a full aggregation run.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	caller, err := p.broker.Authenticate(ctx, p.identity)
	if err != nil {
		return Result{}, err
	}
	cs, err := p.factory(ctx, caller)
	if err != nil {
		return Result{}, fmt.Errorf("build collectors: %w", err)
	}
	svc := New(p.log, cs.Tenants, cs.Compute, cs.Assets, cs.Metric, p.opts...)
	return svc.Run(ctx)
}

// CollectAssets serves the single-tenant asset route: authenticate, then run
// only the asset collector. A collector failure degrades to an empty list,
// mirroring the full run's slot policy.
func (p *Pipeline) CollectAssets(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error) {
	caller, err := p.broker.Authenticate(ctx, p.identity)
	if err != nil {
		return nil, err
	}
	cs, err := p.factory(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("build collectors: %w", err)
	}
	recs, err := cs.Assets.Collect(ctx, tenantID)
	if err != nil {
		p.log.Warnw("asset collector failed, returning empty list", "tenant", tenantID, "err", err)
		return []collect.ResourceRecord{}, nil
	}
	return recs, nil
}
