package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cloudscope/internal/collect"
	"cloudscope/pkg/metrics"
)

// Service orchestrates one aggregation run over injected collectors.
type Service struct {
	log     *zap.SugaredLogger
	tenants TenantLister
	compute InstanceCollector
	assets  AssetCollector
	metric  MetricCollector

	tenantLimit    int
	collectorLimit int
	sample         SampleStrategy
}

type Option func(*Service)

// WithTenantLimit bounds how many tenants are collected concurrently.
func WithTenantLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.tenantLimit = n
		}
	}
}

// WithCollectorLimit bounds how many collectors run concurrently within one
// tenant.
func WithCollectorLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.collectorLimit = n
		}
	}
}

// WithSampleStrategy overrides the instance sampling policy.
func WithSampleStrategy(strategy SampleStrategy) Option {
	return func(s *Service) {
		if strategy != nil {
			s.sample = strategy
		}
	}
}

func New(log *zap.SugaredLogger, tenants TenantLister, compute InstanceCollector, assets AssetCollector, metric MetricCollector, opts ...Option) *Service {
	s := &Service{
		log:            log,
		tenants:        tenants,
		compute:        compute,
		assets:         assets,
		metric:         metric,
		tenantLimit:    4,
		collectorLimit: 3,
		sample:         FirstInstance,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run discovers tenants and collects every one of them. Discovery failure
// degrades to an empty tenant set with a warning; it never fails the run.
// Reports come back ordered by discovery order regardless of completion
// order. On cancellation, tenants that had not started are omitted;
// completed reports remain valid.
func (s *Service) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	defer func() {
		metrics.Runs.Inc()
		metrics.RunDuration.Observe(time.Since(started).Seconds())
	}()

	result := Result{Reports: []TenantReport{}}

	tenantIDs, err := s.tenants.ListTenants(ctx)
	if err != nil {
		s.log.Warnw("tenant discovery failed, continuing with empty tenant set", "err", err)
		metrics.DiscoveryFailures.Inc()
		result.Warnings = append(result.Warnings, fmt.Sprintf("tenant discovery failed: %v", err))
		return result, nil
	}
	metrics.TenantsDiscovered.Observe(float64(len(tenantIDs)))
	if len(tenantIDs) == 0 {
		s.log.Infow("no accessible tenants")
		return result, nil
	}

	reports := make([]*TenantReport, len(tenantIDs))
	g := &errgroup.Group{}
	g.SetLimit(s.tenantLimit)
	for i, tenantID := range tenantIDs {
		i, tenantID := i, tenantID
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil // not started before cancellation: omit
			}
			rep := s.collectTenant(ctx, tenantID)
			reports[i] = &rep
			return nil
		})
	}
	_ = g.Wait()

	for _, rep := range reports {
		if rep != nil {
			result.Reports = append(result.Reports, *rep)
		}
	}
	return result, nil
}

// collectTenant runs the three collectors for one tenant concurrently and
// merges their outputs into fixed named slots. Each collector fails
// independently; a failed slot becomes an empty sequence plus a warning.
func (s *Service) collectTenant(ctx context.Context, tenantID string) TenantReport {
	rep := TenantReport{
		TenantID:  tenantID,
		Instances: []collect.ResourceRecord{},
		Assets:    []collect.ResourceRecord{},
		Metrics:   []collect.MetricDescriptor{},
	}

	var mu sync.Mutex
	degrade := func(collector string, err error) {
		s.log.Warnw("collector failed, slot degraded to empty", "tenant", tenantID, "collector", collector, "err", err)
		metrics.CollectorFailures.WithLabelValues(collector).Inc()
		mu.Lock()
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("%s collector failed: %v", collector, err))
		mu.Unlock()
	}

	g := &errgroup.Group{}
	g.SetLimit(s.collectorLimit)
	g.Go(func() error {
		if recs, err := s.compute.Collect(ctx, tenantID); err != nil {
			degrade("compute", err)
		} else {
			rep.Instances = recs
		}
		return nil
	})
	g.Go(func() error {
		if recs, err := s.assets.Collect(ctx, tenantID); err != nil {
			degrade("asset", err)
		} else {
			rep.Assets = recs
		}
		return nil
	})
	g.Go(func() error {
		if descs, err := s.metric.Descriptors(ctx, tenantID); err != nil {
			degrade("metric", err)
		} else {
			if len(descs) > MaxDescriptors {
				descs = descs[:MaxDescriptors]
			}
			rep.Metrics = descs
		}
		return nil
	})
	_ = g.Wait()

	// Detailed series for one representative instance, chosen by the
	// sampling strategy. Needs the compute slot, so it runs after the
	// parallel phase.
	if inst, ok := s.sample(rep.Instances); ok {
		im, err := s.metric.InstanceSeries(ctx, tenantID, inst.ID, inst.Name)
		if err != nil {
			degrade("metric", err)
		} else {
			rep.InstanceMetrics = []collect.InstanceMetrics{im}
		}
	}

	s.log.Infow("tenant collected",
		"tenant", tenantID,
		"instances", len(rep.Instances),
		"assets", len(rep.Assets),
		"metrics", len(rep.Metrics),
	)
	return rep
}
