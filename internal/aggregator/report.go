// Package aggregator runs the per-tenant fan-out: discover tenants, invoke
// the three collectors for each, and merge their outputs into one report per
// tenant. Collector failures degrade to empty slots here, in one place;
// they are surfaced as warnings, log lines, and Prometheus counters rather
// than failing the run.
package aggregator

import (
	"context"

	"cloudscope/internal/collect"
)

// MaxDescriptors caps the metric-descriptor list carried in a report. The
// cap keeps report size bounded and is a sampling policy of this layer, not
// a collector limitation.
const MaxDescriptors = 10

// TenantReport aggregates one tenant's collector outputs. Any slot may be an
// empty sequence if its collector failed; a failed collector never produces
// an absent report.
type TenantReport struct {
	TenantID        string                     `json:"tenantId"`
	Instances       []collect.ResourceRecord   `json:"instances"`
	Assets          []collect.ResourceRecord   `json:"assets"`
	Metrics         []collect.MetricDescriptor `json:"metrics"`
	InstanceMetrics []collect.InstanceMetrics  `json:"instanceMetrics,omitempty"`
	Warnings        []string                   `json:"warnings,omitempty"`
}

// Result is the outcome of a full run. Warnings carries run-level
// degradations (e.g. discovery failure); per-tenant degradations live on the
// individual reports.
type Result struct {
	Reports  []TenantReport `json:"reports"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Partial reports whether any data was dropped anywhere in the run.
func (r Result) Partial() bool {
	if len(r.Warnings) > 0 {
		return true
	}
	for _, rep := range r.Reports {
		if len(rep.Warnings) > 0 {
			return true
		}
	}
	return false
}

// SampleStrategy picks the representative instance whose detailed time
// series are fetched for a tenant. It is a named policy parameter so
// alternatives can be swapped without touching the orchestrator.
type SampleStrategy func(instances []collect.ResourceRecord) (collect.ResourceRecord, bool)

// FirstInstance samples the first instance in collection order: one
// representative instance per tenant, not statistically chosen.
func FirstInstance(instances []collect.ResourceRecord) (collect.ResourceRecord, bool) {
	if len(instances) == 0 {
		return collect.ResourceRecord{}, false
	}
	return instances[0], true
}

// TenantLister yields the tenant IDs reachable under the delegated identity.
type TenantLister interface {
	ListTenants(ctx context.Context) ([]string, error)
}

// InstanceCollector lists compute instances for one tenant.
type InstanceCollector interface {
	Collect(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error)
}

// AssetCollector lists cloud assets for one tenant.
type AssetCollector interface {
	Collect(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error)
}

// MetricCollector lists metric descriptors and fetches instance series.
type MetricCollector interface {
	Descriptors(ctx context.Context, tenantID string) ([]collect.MetricDescriptor, error)
	InstanceSeries(ctx context.Context, tenantID, instanceID, instanceName string) (collect.InstanceMetrics, error)
}
