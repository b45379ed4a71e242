package collect

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	monitoring "google.golang.org/api/monitoring/v3"
	"google.golang.org/api/option"

	"cloudscope/internal/broker"
)

const (
	cpuMetricType    = "compute.googleapis.com/instance/cpu/utilization"
	memoryMetricType = "compute.googleapis.com/instance/memory/usage"

	// seriesWindow is the trailing interval sampled for instance series,
	// computed from invocation time.
	seriesWindow = time.Hour
)

// MetricCollector lists metric descriptors for a tenant and fetches the two
// fixed instance time series.
type MetricCollector struct {
	log *zap.SugaredLogger
	svc *monitoring.Service
	now func() time.Time
}

func NewMetricCollector(ctx context.Context, log *zap.SugaredLogger, caller *broker.Caller, extra ...option.ClientOption) (*MetricCollector, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(caller)}, extra...)
	svc, err := monitoring.NewService(ctx, opts...)
	if err != nil {
		return nil, collectorErr("metric", err)
	}
	return &MetricCollector{log: log, svc: svc, now: time.Now}, nil
}

// Descriptors lists every metric descriptor visible in the tenant. The
// sampling cap on descriptors is an aggregator policy, not applied here.
func (c *MetricCollector) Descriptors(ctx context.Context, tenantID string) ([]MetricDescriptor, error) {
	descriptors := []MetricDescriptor{}
	err := c.svc.Projects.MetricDescriptors.List("projects/"+tenantID).
		Pages(ctx, func(resp *monitoring.ListMetricDescriptorsResponse) error {
			for _, d := range resp.MetricDescriptors {
				descriptors = append(descriptors, MetricDescriptor{
					Type:        d.Type,
					DisplayName: d.DisplayName,
					Description: d.Description,
				})
			}
			return nil
		})
	if err != nil {
		return nil, collectorErr("metric", err)
	}
	c.log.Debugw("metric descriptors collected", "tenant", tenantID, "count", len(descriptors))
	return descriptors, nil
}

// InstanceSeries fetches CPU utilization and memory usage for one instance
// over the trailing window, [start, end).
func (c *MetricCollector) InstanceSeries(ctx context.Context, tenantID, instanceID, instanceName string) (InstanceMetrics, error) {
	end := c.now().UTC()
	start := end.Add(-seriesWindow)

	cpu, err := c.listSeries(ctx, tenantID, instanceID, cpuMetricType, start, end)
	if err != nil {
		return InstanceMetrics{}, err
	}
	memory, err := c.listSeries(ctx, tenantID, instanceID, memoryMetricType, start, end)
	if err != nil {
		return InstanceMetrics{}, err
	}
	return InstanceMetrics{
		InstanceID:   instanceID,
		InstanceName: instanceName,
		CPU:          cpu,
		Memory:       memory,
	}, nil
}

func (c *MetricCollector) listSeries(ctx context.Context, tenantID, instanceID, metricType string, start, end time.Time) ([]TimeSeriesSample, error) {
	filter := fmt.Sprintf(`metric.type=%q AND resource.labels.instance_id=%q`, metricType, instanceID)
	samples := []TimeSeriesSample{}
	err := c.svc.Projects.TimeSeries.List("projects/"+tenantID).
		Filter(filter).
		IntervalStartTime(start.Format(time.RFC3339)).
		IntervalEndTime(end.Format(time.RFC3339)).
		Pages(ctx, func(resp *monitoring.ListTimeSeriesResponse) error {
			for _, ts := range resp.TimeSeries {
				sample := TimeSeriesSample{Metric: metricType, Start: start, End: end, Points: []SeriesPoint{}}
				if ts.Metric != nil && ts.Metric.Type != "" {
					sample.Metric = ts.Metric.Type
				}
				for _, p := range ts.Points {
					pt := SeriesPoint{Value: pointValue(p.Value)}
					if p.Interval != nil {
						if t, err := time.Parse(time.RFC3339, p.Interval.EndTime); err == nil {
							pt.Timestamp = t
						}
					}
					sample.Points = append(sample.Points, pt)
				}
				samples = append(samples, sample)
			}
			return nil
		})
	if err != nil {
		return nil, collectorErr("metric", err)
	}
	return samples, nil
}

func pointValue(v *monitoring.TypedValue) float64 {
	if v == nil {
		return 0
	}
	switch {
	case v.DoubleValue != nil:
		return *v.DoubleValue
	case v.Int64Value != nil:
		return float64(*v.Int64Value)
	}
	return 0
}
