package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cloudscope/internal/collect"
)

type fakeTenants struct {
	ids []string
	err error
}

func (f *fakeTenants) ListTenants(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

type fakeInstances struct {
	byID  map[string][]collect.ResourceRecord
	err   error
	delay time.Duration
}

func (f *fakeInstances) Collect(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[tenantID], nil
}

type fakeAssets struct {
	byID map[string][]collect.ResourceRecord
	err  error
}

func (f *fakeAssets) Collect(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byID[tenantID], nil
}

type fakeMetrics struct {
	descs     map[string][]collect.MetricDescriptor
	descErr   error
	seriesErr error

	mu     sync.Mutex
	series []string // "tenant/instanceID" per InstanceSeries call
}

func (f *fakeMetrics) Descriptors(ctx context.Context, tenantID string) ([]collect.MetricDescriptor, error) {
	if f.descErr != nil {
		return nil, f.descErr
	}
	return f.descs[tenantID], nil
}

func (f *fakeMetrics) InstanceSeries(ctx context.Context, tenantID, instanceID, instanceName string) (collect.InstanceMetrics, error) {
	f.mu.Lock()
	f.series = append(f.series, tenantID+"/"+instanceID)
	f.mu.Unlock()
	if f.seriesErr != nil {
		return collect.InstanceMetrics{}, f.seriesErr
	}
	return collect.InstanceMetrics{InstanceID: instanceID, InstanceName: instanceName}, nil
}

func instances(ids ...string) []collect.ResourceRecord {
	recs := make([]collect.ResourceRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, collect.ResourceRecord{ID: id, Name: "vm-" + id, Type: "Instance"})
	}
	return recs
}

func descriptors(n int) []collect.MetricDescriptor {
	descs := make([]collect.MetricDescriptor, 0, n)
	for i := 0; i < n; i++ {
		descs = append(descs, collect.MetricDescriptor{Type: fmt.Sprintf("custom.googleapis.com/m%d", i)})
	}
	return descs
}

func newService(t *testing.T, tenants TenantLister, inst InstanceCollector, assets AssetCollector, metric MetricCollector, opts ...Option) *Service {
	t.Helper()
	return New(zap.NewNop().Sugar(), tenants, inst, assets, metric, opts...)
}

func TestRunNoTenants(t *testing.T) {
	s := newService(t, &fakeTenants{}, &fakeInstances{}, &fakeAssets{}, &fakeMetrics{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Reports)
	assert.NotNil(t, res.Reports)
	assert.False(t, res.Partial())
}

func TestRunDiscoveryFailureDegrades(t *testing.T) {
	s := newService(t, &fakeTenants{err: errors.New("crm unreachable")}, &fakeInstances{}, &fakeAssets{}, &fakeMetrics{})

	res, err := s.Run(context.Background())
	require.NoError(t, err, "discovery failure must not fail the run")
	assert.Empty(t, res.Reports)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "crm unreachable")
	assert.True(t, res.Partial())
}

func TestRunFullReport(t *testing.T) {
	inst := &fakeInstances{byID: map[string][]collect.ResourceRecord{
		"proj-1": instances("111", "222"),
	}}
	assets := &fakeAssets{byID: map[string][]collect.ResourceRecord{
		"proj-1": {{Name: "bucket-a", Type: "Bucket"}, {Name: "ds-a", Type: "Dataset"}, {Name: "tbl-a", Type: "Table"}},
	}}
	metric := &fakeMetrics{descs: map[string][]collect.MetricDescriptor{
		"proj-1": descriptors(15),
	}}
	s := newService(t, &fakeTenants{ids: []string{"proj-1"}}, inst, assets, metric)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	assert.Equal(t, "proj-1", rep.TenantID)
	assert.Len(t, rep.Instances, 2)
	assert.Len(t, rep.Assets, 3)
	assert.Len(t, rep.Metrics, 10, "descriptor list capped")
	require.Len(t, rep.InstanceMetrics, 1, "series for the sampled instance only")
	assert.Equal(t, "111", rep.InstanceMetrics[0].InstanceID)
	assert.Equal(t, []string{"proj-1/111"}, metric.series)
	assert.False(t, res.Partial())
}

func TestDescriptorTruncationBoundary(t *testing.T) {
	for _, n := range []int{MaxDescriptors - 1, MaxDescriptors, MaxDescriptors + 1} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			metric := &fakeMetrics{descs: map[string][]collect.MetricDescriptor{"proj-1": descriptors(n)}}
			s := newService(t, &fakeTenants{ids: []string{"proj-1"}}, &fakeInstances{}, &fakeAssets{}, metric)

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Reports, 1)
			want := n
			if want > MaxDescriptors {
				want = MaxDescriptors
			}
			assert.Len(t, res.Reports[0].Metrics, want)
			if n > MaxDescriptors {
				// Truncation keeps the head of the list.
				assert.Equal(t, "custom.googleapis.com/m0", res.Reports[0].Metrics[0].Type)
			}
		})
	}
}

func TestCollectorFailuresAreIndependent(t *testing.T) {
	boom := errors.New("backend down")
	cases := []struct {
		name                           string
		instErr, assetErr, descErr     bool
		wantInst, wantAssets, wantDesc int
	}{
		{name: "compute fails", instErr: true, wantAssets: 1, wantDesc: 2},
		{name: "assets fails", assetErr: true, wantInst: 1, wantDesc: 2},
		{name: "metrics fails", descErr: true, wantInst: 1, wantAssets: 1},
		{name: "compute and assets fail", instErr: true, assetErr: true, wantDesc: 2},
		{name: "all fail", instErr: true, assetErr: true, descErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inst := &fakeInstances{byID: map[string][]collect.ResourceRecord{"proj-1": instances("111")}}
			assets := &fakeAssets{byID: map[string][]collect.ResourceRecord{"proj-1": {{Name: "b", Type: "Bucket"}}}}
			metric := &fakeMetrics{descs: map[string][]collect.MetricDescriptor{"proj-1": descriptors(2)}}
			if tc.instErr {
				inst.err = boom
			}
			if tc.assetErr {
				assets.err = boom
			}
			if tc.descErr {
				metric.descErr = boom
			}
			s := newService(t, &fakeTenants{ids: []string{"proj-1"}}, inst, assets, metric)

			res, err := s.Run(context.Background())
			require.NoError(t, err)
			require.Len(t, res.Reports, 1, "tenant report survives any collector failure")
			rep := res.Reports[0]
			assert.Len(t, rep.Instances, tc.wantInst)
			assert.Len(t, rep.Assets, tc.wantAssets)
			assert.Len(t, rep.Metrics, tc.wantDesc)
			assert.NotEmpty(t, rep.Warnings)
			assert.True(t, res.Partial())
			if tc.instErr {
				assert.Empty(t, metric.series, "no sampling without instances")
			}
		})
	}
}

func TestSeriesFailureDegradesOnlySeries(t *testing.T) {
	inst := &fakeInstances{byID: map[string][]collect.ResourceRecord{"proj-1": instances("111")}}
	metric := &fakeMetrics{
		descs:     map[string][]collect.MetricDescriptor{"proj-1": descriptors(3)},
		seriesErr: errors.New("series unavailable"),
	}
	s := newService(t, &fakeTenants{ids: []string{"proj-1"}}, inst, &fakeAssets{}, metric)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	rep := res.Reports[0]
	assert.Len(t, rep.Instances, 1)
	assert.Len(t, rep.Metrics, 3)
	assert.Empty(t, rep.InstanceMetrics)
	require.Len(t, rep.Warnings, 1)
	assert.Contains(t, rep.Warnings[0], "series unavailable")
}

func TestOneTenantFailureDoesNotPoisonOthers(t *testing.T) {
	inst := &fakeInstances{byID: map[string][]collect.ResourceRecord{
		"proj-1": instances("111"),
		// proj-2 deliberately absent: empty slot, no error
	}}
	assets := &fakeAssets{err: errors.New("asset api down")}
	metric := &fakeMetrics{descs: map[string][]collect.MetricDescriptor{
		"proj-1": descriptors(1),
		"proj-2": descriptors(2),
	}}
	s := newService(t, &fakeTenants{ids: []string{"proj-1", "proj-2"}}, inst, assets, metric)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Reports, 2)
	assert.Equal(t, "proj-1", res.Reports[0].TenantID)
	assert.Equal(t, "proj-2", res.Reports[1].TenantID)
	assert.Len(t, res.Reports[0].Instances, 1)
	assert.Len(t, res.Reports[1].Metrics, 2)
}

func TestReportsPreserveDiscoveryOrder(t *testing.T) {
	ids := make([]string, 8)
	byID := map[string][]collect.ResourceRecord{}
	for i := range ids {
		ids[i] = fmt.Sprintf("proj-%d", i)
		byID[ids[i]] = instances(fmt.Sprintf("%d", 100+i))
	}
	// A small delay lets completion order diverge from start order.
	inst := &fakeInstances{byID: byID, delay: 5 * time.Millisecond}
	s := newService(t, &fakeTenants{ids: ids}, inst, &fakeAssets{}, &fakeMetrics{}, WithTenantLimit(4))

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Reports, len(ids))
	for i, rep := range res.Reports {
		assert.Equal(t, ids[i], rep.TenantID)
	}
}

func TestTenantConcurrencyBounded(t *testing.T) {
	var inFlight, peak int64
	blocker := &gatedInstances{
		enter: func() {
			n := atomic.AddInt64(&inFlight, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
		},
		leave: func() { atomic.AddInt64(&inFlight, -1) },
	}
	ids := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	s := newService(t, &fakeTenants{ids: ids}, blocker, &fakeAssets{}, &fakeMetrics{}, WithTenantLimit(2))

	_, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

type gatedInstances struct {
	enter, leave func()
}

func (g *gatedInstances) Collect(ctx context.Context, tenantID string) ([]collect.ResourceRecord, error) {
	g.enter()
	defer g.leave()
	time.Sleep(10 * time.Millisecond)
	return []collect.ResourceRecord{}, nil
}

func TestRunCancellationOmitsUnstartedTenants(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inst := &fakeInstances{
		byID:  map[string][]collect.ResourceRecord{},
		delay: 50 * time.Millisecond,
	}
	ids := make([]string, 16)
	for i := range ids {
		ids[i] = fmt.Sprintf("proj-%d", i)
	}
	s := newService(t, &fakeTenants{ids: ids}, inst, &fakeAssets{}, &fakeMetrics{}, WithTenantLimit(1))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	res, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, len(res.Reports), len(ids), "unstarted tenants omitted after cancellation")
	// Whatever did complete keeps discovery order.
	for i, rep := range res.Reports {
		assert.Equal(t, ids[i], rep.TenantID)
	}
}

func TestWithSampleStrategy(t *testing.T) {
	inst := &fakeInstances{byID: map[string][]collect.ResourceRecord{"proj-1": instances("111", "222", "333")}}
	metric := &fakeMetrics{descs: map[string][]collect.MetricDescriptor{}}
	last := func(recs []collect.ResourceRecord) (collect.ResourceRecord, bool) {
		if len(recs) == 0 {
			return collect.ResourceRecord{}, false
		}
		return recs[len(recs)-1], true
	}
	s := newService(t, &fakeTenants{ids: []string{"proj-1"}}, inst, &fakeAssets{}, metric, WithSampleStrategy(last))

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Reports, 1)
	require.Len(t, res.Reports[0].InstanceMetrics, 1)
	assert.Equal(t, "333", res.Reports[0].InstanceMetrics[0].InstanceID)
}

func TestFirstInstance(t *testing.T) {
	_, ok := FirstInstance(nil)
	assert.False(t, ok)

	rec, ok := FirstInstance(instances("111", "222"))
	require.True(t, ok)
	assert.Equal(t, "111", rec.ID)
}
