// Package collect holds the three independent resource collectors. Each one
// talks to a single API surface, normalizes its output, and reports failures
// as a CollectorError; the degrade-to-empty policy lives one layer up, in
// the aggregator.
package collect

import (
	"encoding/json"
	"strings"
	"time"
)

// ResourceRecord is the normalized shape for any inventoried entity.
// Immutable once produced.
type ResourceRecord struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Zone    string          `json:"zone,omitempty"`
	Status  string          `json:"status,omitempty"`
	Payload json.RawMessage `json:"resource,omitempty"`
}

// MetricDescriptor is a read-only metric definition discovered per tenant.
type MetricDescriptor struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// SeriesPoint is one (timestamp, value) observation.
type SeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeriesSample holds one metric's points over a half-open window
// [Start, End). Immutable once fetched; Points may be empty.
type TimeSeriesSample struct {
	Metric string        `json:"metric"`
	Start  time.Time     `json:"start"`
	End    time.Time     `json:"end"`
	Points []SeriesPoint `json:"points"`
}

// InstanceMetrics carries the sampled time series for one representative
// instance.
type InstanceMetrics struct {
	InstanceID   string             `json:"instanceId"`
	InstanceName string             `json:"instanceName"`
	CPU          []TimeSeriesSample `json:"cpu"`
	Memory       []TimeSeriesSample `json:"memory"`
}

// lastSegment derives a short name from a full resource path by taking the
// final path segment, e.g. ".../zones/us-central1-a" -> "us-central1-a".
// Holds for arbitrary path depths; a path with no separator is returned
// unchanged.
func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
