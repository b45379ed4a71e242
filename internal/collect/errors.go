package collect

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Kind classifies a collector failure.
type Kind string

const (
	KindAuthRejected      Kind = "auth_rejected"
	KindNetworkFailure    Kind = "network_failure"
	KindMalformedResponse Kind = "malformed_response"
)

// CollectorError is returned by a collector instead of panicking or silently
// swallowing. The conversion to an empty result happens exactly once, at the
// aggregator boundary, so one failing signal source never blanks out the
// other two.
type CollectorError struct {
	Collector string // "compute" | "asset" | "metric"
	Kind      Kind
	Cause     error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("[%s:%s] %v", e.Collector, e.Kind, e.Cause)
}

func (e *CollectorError) Unwrap() error { return e.Cause }

func collectorErr(collector string, err error) *CollectorError {
	kind := KindNetworkFailure
	var gerr *googleapi.Error
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &gerr) && (gerr.Code == 401 || gerr.Code == 403):
		kind = KindAuthRejected
	case errors.As(err, &syn) || errors.As(err, &typ):
		kind = KindMalformedResponse
	}
	return &CollectorError{Collector: collector, Kind: kind, Cause: err}
}
