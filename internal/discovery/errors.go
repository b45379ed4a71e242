package discovery

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Kind classifies a tenant-discovery failure. Discovery failures are
// non-fatal: the orchestrator degrades them to an empty tenant set.
type Kind string

const (
	KindAuthRejected      Kind = "auth_rejected"
	KindNetworkFailure    Kind = "network_failure"
	KindMalformedResponse Kind = "malformed_response"
)

type DiscoveryError struct {
	Kind  Kind
	Cause error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("[discovery:%s] list tenants: %v", e.Kind, e.Cause)
}

func (e *DiscoveryError) Unwrap() error { return e.Cause }

// IsKind reports whether err is a DiscoveryError of the given kind.
func IsKind(err error, kind Kind) bool {
	var de *DiscoveryError
	return errors.As(err, &de) && de.Kind == kind
}

func classify(err error) *DiscoveryError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401, 403:
			return &DiscoveryError{Kind: KindAuthRejected, Cause: err}
		}
		return &DiscoveryError{Kind: KindNetworkFailure, Cause: err}
	}
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	if errors.As(err, &syn) || errors.As(err, &typ) {
		return &DiscoveryError{Kind: KindMalformedResponse, Cause: err}
	}
	return &DiscoveryError{Kind: KindNetworkFailure, Cause: err}
}
