package broker

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// Kind classifies an authentication failure. Every Kind is fatal to a run:
// without a delegated caller no collector can proceed.
type Kind string

const (
	// KindInvalidLifetime means the requested delegation lifetime is outside
	// the allowed range. Raised before any network activity.
	KindInvalidLifetime Kind = "invalid_lifetime"
	// KindCredentialsUnavailable means the principal's key material could not
	// be loaded or parsed.
	KindCredentialsUnavailable Kind = "credentials_unavailable"
	// KindDelegationDenied means the identity provider rejected the
	// impersonation request.
	KindDelegationDenied Kind = "delegation_denied"
	// KindNetworkFailure covers transport-level failures reaching the
	// identity provider.
	KindNetworkFailure Kind = "network_failure"
)

// AuthError is a structured authentication failure.
type AuthError struct {
	Kind  Kind
	Op    string
	Cause error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("[auth:%s] %s", e.Kind, e.Op)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Cause }

// Is matches on Kind so callers can compare against a bare &AuthError{Kind: ...}.
func (e *AuthError) Is(target error) bool {
	var ae *AuthError
	if errors.As(target, &ae) {
		return e.Kind == ae.Kind
	}
	return false
}

func authErr(kind Kind, op string, cause error) *AuthError {
	return &AuthError{Kind: kind, Op: op, Cause: cause}
}

// IsKind reports whether err is an AuthError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Kind == kind
}

// classifyTokenErr maps a token-fetch failure onto the error taxonomy.
// 401/403 from the provider means the delegation itself was refused;
// anything else is treated as transport failure.
func classifyTokenErr(op string, err error) *AuthError {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 401, 403:
			return authErr(KindDelegationDenied, op, err)
		}
	}
	return authErr(KindNetworkFailure, op, err)
}
