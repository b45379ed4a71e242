// Package broker exchanges a long-lived principal's key material for
// short-lived delegated credentials scoped to a target service account.
//
// The delegated token never leaves this package: downstream components
// receive a *Caller, an opaque capability implementing oauth2.TokenSource.
package broker

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
)

// Principal is the long-lived identity used to bootstrap authentication.
// Immutable for process lifetime.
type Principal struct {
	KeyFile string
}

// DelegatedIdentity describes the impersonation target.
type DelegatedIdentity struct {
	TargetPrincipal string
	Scopes          []string
	Lifetime        time.Duration
	Delegates       []string // ordered chain of intermediate identities, may be empty
}

// Broker builds delegated callers. maxLifetime bounds the requested token
// TTL; requests outside (0, maxLifetime] are rejected outright rather than
// clamped (see config.Config.MaxLifetime).
type Broker struct {
	log         *zap.SugaredLogger
	principal   Principal
	maxLifetime time.Duration
}

func New(log *zap.SugaredLogger, principal Principal, maxLifetime time.Duration) *Broker {
	if maxLifetime <= 0 {
		maxLifetime = time.Hour
	}
	return &Broker{log: log, principal: principal, maxLifetime: maxLifetime}
}

// Authenticate validates the delegation request and returns a Caller for the
// target identity. Lifetime validation happens before any credential or
// network access. The returned Caller caches the delegated token and
// refreshes it on demand; callers must not layer their own caching on top.
func (b *Broker) Authenticate(ctx context.Context, id DelegatedIdentity) (*Caller, error) {
	if id.Lifetime <= 0 || id.Lifetime > b.maxLifetime {
		return nil, authErr(KindInvalidLifetime,
			fmt.Sprintf("lifetime %s outside (0s, %s]", id.Lifetime, b.maxLifetime), nil)
	}
	if id.TargetPrincipal == "" {
		return nil, authErr(KindDelegationDenied, "target principal is required", nil)
	}
	scopes := id.Scopes
	if len(scopes) == 0 {
		scopes = []string{"https://www.googleapis.com/auth/cloud-platform"}
	}

	if _, err := os.Stat(b.principal.KeyFile); err != nil {
		return nil, authErr(KindCredentialsUnavailable, "read key file", err)
	}

	ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
		TargetPrincipal: id.TargetPrincipal,
		Scopes:          scopes,
		Lifetime:        id.Lifetime,
		Delegates:       id.Delegates,
	}, option.WithCredentialsFile(b.principal.KeyFile))
	if err != nil {
		return nil, authErr(KindCredentialsUnavailable, "build impersonated token source", err)
	}

	b.log.Infow("delegated caller ready", "target", id.TargetPrincipal, "lifetime", id.Lifetime)
	return CallerFromTokenSource(ts), nil
}

// Caller is the authenticated-caller capability handed to collectors. It
// implements oauth2.TokenSource; the wrapped source serializes refresh so
// concurrent collectors never trigger redundant token exchanges.
type Caller struct {
	ts oauth2.TokenSource
}

// CallerFromTokenSource wraps an arbitrary token source in the same
// single-flight reuse guard the broker applies. Used by tests and by
// alternative bootstrap paths.
func CallerFromTokenSource(ts oauth2.TokenSource) *Caller {
	return &Caller{ts: oauth2.ReuseTokenSource(nil, ts)}
}

// Token returns a valid bearer token, refreshing through the underlying
// source only when the cached token has expired.
func (c *Caller) Token() (*oauth2.Token, error) {
	tok, err := c.ts.Token()
	if err != nil {
		return nil, classifyTokenErr("fetch delegated token", err)
	}
	return tok, nil
}
