package checkin

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenPolicy controls how the transport obtains a token for each request.
type TokenPolicy int

const (
	// TokenPolicyAlwaysFresh forces a refresh on every outgoing request,
	// trading latency for always-fresh tokens.
	TokenPolicyAlwaysFresh TokenPolicy = iota
	// TokenPolicyReuseFresh reuses the cached token while it still has at
	// least the configured leeway of validity left.
	TokenPolicyReuseFresh
)

// DefaultTokenLeeway is the remaining validity below which a cached token is
// considered stale under TokenPolicyReuseFresh.
const DefaultTokenLeeway = 30 * time.Second

// Transport is an http.RoundTripper that attaches a bearer token to outgoing
// requests and funnels 401 responses through the single-flight refresh
// protocol. A request is replayed at most once; a second 401 passes through
// unchanged.
type Transport struct {
	base    http.RoundTripper
	tokens  TokenSource
	refresh *RefreshCoordinator
	policy  TokenPolicy
	leeway  time.Duration
	logger  Logger
}

// NewTransport wires a token source and a refresh coordinator into a
// round tripper. The zero base falls back to http.DefaultTransport.
func NewTransport(tokens TokenSource, refresh *RefreshCoordinator) *Transport {
	return &Transport{
		tokens:  tokens,
		refresh: refresh,
		policy:  TokenPolicyAlwaysFresh,
		leeway:  DefaultTokenLeeway,
		logger:  defLogger{},
	}
}

func (t *Transport) WithLogger(logger Logger) *Transport {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// WithBase sets the underlying round tripper.
func (t *Transport) WithBase(base http.RoundTripper) *Transport {
	t.base = base
	return t
}

// WithPolicy selects the request-phase token policy.
func (t *Transport) WithPolicy(policy TokenPolicy) *Transport {
	t.policy = policy
	return t
}

// WithTokenLeeway sets the staleness window used by TokenPolicyReuseFresh.
func (t *Transport) WithTokenLeeway(leeway time.Duration) *Transport {
	if leeway > 0 {
		t.leeway = leeway
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	out := req.Clone(ctx)
	token, err := t.acquireToken(ctx)
	switch {
	case err == nil && token != "":
		out.Header.Set("Authorization", "Bearer "+token)
	case err != nil && !errors.Is(err, ErrNoIdentity):
		// Send without an authorization header rather than failing the
		// request; public-capable endpoints still work.
		t.logger.Debug("token acquisition failed, sending unauthenticated: %v", err)
	}

	resp, err := t.transport().RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// Cannot replay the body; pass the 401 through.
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	fresh, err := t.refresh.Refresh(ctx)
	if err != nil {
		return nil, err
	}

	retry := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to rewind request body for replay")
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+fresh)

	// Already marked retried: whatever comes back passes through.
	return t.transport().RoundTrip(retry)
}

func (t *Transport) acquireToken(ctx context.Context) (string, error) {
	if t.policy == TokenPolicyAlwaysFresh {
		return t.tokens.Token(ctx, true)
	}

	token, err := t.tokens.Token(ctx, false)
	if err != nil {
		return "", err
	}
	if TokenFresh(token, t.leeway) {
		return token, nil
	}
	return t.tokens.Token(ctx, true)
}

func (t *Transport) transport() http.RoundTripper {
	if t.base != nil {
		return t.base
	}
	return http.DefaultTransport
}

// TokenFresh reports whether raw still has at least leeway of validity left.
// Claims are inspected without signature verification; the backend remains
// the authority on token validity.
func TokenFresh(raw string, leeway time.Duration) bool {
	if raw == "" {
		return false
	}

	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return timeNow().Add(leeway).Before(claims.ExpiresAt.Time)
}
