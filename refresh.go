package checkin

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

type refreshResult struct {
	token string
	err   error
}

// RefreshCoordinator serializes credential refreshes: at most one forced
// refresh is in flight process-wide, and every caller that arrives while it
// runs waits for, and observes, that refresh's outcome. On failure the
// configured auth-expired handler fires exactly once for the whole batch.
type RefreshCoordinator struct {
	tokens        TokenSource
	logger        Logger
	sink          ActivitySink
	onAuthExpired func()

	mu       sync.Mutex
	inflight bool
	waiters  []chan refreshResult
}

// NewRefreshCoordinator returns a coordinator backed by the given source.
func NewRefreshCoordinator(tokens TokenSource) *RefreshCoordinator {
	return &RefreshCoordinator{
		tokens: tokens,
		logger: defLogger{},
		sink:   noopActivitySink{},
	}
}

func (c *RefreshCoordinator) WithLogger(logger Logger) *RefreshCoordinator {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithActivitySink configures an ActivitySink for refresh failures.
func (c *RefreshCoordinator) WithActivitySink(sink ActivitySink) *RefreshCoordinator {
	c.sink = normalizeActivitySink(sink)
	return c
}

// WithAuthExpiredHandler sets the terminal action taken when a refresh fails,
// typically a redirect to the login boundary.
func (c *RefreshCoordinator) WithAuthExpiredHandler(fn func()) *RefreshCoordinator {
	c.onAuthExpired = fn
	return c
}

// Refreshing reports whether a refresh is currently in flight.
func (c *RefreshCoordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Refresh returns a forced-fresh token. If a refresh is already in flight the
// call suspends until it settles and shares its result. A caller whose
// context expires abandons the shared result without affecting other waiters.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.inflight {
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), errors.CategoryOperation, "cancelled while waiting for token refresh")
		}
	}
	c.inflight = true
	c.mu.Unlock()

	token, err := c.tokens.Token(ctx, true)
	if err != nil {
		err = c.refreshError(err)
	}

	// Waiter channels are buffered, so settling under the lock cannot block.
	// Every waiter created during this window is settled before the in-flight
	// flag clears.
	c.mu.Lock()
	for _, w := range c.waiters {
		w <- refreshResult{token: token, err: err}
	}
	c.waiters = nil
	c.inflight = false
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("token refresh failed: %v", err)
		c.recordFailure(ctx, err)
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return "", err
	}

	return token, nil
}

func (c *RefreshCoordinator) refreshError(cause error) error {
	clone := ErrTokenRefreshFailed.Clone()
	if clone == nil {
		return ErrTokenRefreshFailed
	}
	// The sentinel goes in Source so errors.Is reaches it through Unwrap.
	clone.Source = ErrTokenRefreshFailed
	return clone.WithMetadata(map[string]any{"cause": cause.Error()})
}

func (c *RefreshCoordinator) recordFailure(ctx context.Context, cause error) {
	sink := normalizeActivitySink(c.sink)
	err := sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventRefreshFailed,
		Metadata:   map[string]any{"error": cause.Error()},
		OccurredAt: timeNow(),
	})
	if err != nil {
		c.logger.Warn("refresh activity sink error: %v", err)
	}
}
