package checkin

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess       ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure       ActivityEventType = "auth.login.failure"
	ActivityEventRegisterSuccess    ActivityEventType = "auth.register.success"
	ActivityEventRegisterFailure    ActivityEventType = "auth.register.failure"
	ActivityEventSignOut            ActivityEventType = "auth.signout"
	ActivityEventPasswordReset      ActivityEventType = "auth.password.reset"
	ActivityEventProfileFetchFailed ActivityEventType = "session.profile.fetch_failed"
	ActivityEventReadinessChanged   ActivityEventType = "session.readiness.changed"
	ActivityEventRefreshFailed      ActivityEventType = "token.refresh.failed"
	ActivityEventScanRecorded       ActivityEventType = "attendance.scan.recorded"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	IdentityID string
	FromState  ReadinessState
	ToState    ReadinessState
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
