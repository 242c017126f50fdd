package checkin_test

import (
	"context"
	"sync"

	checkin "github.com/classtrack/go-checkin"
	"github.com/stretchr/testify/mock"
)

// TestIdentity is a simple implementation of the Identity interface for testing
type TestIdentity struct {
	id          string
	email       string
	displayName string
}

func (t TestIdentity) ID() string          { return t.id }
func (t TestIdentity) Email() string       { return t.email }
func (t TestIdentity) DisplayName() string { return t.displayName }

// FakeIdentityProvider drives auth-state events by hand and counts token
// calls; a testify mock is too rigid for the subscription fan-out.
type FakeIdentityProvider struct {
	mu        sync.Mutex
	listeners map[int]checkin.AuthStateListener
	nextID    int
	current   checkin.Identity

	TokenValue  string
	TokenErr    error
	TokenCalls  int
	ForcedCalls int

	SignInIdentity checkin.Identity
	SignInErr      error
	SignInCalls    int
	SignUpIdentity checkin.Identity
	SignUpErr      error
	SignUpCalls    int
	UpdateNameErr  error
	SignOutErr     error
	ResetErr       error
	SignOutCalls   int
	ResetCalls     int
	UpdateCalls    []string
}

func NewFakeIdentityProvider() *FakeIdentityProvider {
	return &FakeIdentityProvider{listeners: map[int]checkin.AuthStateListener{}}
}

func (f *FakeIdentityProvider) SignIn(ctx context.Context, email, password string) (checkin.Identity, error) {
	f.mu.Lock()
	f.SignInCalls++
	f.mu.Unlock()
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	return f.SignInIdentity, nil
}

func (f *FakeIdentityProvider) SignUp(ctx context.Context, email, password string) (checkin.Identity, error) {
	f.mu.Lock()
	f.SignUpCalls++
	f.mu.Unlock()
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	return f.SignUpIdentity, nil
}

func (f *FakeIdentityProvider) UpdateDisplayName(ctx context.Context, identity checkin.Identity, name string) error {
	f.mu.Lock()
	f.UpdateCalls = append(f.UpdateCalls, name)
	f.mu.Unlock()
	return f.UpdateNameErr
}

func (f *FakeIdentityProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.SignOutCalls++
	f.mu.Unlock()
	return f.SignOutErr
}

func (f *FakeIdentityProvider) SendPasswordReset(ctx context.Context, email string) error {
	f.mu.Lock()
	f.ResetCalls++
	f.mu.Unlock()
	return f.ResetErr
}

func (f *FakeIdentityProvider) Subscribe(listener checkin.AuthStateListener) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	current := f.current
	f.mu.Unlock()

	listener(current)
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *FakeIdentityProvider) Token(ctx context.Context, forceRefresh bool) (string, error) {
	f.mu.Lock()
	f.TokenCalls++
	if forceRefresh {
		f.ForcedCalls++
	}
	value, err := f.TokenValue, f.TokenErr
	f.mu.Unlock()
	return value, err
}

// ListenerCount reports the number of live subscriptions.
func (f *FakeIdentityProvider) ListenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// Emit pushes an auth-state change to every subscriber.
func (f *FakeIdentityProvider) Emit(identity checkin.Identity) {
	f.mu.Lock()
	f.current = identity
	listeners := make([]checkin.AuthStateListener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

// MockProfileService implements checkin.ProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) ProfileByIdentity(ctx context.Context, identityID string) (*checkin.UserProfile, error) {
	args := m.Called(ctx, identityID)
	if profile, ok := args.Get(0).(*checkin.UserProfile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileService) CreateProfile(ctx context.Context, in checkin.CreateProfileInput) (*checkin.UserProfile, error) {
	args := m.Called(ctx, in)
	if profile, ok := args.Get(0).(*checkin.UserProfile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAttendanceAPI implements checkin.AttendanceAPI
type MockAttendanceAPI struct {
	mock.Mock
}

func (m *MockAttendanceAPI) MyClasses(ctx context.Context) ([]checkin.Class, error) {
	args := m.Called(ctx)
	if classes, ok := args.Get(0).([]checkin.Class); ok {
		return classes, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttendanceAPI) SubmitScan(ctx context.Context, sub checkin.ScanSubmission) (*checkin.ScanResult, error) {
	args := m.Called(ctx, sub)
	if result, ok := args.Get(0).(*checkin.ScanResult); ok {
		return result, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAttendanceAPI) ClassQRCode(ctx context.Context, classID string) (*checkin.ClassQR, error) {
	args := m.Called(ctx, classID)
	if qr, ok := args.Get(0).(*checkin.ClassQR); ok {
		return qr, args.Error(1)
	}
	return nil, args.Error(1)
}

// FakeDecoder hands the registered callback to the test so it can simulate
// camera results.
type FakeDecoder struct {
	mu       sync.Mutex
	OnDecode func(string)
	OpenErr  error
	Sessions []*FakeDecoderSession

	// DecodeOnOpen delivers a payload synchronously during Open, before the
	// session is handed back.
	DecodeOnOpen string
}

func (f *FakeDecoder) Open(ctx context.Context, onDecode func(string)) (checkin.DecoderSession, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	session := &FakeDecoderSession{}
	f.mu.Lock()
	f.OnDecode = onDecode
	f.Sessions = append(f.Sessions, session)
	immediate := f.DecodeOnOpen
	f.mu.Unlock()

	if immediate != "" {
		onDecode(immediate)
	}
	return session, nil
}

func (f *FakeDecoder) Decode(payload string) {
	f.mu.Lock()
	fn := f.OnDecode
	f.mu.Unlock()
	if fn != nil {
		fn(payload)
	}
}

type FakeDecoderSession struct {
	mu     sync.Mutex
	closed int
}

func (s *FakeDecoderSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	return nil
}

func (s *FakeDecoderSession) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RecordingSink captures activity events for assertions.
type RecordingSink struct {
	mu     sync.Mutex
	Events []checkin.ActivityEvent
}

func (r *RecordingSink) Record(_ context.Context, event checkin.ActivityEvent) error {
	r.mu.Lock()
	r.Events = append(r.Events, event)
	r.mu.Unlock()
	return nil
}

func (r *RecordingSink) ByType(t checkin.ActivityEventType) []checkin.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []checkin.ActivityEvent{}
	for _, event := range r.Events {
		if event.EventType == t {
			out = append(out, event)
		}
	}
	return out
}
