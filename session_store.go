package checkin

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

// ReadinessState is the authentication/profile lifecycle stage gating
// protected views.
type ReadinessState string

const (
	// StateAnonymous means the provider reports no signed-in user.
	StateAnonymous ReadinessState = "anonymous"
	// StateAuthenticating is the initial state while the provider restores
	// any persisted session.
	StateAuthenticating ReadinessState = "authenticating"
	// StateProfileLoading means an identity is active and the backend
	// profile fetch is in progress.
	StateProfileLoading ReadinessState = "profile_loading"
	// StateReady means identity present, token verified fresh, and profile
	// loaded.
	StateReady ReadinessState = "ready"
	// StateDegraded means an identity is active but token verification or
	// the profile fetch failed. Distinct from Anonymous: a recoverable
	// failure must not bounce an authenticated user to login.
	StateDegraded ReadinessState = "degraded"
)

// readinessTransitions is the legal transition table. Same-state moves are
// no-ops and never consulted here.
var readinessTransitions = map[ReadinessState]map[ReadinessState]struct{}{
	StateAuthenticating: {
		StateAnonymous:      {},
		StateProfileLoading: {},
		StateDegraded:       {},
	},
	StateAnonymous: {
		StateProfileLoading: {},
		StateDegraded:       {},
	},
	StateProfileLoading: {
		StateReady:     {},
		StateDegraded:  {},
		StateAnonymous: {},
	},
	StateReady: {
		StateProfileLoading: {},
		StateAnonymous:      {},
	},
	StateDegraded: {
		StateProfileLoading: {},
		StateReady:          {},
		StateAnonymous:      {},
	},
}

// Snapshot is an immutable view of the session state.
type Snapshot struct {
	State   ReadinessState
	Session *Session
	Profile *UserProfile
}

type profileFetch struct {
	done    chan struct{}
	profile *UserProfile
	err     error
}

// SessionStore owns the current identity, profile, and readiness state. It is
// driven by identity-provider auth-state events and consulted by Evaluate.
// Consumers hold a reference and subscribe; there is no ambient global state.
type SessionStore struct {
	provider IdentityProvider
	profiles ProfileService
	logger   Logger
	sink     ActivitySink

	mu           sync.Mutex
	state        ReadinessState
	session      *Session
	profile      *UserProfile
	listeners    map[int]func(Snapshot)
	nextListener int
	fetches      map[string]*profileFetch
	started      bool
	unsubscribe  func()
}

// NewSessionStore returns a store in the Authenticating state: a session
// restore attempt is assumed at startup.
func NewSessionStore(provider IdentityProvider, profiles ProfileService) *SessionStore {
	return &SessionStore{
		provider:  provider,
		profiles:  profiles,
		logger:    defLogger{},
		sink:      noopActivitySink{},
		state:     StateAuthenticating,
		listeners: map[int]func(Snapshot){},
		fetches:   map[string]*profileFetch{},
	}
}

func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for session lifecycle events.
func (s *SessionStore) WithActivitySink(sink ActivitySink) *SessionStore {
	s.sink = normalizeActivitySink(sink)
	return s
}

// Start subscribes the store to identity-provider auth-state events. Events
// are processed until Stop or ctx cancellation. Subscribe is called outside
// the store lock: providers invoke the listener synchronously during
// registration, and that listener needs the lock.
func (s *SessionStore) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	unsubscribe := s.provider.Subscribe(func(identity Identity) {
		s.handleAuthChange(ctx, identity)
	})

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Stop detaches the store from the identity provider. State is left as-is;
// it is re-derived on the next Start.
func (s *SessionStore) Stop() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.started = false
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Snapshot returns a copy of the current state.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// State returns the current readiness state.
func (s *SessionStore) State() ReadinessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers a listener invoked with a snapshot after every state
// change. It returns an unsubscribe function.
func (s *SessionStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Login delegates to the identity provider. State transitions are driven by
// the provider's auth-state event, not by the call itself. Credential errors
// surface verbatim and are never retried automatically.
func (s *SessionStore) Login(ctx context.Context, email, password string) error {
	payload := LoginPayload{Email: email, Password: password}
	if err := payload.Validate(); err != nil {
		return err
	}

	identity, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Metadata:  map[string]any{"email": email, "error": err.Error()},
		})
		return err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		IdentityID: identity.ID(),
	})
	return nil
}

// Register creates the identity-provider account, sets its display name, and
// then creates the backend profile record. Profile creation never runs before
// the account exists. If profile creation fails the identity account is left
// standing; the error surfaces to the caller without an automatic rollback.
func (s *SessionStore) Register(ctx context.Context, payload RegisterPayload) error {
	if err := payload.Validate(); err != nil {
		return err
	}

	identity, err := s.provider.SignUp(ctx, payload.Email, payload.Password)
	if err != nil {
		s.record(ctx, ActivityEvent{
			EventType: ActivityEventRegisterFailure,
			Metadata:  map[string]any{"email": payload.Email, "error": err.Error()},
		})
		return err
	}

	if err := s.provider.UpdateDisplayName(ctx, identity, payload.Name); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "account created but display name update failed")
	}

	if _, err := s.profiles.CreateProfile(ctx, CreateProfileInput{
		IdentityID: identity.ID(),
		Name:       payload.Name,
		Email:      payload.Email,
		Role:       payload.Role,
	}); err != nil {
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventRegisterFailure,
			IdentityID: identity.ID(),
			Metadata:   map[string]any{"error": err.Error(), "stage": "profile"},
		})
		return errors.Wrap(err, errors.CategoryOperation, "identity account created but profile creation failed")
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventRegisterSuccess,
		IdentityID: identity.ID(),
	})
	return nil
}

// Logout clears state only after the identity provider confirms sign-out.
func (s *SessionStore) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	identityID := ""
	if s.session != nil {
		identityID = s.session.IdentityID
	}
	s.clearLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.record(ctx, ActivityEvent{EventType: ActivityEventSignOut, IdentityID: identityID})
	return nil
}

// ResetPassword is fire-and-forget relative to session state: it never
// transitions readiness.
func (s *SessionStore) ResetPassword(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		return err
	}
	s.record(ctx, ActivityEvent{
		EventType: ActivityEventPasswordReset,
		Metadata:  map[string]any{"email": email},
	})
	return nil
}

// FetchProfile loads the backend profile for identityID and stores the
// result. Calls for the same identity are coalesced: overlapping callers
// share the in-flight fetch, so partial results from two fetches never mix.
// Repeated calls overwrite the profile with the latest successful result.
func (s *SessionStore) FetchProfile(ctx context.Context, identityID string) (*UserProfile, error) {
	s.mu.Lock()
	if inflight, ok := s.fetches[identityID]; ok {
		s.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.profile, inflight.err
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), errors.CategoryOperation, "cancelled while waiting for profile fetch")
		}
	}
	fetch := &profileFetch{done: make(chan struct{})}
	s.fetches[identityID] = fetch
	degraded := s.state == StateDegraded
	s.mu.Unlock()

	var profile *UserProfile
	var err error
	if degraded {
		// A degraded session only returns to ready once the token verifies
		// again, not on a profile fetch alone.
		_, err = s.provider.Token(ctx, true)
		if err != nil {
			err = errors.Wrap(err, errors.CategoryAuth, "token verification failed during recovery")
		}
	}
	if err == nil {
		profile, err = s.profiles.ProfileByIdentity(ctx, identityID)
		if err != nil {
			clone := ErrProfileUnavailable.Clone()
			if clone != nil {
				clone.Source = ErrProfileUnavailable
				err = clone.WithMetadata(map[string]any{
					"identity_id": identityID,
					"cause":       err.Error(),
				})
			}
		}
	}
	fetch.profile, fetch.err = profile, err
	close(fetch.done)

	s.applyFetchResult(ctx, identityID, profile, err)
	return profile, err
}

func (s *SessionStore) applyFetchResult(ctx context.Context, identityID string, profile *UserProfile, err error) {
	s.mu.Lock()
	delete(s.fetches, identityID)

	// Late results for an identity that is no longer active are dropped;
	// state is re-derived on the next auth event.
	if s.session == nil || s.session.IdentityID != identityID {
		s.mu.Unlock()
		return
	}

	var target ReadinessState
	if err != nil {
		target = StateDegraded
	} else {
		copied := *profile
		s.profile = &copied
		target = StateReady
	}
	if terr := s.transitionLocked(target); terr != nil {
		s.logger.Warn("profile fetch result dropped: %v", terr)
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("profile fetch failed for %s: %v", identityID, err)
		s.record(ctx, ActivityEvent{
			EventType:  ActivityEventProfileFetchFailed,
			IdentityID: identityID,
			Metadata:   map[string]any{"error": err.Error()},
		})
	}
	s.notify(snap)
}

// handleAuthChange applies one identity-provider event to the state machine.
func (s *SessionStore) handleAuthChange(ctx context.Context, identity Identity) {
	if identity == nil {
		s.mu.Lock()
		if s.state == StateAnonymous {
			s.mu.Unlock()
			return
		}
		s.clearLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	s.mu.Lock()
	s.session = &Session{
		IdentityID:  identity.ID(),
		Email:       identity.Email(),
		DisplayName: identity.DisplayName(),
	}
	s.profile = nil
	from := s.state
	if err := s.transitionLocked(StateProfileLoading); err != nil {
		s.logger.Warn("auth event ignored: %v", err)
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	s.recordReadiness(ctx, identity.ID(), from, StateProfileLoading)

	// Readiness requires a verified-fresh token, not a fixed settle delay.
	if _, err := s.provider.Token(ctx, true); err != nil {
		s.logger.Error("token verification failed for %s: %v", identity.ID(), err)
		s.degrade(ctx, identity.ID())
		return
	}

	if _, err := s.FetchProfile(ctx, identity.ID()); err != nil {
		// FetchProfile already degraded the state and logged.
		return
	}
}

func (s *SessionStore) degrade(ctx context.Context, identityID string) {
	s.mu.Lock()
	if s.session == nil || s.session.IdentityID != identityID {
		s.mu.Unlock()
		return
	}
	from := s.state
	if err := s.transitionLocked(StateDegraded); err != nil {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	s.recordReadiness(ctx, identityID, from, StateDegraded)
}

// transitionLocked validates the move against the table. Same-state moves
// are no-ops. Callers hold s.mu.
func (s *SessionStore) transitionLocked(to ReadinessState) error {
	if s.state == to {
		return nil
	}
	if _, ok := readinessTransitions[s.state][to]; !ok {
		return ErrInvalidTransition.WithMetadata(map[string]any{
			"from": string(s.state),
			"to":   string(to),
		})
	}
	s.state = to
	return nil
}

func (s *SessionStore) clearLocked() {
	s.session = nil
	s.profile = nil
	s.state = StateAnonymous
}

func (s *SessionStore) snapshotLocked() Snapshot {
	snap := Snapshot{State: s.state}
	if s.session != nil {
		copied := *s.session
		snap.Session = &copied
	}
	if s.profile != nil {
		copied := *s.profile
		snap.Profile = &copied
	}
	return snap
}

func (s *SessionStore) notify(snap Snapshot) {
	s.mu.Lock()
	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *SessionStore) record(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = timeNow()
	}
	sink := normalizeActivitySink(s.sink)
	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("session activity sink error: %v", err)
	}
}

func (s *SessionStore) recordReadiness(ctx context.Context, identityID string, from, to ReadinessState) {
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventReadinessChanged,
		IdentityID: identityID,
		FromState:  from,
		ToState:    to,
	})
}
