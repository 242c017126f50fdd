package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/classtrack/go-checkin"
	"github.com/goliatone/go-errors"
)

type identity struct {
	id          string
	email       string
	displayName string
}

func (i identity) ID() string          { return i.id }
func (i identity) Email() string       { return i.email }
func (i identity) DisplayName() string { return i.displayName }

// Provider implements checkin.IdentityProvider over the Firebase Auth REST
// surface: identitytoolkit for account operations and securetoken for forced
// token refreshes.
type Provider struct {
	config Config
	http   *http.Client
	now    func() time.Time

	mu           sync.Mutex
	current      *identity
	idToken      string
	refreshToken string
	expiry       time.Time
	listeners    map[int]checkin.AuthStateListener
	nextListener int
}

var _ checkin.IdentityProvider = (*Provider)(nil)

// New returns a provider for the given Firebase project.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("firebase: API key is required", errors.CategoryBadInput)
	}
	return &Provider{
		config:    cfg,
		http:      cfg.httpClient(),
		now:       time.Now,
		listeners: map[int]checkin.AuthStateListener{},
	}, nil
}

type sessionResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

// SignIn implements checkin.IdentityProvider.
func (p *Provider) SignIn(ctx context.Context, email, password string) (checkin.Identity, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	resp := sessionResponse{}
	if err := p.post(ctx, "accounts:signInWithPassword", payload, &resp); err != nil {
		return nil, err
	}
	return p.adopt(resp), nil
}

// SignUp implements checkin.IdentityProvider.
func (p *Provider) SignUp(ctx context.Context, email, password string) (checkin.Identity, error) {
	payload := map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}
	resp := sessionResponse{}
	if err := p.post(ctx, "accounts:signUp", payload, &resp); err != nil {
		return nil, err
	}
	return p.adopt(resp), nil
}

// UpdateDisplayName implements checkin.IdentityProvider.
func (p *Provider) UpdateDisplayName(ctx context.Context, ident checkin.Identity, name string) error {
	p.mu.Lock()
	token := p.idToken
	current := p.current
	p.mu.Unlock()

	if current == nil || ident == nil || current.id != ident.ID() {
		return checkin.ErrNoIdentity
	}

	payload := map[string]any{
		"idToken":           token,
		"displayName":       name,
		"returnSecureToken": false,
	}
	if err := p.post(ctx, "accounts:update", payload, nil); err != nil {
		return err
	}

	p.mu.Lock()
	if p.current != nil && p.current.id == ident.ID() {
		updated := *p.current
		updated.displayName = name
		p.current = &updated
	}
	p.mu.Unlock()
	return nil
}

// SendPasswordReset implements checkin.IdentityProvider.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	payload := map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}
	return p.post(ctx, "accounts:sendOobCode", payload, nil)
}

// SignOut implements checkin.IdentityProvider. The REST surface holds no
// server-side session; sign-out clears local state and notifies subscribers.
func (p *Provider) SignOut(_ context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.idToken = ""
	p.refreshToken = ""
	p.expiry = time.Time{}
	p.mu.Unlock()

	p.notify(nil)
	return nil
}

// Subscribe implements checkin.IdentityProvider. The listener fires
// immediately with the current identity, mirroring onAuthStateChanged.
func (p *Provider) Subscribe(listener checkin.AuthStateListener) func() {
	p.mu.Lock()
	id := p.nextListener
	p.nextListener++
	p.listeners[id] = listener
	var current checkin.Identity
	if p.current != nil {
		ident := *p.current
		current = ident
	}
	p.mu.Unlock()

	listener(current)

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Token implements checkin.TokenSource. A forced refresh always exchanges the
// refresh token; otherwise the cached token is reused while it keeps the
// configured leeway of validity.
func (p *Provider) Token(ctx context.Context, forceRefresh bool) (string, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return "", checkin.ErrNoIdentity
	}
	token := p.idToken
	refresh := p.refreshToken
	fresh := p.now().Add(p.config.tokenLeeway()).Before(p.expiry)
	p.mu.Unlock()

	if !forceRefresh && token != "" && fresh {
		return token, nil
	}
	return p.exchange(ctx, refresh)
}

func (p *Provider) exchange(ctx context.Context, refreshToken string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	endpoint := p.config.tokenEndpoint() + "/token?key=" + url.QueryEscape(p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "firebase: failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "firebase: token request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "firebase: failed to read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", p.apiError(resp.StatusCode, data)
	}

	var grant struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    string `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &grant); err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "firebase: failed to decode token response")
	}

	p.mu.Lock()
	p.idToken = grant.IDToken
	if grant.RefreshToken != "" {
		p.refreshToken = grant.RefreshToken
	}
	p.expiry = p.now().Add(parseExpiry(grant.ExpiresIn))
	p.mu.Unlock()

	return grant.IDToken, nil
}

// adopt installs the account response as the current identity and notifies
// subscribers.
func (p *Provider) adopt(resp sessionResponse) checkin.Identity {
	ident := identity{
		id:          resp.LocalID,
		email:       resp.Email,
		displayName: resp.DisplayName,
	}

	p.mu.Lock()
	p.current = &ident
	p.idToken = resp.IDToken
	p.refreshToken = resp.RefreshToken
	p.expiry = p.now().Add(parseExpiry(resp.ExpiresIn))
	p.mu.Unlock()

	p.notify(ident)
	return ident
}

func (p *Provider) notify(ident checkin.Identity) {
	p.mu.Lock()
	listeners := make([]checkin.AuthStateListener, 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(ident)
	}
}

func (p *Provider) post(ctx context.Context, action string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "firebase: failed to encode request")
	}

	endpoint := p.config.identityEndpoint() + "/" + action + "?key=" + url.QueryEscape(p.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "firebase: failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "firebase: request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "firebase: failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return p.apiError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "firebase: failed to decode response")
	}
	return nil
}

func (p *Provider) apiError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)
	return normalizeAuthError(envelope.Error.Message, status)
}

func parseExpiry(expiresIn string) time.Duration {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}
