// Package apiclient is a Go client for the fishing log API. Its Session
// keeps the token pair fresh behind the caller's back: expired access tokens
// are refreshed once per expiry no matter how many requests hit the wall
// simultaneously, and the failed requests are replayed a single time.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// State describes where the session sits in its auth lifecycle.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

var (
	// ErrNotAuthenticated is returned when a call needs a session and none
	// is established.
	ErrNotAuthenticated = errors.New("apiclient: not authenticated")
	// ErrSessionExpired is returned when the refresh token was rejected and
	// the user must log in again.
	ErrSessionExpired = errors.New("apiclient: session expired")
)

// APIError carries the server's error body for non-2xx responses.
type APIError struct {
	Status  int
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// User mirrors the server's public account shape.
type User struct {
	ID                uint64          `json:"id"`
	Email             string          `json:"email"`
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	Role              string          `json:"role"`
	AccountStatus     string          `json:"accountStatus"`
	SubscriptionPlan  string          `json:"subscriptionPlan"`
	CatchesCount      int             `json:"catchesCount"`
	CatchLimitMonthly int             `json:"catchLimitMonthly"`
	Preferences       json.RawMessage `json:"preferences"`
	ProfilePictureURL string          `json:"profilePictureUrl"`
}

type authResponse struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Session is a stateful client for one user. Safe for concurrent use.
type Session struct {
	baseURL string
	http    *http.Client
	storage TokenStorage

	mu     sync.Mutex
	state  State
	tokens Tokens
	user   *User
	// generation increments on logout so a refresh that was already in
	// flight cannot resurrect the session it raced with
	generation uint64

	refreshGroup singleflight.Group
}

// Option customizes a Session.
type Option func(*Session)

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.http = c }
}

// NewSession builds a session against baseURL, e.g. "https://api.example.com".
func NewSession(baseURL string, storage TokenStorage, opts ...Option) *Session {
	s := &Session{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		storage: storage,
		state:   StateAnonymous,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentUser returns the profile cached from the last auth exchange.
func (s *Session) CurrentUser() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

func (s *Session) setSession(resp authResponse) {
	s.mu.Lock()
	s.state = StateAuthenticated
	s.tokens = Tokens{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	u := resp.User
	s.user = &u
	tokens := s.tokens
	s.mu.Unlock()
	_ = s.storage.Save(tokens)
}

func (s *Session) clearSession() {
	s.mu.Lock()
	s.state = StateAnonymous
	s.tokens = Tokens{}
	s.user = nil
	s.mu.Unlock()
	_ = s.storage.Clear()
}

// decodeError turns a non-2xx response into an *APIError.
func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(body, apiErr)
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (s *Session) postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// Register creates an account and establishes the session.
func (s *Session) Register(ctx context.Context, email, password, firstName, lastName string) (User, error) {
	s.mu.Lock()
	s.state = StateAuthenticating
	s.mu.Unlock()

	var resp authResponse
	err := s.postJSON(ctx, "/api/auth/register", map[string]string{
		"email": email, "password": password,
		"firstName": firstName, "lastName": lastName,
	}, &resp)
	if err != nil {
		s.clearSession()
		return User{}, err
	}
	s.setSession(resp)
	return resp.User, nil
}

// Login establishes the session with credentials.
func (s *Session) Login(ctx context.Context, email, password string) (User, error) {
	s.mu.Lock()
	s.state = StateAuthenticating
	s.mu.Unlock()

	var resp authResponse
	err := s.postJSON(ctx, "/api/auth/login", map[string]string{
		"email": email, "password": password,
	}, &resp)
	if err != nil {
		s.clearSession()
		return User{}, err
	}
	s.setSession(resp)
	return resp.User, nil
}

// Logout tells the server to drop the session, then discards local state.
// The refresh token goes in the body so revocation works even with an
// expired access token. The server call is best-effort; local tokens are
// cleared regardless.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	access := s.tokens.AccessToken
	refresh := s.tokens.RefreshToken
	s.generation++
	s.mu.Unlock()

	if access != "" || refresh != "" {
		payload, _ := json.Marshal(map[string]string{"refreshToken": refresh})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/auth/logout", bytes.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
			if access != "" {
				req.Header.Set("Authorization", "Bearer "+access)
			}
			if resp, err := s.http.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	s.clearSession()
}

// refresh exchanges the refresh token for a new pair. Concurrent callers
// collapse into one upstream request; every caller observes the single
// outcome. A refresh that completes after Logout is discarded.
func (s *Session) refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.tokens.RefreshToken
	gen := s.generation
	if refreshToken == "" {
		s.mu.Unlock()
		return ErrNotAuthenticated
	}
	s.state = StateRefreshing
	s.mu.Unlock()

	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		var resp authResponse
		err := s.postJSON(ctx, "/api/auth/refresh", map[string]string{
			"refreshToken": refreshToken,
		}, &resp)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
				s.clearSession()
				return nil, ErrSessionExpired
			}
			s.mu.Lock()
			if s.state == StateRefreshing {
				s.state = StateAuthenticated
			}
			s.mu.Unlock()
			return nil, err
		}

		s.mu.Lock()
		stale := s.generation != gen
		s.mu.Unlock()
		if stale {
			return nil, ErrNotAuthenticated
		}
		s.setSession(resp)
		return nil, nil
	})
	return err
}

// Do performs an authenticated request. On a 401 the session refreshes its
// tokens and replays the request exactly once; a second 401 is returned to
// the caller. The request body, if any, is rebuilt from the provided bytes
// so the replay is safe.
func (s *Session) Do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := s.doOnce(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	if err := s.refresh(ctx); err != nil {
		return nil, err
	}
	return s.doOnce(ctx, method, path, body)
}

func (s *Session) doOnce(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	s.mu.Lock()
	access := s.tokens.AccessToken
	s.mu.Unlock()
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	return s.http.Do(req)
}

// GetJSON performs an authenticated GET and decodes the response body.
func (s *Session) GetJSON(ctx context.Context, path string, out any) error {
	resp, err := s.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// PostJSON performs an authenticated POST and decodes the response body.
func (s *Session) PostJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := s.Do(ctx, http.MethodPost, path, raw)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// InitializeAuth restores a session from storage at startup. It loads the
// saved tokens, confirms them against the profile endpoint, refreshing once
// if the access token has gone stale, and clears storage when the server
// no longer recognizes the session. Returns the user when a session was
// restored and ErrNotAuthenticated when the client should show a login.
func (s *Session) InitializeAuth(ctx context.Context) (User, error) {
	saved, err := s.storage.Load()
	if err != nil {
		if errors.Is(err, ErrNoTokens) {
			return User{}, ErrNotAuthenticated
		}
		return User{}, err
	}

	s.mu.Lock()
	s.tokens = saved
	s.state = StateAuthenticating
	s.mu.Unlock()

	var profile struct {
		User User `json:"user"`
	}
	if err := s.GetJSON(ctx, "/api/auth/me", &profile); err != nil {
		var apiErr *APIError
		switch {
		case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNotAuthenticated):
			s.clearSession()
			return User{}, ErrNotAuthenticated
		case errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden):
			s.clearSession()
			return User{}, ErrNotAuthenticated
		default:
			// transport or server failure; keep the tokens for a later retry
			s.mu.Lock()
			s.state = StateAnonymous
			s.mu.Unlock()
			return User{}, err
		}
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	u := profile.User
	s.user = &u
	s.mu.Unlock()
	return profile.User, nil
}
