package xaytheon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// credentialsRequest is the body of login and register calls.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// refreshRequest carries the refresh token. In cookie mode the body is
// empty and the credential travels on the cookie jar instead.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

// tokenResponse is the success body of login and refresh calls.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	ExpiresIn    int64  `json:"expiresIn"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// Session manages the lifecycle of an access credential against an
// identity provider: login, registration, logout, proactive renewal,
// restoration, and the authenticated-request protocol in request.go.
// A Session is long-lived and safe for concurrent use.
type Session struct {
	baseURL    string
	storage    TokenStorage
	clock      clockwork.Clock
	logger     zerolog.Logger
	timeout    time.Duration
	skew       time.Duration
	httpClient *http.Client

	gateway *Gateway
	store   *Store
	flight  singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient sets the base HTTP client (for TLS config, proxies, or a
// cookie jar in cookie mode).
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTimeout sets the per-call hard timeout (default 30s).
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithExpirySkew sets the safety margin subtracted from advertised token
// lifetimes (default 60s).
func WithExpirySkew(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.skew = d
		}
	}
}

// WithClock sets the clock used for expiry checks and the refresh timer.
// Tests pass clockwork.NewFakeClock().
func WithClock(clock clockwork.Clock) Option {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// New creates a Session for the provider rooted at baseURL (e.g.
// "https://api.example.com/api/auth"). storage persists the refresh token
// across restarts; a nil storage selects cookie mode, where the refresh
// credential is carried out-of-band by the HTTP client's cookie jar.
//
// No network call is made here; call Restore to resume a prior session.
func New(baseURL string, storage TokenStorage, opts ...Option) *Session {
	s := &Session{
		baseURL:    strings.TrimRight(baseURL, "/"),
		storage:    storage,
		clock:      clockwork.NewRealClock(),
		logger:     zerolog.Nop(),
		timeout:    DefaultRequestTimeout,
		skew:       DefaultExpirySkew,
		httpClient: http.DefaultClient,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.gateway = NewGateway(s.httpClient, s.timeout)
	s.store = newStore(s.clock, s.skew, storage, s.logger)
	s.store.setRefreshFunc(s.backgroundRefresh)

	return s
}

// BaseURL returns the provider base URL this session is configured for.
func (s *Session) BaseURL() string {
	return s.baseURL
}

// HTTPClient returns the underlying base HTTP client.
func (s *Session) HTTPClient() *http.Client {
	return s.httpClient
}

// IsAuthenticated returns true iff an access token is present.
func (s *Session) IsAuthenticated() bool {
	return s.store.IsAuthenticated()
}

// CurrentUser returns the last known user, or nil when signed out.
func (s *Session) CurrentUser() *User {
	return s.store.CurrentUser()
}

// LastError returns the most recent restoration/refresh failure, retained
// for display until the next successful credential set.
func (s *Session) LastError() error {
	return s.store.LastError()
}

// OnAuthChange subscribes fn to credential mutations. fn runs
// synchronously after each set/clear with the current user (nil when
// signed out). The returned func cancels the subscription.
func (s *Session) OnAuthChange(fn func(*User)) func() {
	return s.store.OnChange(fn)
}

// Login authenticates with the provider and establishes a session.
// Validation failures surface as INVALID_INPUT before any network call.
func (s *Session) Login(ctx context.Context, email, password string) (*User, error) {
	email, err := validateLoginInput(email, password)
	if err != nil {
		return nil, err
	}

	req, err := NewJSONRequest(http.MethodPost, s.endpoint("/login"), credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, NewAuthError(ErrCodeInvalidCredentials, "invalid email or password")
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, NewAuthError(ErrCodeTooManyAttempts, "too many login attempts")
		case resp.StatusCode >= 500:
			return nil, NewAuthError(ErrCodeServerError, "server error during login")
		default:
			return nil, NewAuthError(ErrCodeAuthFailed, fmt.Sprintf("login failed with status %d", resp.StatusCode))
		}
	}

	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		return nil, err
	}
	if body.AccessToken == "" || body.User == nil {
		return nil, NewAuthError(ErrCodeInvalidResponse, "login response missing token or user")
	}
	lifetime := s.tokenLifetime(&body)
	if lifetime <= 0 {
		return nil, NewAuthError(ErrCodeInvalidResponse, "login response missing token lifetime")
	}

	s.persistRefreshToken(body.RefreshToken)
	s.store.Set(body.AccessToken, lifetime, body.User)
	s.logger.Info().Str("user", body.User.Email).Msg("logged in")

	return body.User, nil
}

// Register creates an account. It has no credential side effect: success
// only returns the provider's response body for the caller to act on
// (e.g. prompt sign-in).
func (s *Session) Register(ctx context.Context, email, password string) (json.RawMessage, error) {
	email, err := validateLoginInput(email, password)
	if err != nil {
		return nil, err
	}

	req, err := NewJSONRequest(http.MethodPost, s.endpoint("/register"), credentialsRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := s.gateway.Call(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		switch {
		case resp.StatusCode == http.StatusConflict:
			return nil, NewAuthError(ErrCodeUserExists, "an account with this email already exists")
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, NewAuthError(ErrCodeTooManyAttempts, "too many registration attempts")
		case resp.StatusCode >= 500:
			return nil, NewAuthError(ErrCodeServerError, "server error during registration")
		default:
			return nil, NewAuthError(ErrCodeAuthFailed, fmt.Sprintf("registration failed with status %d", resp.StatusCode))
		}
	}

	return json.RawMessage(resp.Body), nil
}

// Logout best-effort notifies the provider, then unconditionally clears
// the local credential. It always locally succeeds, so it returns nothing.
func (s *Session) Logout(ctx context.Context) {
	var payload refreshRequest
	if s.storage != nil {
		if token, err := s.storage.Load(); err == nil {
			payload.RefreshToken = token
		}
	}

	if req, err := NewJSONRequest(http.MethodPost, s.endpoint("/logout"), payload); err == nil {
		if _, err := s.gateway.Call(ctx, req); err != nil {
			s.logger.Debug().Err(err).Msg("logout request failed")
		}
	}

	s.store.Clear()
	s.logger.Info().Msg("logged out")
}

// Refresh renews the access credential using the refresh token (or the
// out-of-band cookie in cookie mode). Concurrent callers collapse into a
// single in-flight network call and share its outcome; joiners ride on
// the first caller's context.
func (s *Session) Refresh(ctx context.Context) error {
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		return nil, s.doRefresh(ctx)
	})
	return err
}

// Restore attempts to resume a previous session, once at startup. Absence
// of a session is not an application error, so the outcome is swallowed;
// failures remain observable through LastError.
func (s *Session) Restore(ctx context.Context) {
	if s.storage != nil {
		token, err := s.storage.Load()
		if err != nil || token == "" {
			s.logger.Debug().Msg("no persisted session to restore")
			return
		}
	}
	if err := s.Refresh(ctx); err != nil {
		s.logger.Info().Err(err).Msg("session restore failed")
		return
	}
	s.logger.Info().Msg("session restored")
}

// Token returns a valid access token, refreshing first when the cached one
// is expiring soon. Fails with SESSION_EXPIRED when no session can be
// established.
func (s *Session) Token(ctx context.Context) (string, error) {
	if s.store.IsExpiringSoon() {
		if err := s.Refresh(ctx); err != nil {
			return "", WrapAuthError(ErrCodeSessionExpired, "session expired", err)
		}
	}
	cred := s.store.Current()
	if cred == nil {
		return "", NewAuthError(ErrCodeSessionExpired, "not signed in")
	}
	return cred.AccessToken, nil
}

func (s *Session) doRefresh(ctx context.Context) error {
	var payload refreshRequest
	if s.storage != nil {
		token, err := s.storage.Load()
		if err != nil {
			authErr := WrapAuthError(ErrCodeSessionExpired, "could not read refresh token", err)
			s.store.setLastError(authErr)
			return authErr
		}
		if token == "" {
			// Nothing to refresh with: the session is over.
			authErr := NewAuthError(ErrCodeSessionExpired, "no refresh credential")
			s.store.setLastError(authErr)
			s.store.Clear()
			return authErr
		}
		payload.RefreshToken = token
	}

	req, err := NewJSONRequest(http.MethodPost, s.endpoint("/refresh"), payload)
	if err != nil {
		return err
	}

	resp, err := s.gateway.Call(ctx, req)
	if err != nil {
		// Transport failure is transient: a still-valid in-memory
		// credential is preserved rather than forcing logout.
		s.store.setLastError(err)
		return err
	}

	if !resp.OK() {
		return s.refreshFailure(resp.StatusCode)
	}

	var body tokenResponse
	if err := resp.JSON(&body); err != nil {
		s.store.setLastError(err)
		return err
	}
	if body.AccessToken == "" {
		authErr := NewAuthError(ErrCodeInvalidResponse, "refresh response missing access token")
		s.store.setLastError(authErr)
		return authErr
	}
	lifetime := s.tokenLifetime(&body)
	if lifetime <= 0 {
		authErr := NewAuthError(ErrCodeInvalidResponse, "refresh response missing token lifetime")
		s.store.setLastError(authErr)
		return authErr
	}

	// Refresh responses may omit the user record; fall back to the token's
	// claims, and failing that the store retains the prior user.
	user := body.User
	if user == nil {
		if claims, err := inspectAccessToken(body.AccessToken); err == nil {
			user = claims.user()
		}
	}

	s.persistRefreshToken(body.RefreshToken)
	s.store.Set(body.AccessToken, lifetime, user)
	return nil
}

// refreshFailure classifies a non-2xx refresh response. A 4xx (other than
// 429) means the provider rejected the refresh credential itself: the
// session is definitively over and the credential is cleared. Everything
// else is transient and preserves a still-valid in-memory credential.
func (s *Session) refreshFailure(status int) error {
	var authErr *AuthError
	switch {
	case status == http.StatusTooManyRequests:
		authErr = NewAuthError(ErrCodeTooManyAttempts, "too many refresh attempts")
	case status >= 500:
		authErr = NewAuthError(ErrCodeServerError, "server error during refresh")
	default:
		authErr = NewAuthError(ErrCodeSessionExpired, "refresh credential rejected")
		s.store.setLastError(authErr)
		s.store.Clear()
		return authErr
	}
	s.store.setLastError(authErr)
	return authErr
}

// backgroundRefresh is what the armed timer fires. Failures must never
// crash the process; they are logged and retained in LastError.
func (s *Session) backgroundRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.Refresh(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("proactive token refresh failed")
	}
}

// tokenLifetime derives the advertised token lifetime, falling back to the
// access token's exp claim when the body omits expiresIn.
func (s *Session) tokenLifetime(body *tokenResponse) time.Duration {
	if body.ExpiresIn > 0 {
		return time.Duration(body.ExpiresIn) * time.Second
	}
	if claims, err := inspectAccessToken(body.AccessToken); err == nil && !claims.ExpiresAt.IsZero() {
		return claims.ExpiresAt.Sub(s.clock.Now())
	}
	return 0
}

// persistRefreshToken rotates the durable refresh token. The old value is
// overwritten, never retained.
func (s *Session) persistRefreshToken(token string) {
	if token == "" || s.storage == nil {
		return
	}
	if err := s.storage.Store(token); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist refresh token")
	}
}

func (s *Session) endpoint(path string) string {
	return s.baseURL + path
}
