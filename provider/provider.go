// Package provider is an in-memory identity provider implementing the
// auth API the xaytheon client speaks. It exists for local development
// and end-to-end tests; it is not a production credential validator.
package provider

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const sessionUserKey = "userID"

// Config configures a Provider. Zero values get sensible dev defaults.
type Config struct {
	// SigningKey signs access tokens (HS256). Randomly generated if empty.
	SigningKey []byte

	// AccessTokenTTL is the advertised access token lifetime (default 15m).
	AccessTokenTTL time.Duration

	// RefreshTokenTTL bounds refresh tokens and cookie sessions (default 7d).
	RefreshTokenTTL time.Duration

	// CookieMode carries the refresh credential on a session cookie
	// instead of returning a refresh token in response bodies.
	CookieMode bool

	// MaxAttempts is the failed-login threshold per email before the
	// provider answers 429 (default 10).
	MaxAttempts int

	Logger zerolog.Logger
}

type account struct {
	ID           string
	Email        string
	Name         string
	passwordHash []byte
}

type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

// Provider holds users, refresh tokens, and reset tokens in memory.
type Provider struct {
	cfg      Config
	sessions *scs.SessionManager
	handler  http.Handler

	mu          sync.Mutex
	byEmail     map[string]*account
	byID        map[string]*account
	refresh     map[string]refreshRecord
	resetTokens map[string]string // reset token -> email
	attempts    map[string]int
}

// New creates a Provider and its HTTP routes.
func New(cfg Config) *Provider {
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = []byte(uuid.NewString())
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}

	p := &Provider{
		cfg:         cfg,
		byEmail:     make(map[string]*account),
		byID:        make(map[string]*account),
		refresh:     make(map[string]refreshRecord),
		resetTokens: make(map[string]string),
		attempts:    make(map[string]int),
	}

	if cfg.CookieMode {
		p.sessions = scs.New()
		p.sessions.Lifetime = cfg.RefreshTokenTTL
		p.sessions.Cookie.HttpOnly = true
		p.sessions.Cookie.SameSite = http.SameSiteLaxMode
	}

	r := mux.NewRouter()
	r.HandleFunc("/login", p.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/register", p.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/refresh", p.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/logout", p.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/forgot-password", p.handleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/reset-password", p.handleResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/validate-reset-token", p.handleValidateResetToken).Methods(http.MethodGet)

	var h http.Handler = r
	if p.sessions != nil {
		h = p.sessions.LoadAndSave(h)
	}
	p.handler = h

	return p
}

// Handler returns the provider's HTTP handler.
func (p *Provider) Handler() http.Handler {
	return p.handler
}

// AddUser seeds an account.
func (p *Provider) AddUser(email, password, name string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	a := &account{ID: uuid.NewString(), Email: email, Name: name, passwordHash: hash}
	p.byEmail[email] = a
	p.byID[a.ID] = a
	return nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type userBody struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type tokenBody struct {
	AccessToken  string    `json:"accessToken"`
	ExpiresIn    int64     `json:"expiresIn"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	User         *userBody `json:"user"`
}

func (p *Provider) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	p.mu.Lock()
	if p.attempts[email] >= p.cfg.MaxAttempts {
		p.mu.Unlock()
		writeMessage(w, http.StatusTooManyRequests, "too many attempts")
		return
	}
	a := p.byEmail[email]
	p.mu.Unlock()

	if a == nil || bcrypt.CompareHashAndPassword(a.passwordHash, []byte(req.Password)) != nil {
		p.mu.Lock()
		p.attempts[email]++
		p.mu.Unlock()
		p.cfg.Logger.Info().Str("email", email).Msg("login rejected")
		writeMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	p.mu.Lock()
	delete(p.attempts, email)
	p.mu.Unlock()

	p.issueTokens(w, r, a)
}

func (p *Provider) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") || len(req.Password) < 8 {
		writeMessage(w, http.StatusBadRequest, "a valid email and a password of at least 8 characters are required")
		return
	}

	p.mu.Lock()
	if _, exists := p.byEmail[email]; exists {
		p.mu.Unlock()
		writeMessage(w, http.StatusConflict, "an account with this email already exists")
		return
	}
	p.mu.Unlock()

	if err := p.AddUser(email, req.Password, ""); err != nil {
		writeMessage(w, http.StatusInternalServerError, "could not create account")
		return
	}

	p.cfg.Logger.Info().Str("email", email).Msg("account created")
	writeMessage(w, http.StatusCreated, "account created, please sign in")
}

func (p *Provider) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if p.sessions != nil {
		userID := p.sessions.GetString(r.Context(), sessionUserKey)
		if userID == "" {
			writeMessage(w, http.StatusUnauthorized, "no session")
			return
		}
		p.mu.Lock()
		a := p.byID[userID]
		p.mu.Unlock()
		if a == nil {
			writeMessage(w, http.StatusUnauthorized, "unknown user")
			return
		}
		p.issueTokens(w, r, a)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeMessage(w, http.StatusUnauthorized, "refresh token required")
		return
	}

	p.mu.Lock()
	rec, ok := p.refresh[req.RefreshToken]
	if ok {
		// Single use: the old token is gone whether or not it was still valid.
		delete(p.refresh, req.RefreshToken)
	}
	var a *account
	if ok && time.Now().Before(rec.expiresAt) {
		a = p.byID[rec.userID]
	}
	p.mu.Unlock()

	if a == nil {
		writeMessage(w, http.StatusUnauthorized, "refresh token invalid or expired")
		return
	}
	p.issueTokens(w, r, a)
}

func (p *Provider) handleLogout(w http.ResponseWriter, r *http.Request) {
	if p.sessions != nil {
		if err := p.sessions.Destroy(r.Context()); err != nil {
			p.cfg.Logger.Warn().Err(err).Msg("failed to destroy session")
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		p.mu.Lock()
		delete(p.refresh, req.RefreshToken)
		p.mu.Unlock()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Provider) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	p.mu.Lock()
	if _, exists := p.byEmail[email]; exists {
		token := uuid.NewString()
		p.resetTokens[token] = email
		// A real provider emails this; the dev provider just logs it.
		p.cfg.Logger.Info().Str("email", email).Str("token", token).Msg("password reset token issued")
	}
	p.mu.Unlock()

	// Same answer whether or not the account exists.
	writeMessage(w, http.StatusOK, "if that account exists, a reset link has been sent")
}

func (p *Provider) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.NewPassword) < 8 {
		writeMessage(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	p.mu.Lock()
	email, ok := p.resetTokens[req.Token]
	var a *account
	if ok {
		delete(p.resetTokens, req.Token)
		a = p.byEmail[email]
	}
	p.mu.Unlock()

	if a == nil {
		writeMessage(w, http.StatusBadRequest, "reset token invalid or expired")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "could not update password")
		return
	}

	p.mu.Lock()
	a.passwordHash = hash
	p.mu.Unlock()

	writeMessage(w, http.StatusOK, "password updated")
}

func (p *Provider) handleValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	p.mu.Lock()
	_, valid := p.resetTokens[token]
	p.mu.Unlock()

	body := map[string]any{"valid": valid}
	if !valid {
		body["message"] = "reset token invalid or expired"
	}
	writeJSON(w, http.StatusOK, body)
}

// issueTokens mints an access token and rotates the refresh credential.
func (p *Provider) issueTokens(w http.ResponseWriter, r *http.Request, a *account) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   a.ID,
		"email": a.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(p.cfg.AccessTokenTTL).Unix(),
	}
	if a.Name != "" {
		claims["name"] = a.Name
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.SigningKey)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "could not sign token")
		return
	}

	body := tokenBody{
		AccessToken: access,
		ExpiresIn:   int64(p.cfg.AccessTokenTTL / time.Second),
		User:        &userBody{ID: a.ID, Email: a.Email, Name: a.Name},
	}

	if p.sessions != nil {
		if err := p.sessions.RenewToken(r.Context()); err != nil {
			writeMessage(w, http.StatusInternalServerError, "could not renew session")
			return
		}
		p.sessions.Put(r.Context(), sessionUserKey, a.ID)
	} else {
		token := uuid.NewString()
		p.mu.Lock()
		p.refresh[token] = refreshRecord{userID: a.ID, expiresAt: now.Add(p.cfg.RefreshTokenTTL)}
		p.mu.Unlock()
		body.RefreshToken = token
	}

	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
