package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mentorly/internal/api"
	"mentorly/internal/models"
)

// Claims is the platform's token payload. Tokens are issued and verified
// server-side; the client only reads the claims to learn who it is.
type Claims struct {
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	IsMentor bool   `json:"isMentor"`
	jwt.RegisteredClaims
}

// ParseClaims decodes a session token without verifying its signature.
// The client holds no signing key; the server rejects forged tokens on
// every request anyway.
func ParseClaims(token string) (*Claims, error) {
	claims := &Claims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to parse session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}
	return claims, nil
}

// authAPI is the slice of the REST client the session layer uses.
type authAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.LoginResponse, error)
	SetToken(token string)
}

// Manager owns the login state: who the current user is, the session
// token, and its persistence across restarts.
type Manager struct {
	api    authAPI
	store  *Store
	logger *slog.Logger

	user  models.Participant
	token string
}

func NewManager(api authAPI, store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{api: api, store: store, logger: logger}
}

// Restore loads a persisted session and installs its token on the API
// client. Returns models.ErrNotLoggedIn when nothing is persisted.
func (m *Manager) Restore() error {
	sess, err := m.store.Load()
	if err != nil {
		return err
	}
	m.user = models.Participant{
		ID:        sess.UserID,
		Name:      sess.Name,
		AvatarURL: sess.AvatarURL,
		IsMentor:  sess.IsMentor,
	}
	m.token = sess.Token
	m.api.SetToken(sess.Token)
	m.logger.Info("session restored", "user", sess.UserID)
	return nil
}

// Login authenticates against the platform and persists the session.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	resp, err := m.api.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return m.adopt(resp.Token)
}

// Register creates an account and persists the resulting session.
func (m *Manager) Register(ctx context.Context, req api.RegisterRequest) error {
	resp, err := m.api.Register(ctx, req)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return m.adopt(resp.Token)
}

func (m *Manager) adopt(token string) error {
	if token == "" {
		return errors.New("server returned no session token")
	}
	claims, err := ParseClaims(token)
	if err != nil {
		return err
	}

	m.user = models.Participant{
		ID:        claims.Subject,
		Name:      claims.Name,
		AvatarURL: claims.Avatar,
		IsMentor:  claims.IsMentor,
	}
	m.token = token
	m.api.SetToken(token)

	err = m.store.Save(DBSession{
		Token:     token,
		UserID:    claims.Subject,
		Name:      claims.Name,
		AvatarURL: claims.Avatar,
		IsMentor:  claims.IsMentor,
		SavedAt:   time.Now().UnixMilli(),
	})
	if err != nil {
		// The in-memory session is still usable; persistence is best effort.
		m.logger.Warn("failed to persist session", "error", err)
	}
	return nil
}

// Logout clears the in-memory and persisted session.
func (m *Manager) Logout() error {
	m.user = models.Participant{}
	m.token = ""
	m.api.SetToken("")
	return m.store.Delete()
}

// Close releases the backing store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// LoggedIn reports whether a session token is installed.
func (m *Manager) LoggedIn() bool {
	return m.token != ""
}

// User returns the current user's descriptor. Zero value when logged out.
func (m *Manager) User() models.Participant {
	return m.user
}

// Token returns the raw session token for the socket handshake.
func (m *Manager) Token() string {
	return m.token
}
