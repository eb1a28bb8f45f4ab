package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordHashKey = "admin_password_hash"

	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt ignores anything longer

	authHeader = "X-Auth-Token"
	authCookie = "auth_token"
)

// AuthManager owns the admin password and the in-memory session table.
type AuthManager struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]time.Time
}

func NewAuthManager(store *Store, ttl time.Duration) *AuthManager {
	return &AuthManager{
		store:    store,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]time.Time),
	}
}

// IsSetup reports whether an admin password has been configured.
func (am *AuthManager) IsSetup(ctx context.Context) (bool, error) {
	_, ok, err := am.store.GetSetting(ctx, passwordHashKey)
	return ok, err
}

// Setup stores the first admin password. It fails with ErrAlreadySetup afterwards.
func (am *AuthManager) Setup(ctx context.Context, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	written, err := am.store.SetSettingIfAbsent(ctx, passwordHashKey, string(hash))
	if err != nil {
		return err
	}
	if !written {
		return ErrAlreadySetup
	}
	slog.Info("admin password configured")
	return nil
}

// Verify checks password against the stored hash.
func (am *AuthManager) Verify(ctx context.Context, password string) (bool, error) {
	hash, ok, err := am.store.GetSetting(ctx, passwordHashKey)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrNotSetup
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return err == nil, err
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return invalid("password", fmt.Sprintf("must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

// CreateSession issues a new random session token.
func (am *AuthManager) CreateSession() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	am.mu.Lock()
	am.sessions[token] = am.now().Add(am.ttl)
	am.mu.Unlock()
	return token, nil
}

// ValidateSession reports whether token is live. Expired tokens are removed.
func (am *AuthManager) ValidateSession(token string) bool {
	if token == "" {
		return false
	}
	am.mu.Lock()
	defer am.mu.Unlock()

	expiry, ok := am.sessions[token]
	if !ok {
		return false
	}
	if am.now().After(expiry) {
		delete(am.sessions, token)
		return false
	}
	return true
}

// Revoke ends a session.
func (am *AuthManager) Revoke(token string) {
	am.mu.Lock()
	delete(am.sessions, token)
	am.mu.Unlock()
}

// Sweep drops every expired session and returns how many were removed.
func (am *AuthManager) Sweep() int {
	now := am.now()
	am.mu.Lock()
	defer am.mu.Unlock()

	n := 0
	for token, expiry := range am.sessions {
		if now.After(expiry) {
			delete(am.sessions, token)
			n++
		}
	}
	return n
}

// RunSweeper calls Sweep every interval until ctx is done.
func (am *AuthManager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := am.Sweep(); n > 0 {
				slog.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

// requestToken extracts the session token from the header, the cookie, or, for
// websocket upgrades that cannot set headers from a browser, the query string.
func requestToken(r *http.Request) string {
	if token := r.Header.Get(authHeader); token != "" {
		return token
	}
	if cookie, err := r.Cookie(authCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if isWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

// Middleware rejects requests without a live session.
func (am *AuthManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !am.ValidateSession(requestToken(r)) {
			webErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (am *AuthManager) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(am.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
