package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAuthSetupAndVerify(t *testing.T) {
	ctx := context.Background()
	am := NewAuthManager(newTestStore(t), time.Hour)

	if ok, err := am.IsSetup(ctx); ok || err != nil {
		t.Fatalf("IsSetup on fresh store = %v, %v", ok, err)
	}
	if _, err := am.Verify(ctx, "whatever"); !errors.Is(err, ErrNotSetup) {
		t.Errorf("Verify before setup = %v, want ErrNotSetup", err)
	}
	if err := am.Setup(ctx, "short"); !isValidation(err) {
		t.Errorf("Setup with short password = %v, want validation error", err)
	}

	if err := am.Setup(ctx, "hunter22"); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if ok, _ := am.IsSetup(ctx); !ok {
		t.Error("IsSetup after setup = false")
	}
	if err := am.Setup(ctx, "another-one"); !errors.Is(err, ErrAlreadySetup) {
		t.Errorf("second Setup = %v, want ErrAlreadySetup", err)
	}

	if ok, err := am.Verify(ctx, "hunter22"); !ok || err != nil {
		t.Errorf("Verify correct = %v, %v", ok, err)
	}
	if ok, err := am.Verify(ctx, "hunter23"); ok || err != nil {
		t.Errorf("Verify wrong = %v, %v", ok, err)
	}
}

func TestAuthPasswordIsNotStoredInClear(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	am := NewAuthManager(store, time.Hour)
	if err := am.Setup(ctx, "hunter22"); err != nil {
		t.Fatal(err)
	}
	hash, _, _ := store.GetSetting(ctx, passwordHashKey)
	if hash == "" || hash == "hunter22" {
		t.Errorf("stored value = %q", hash)
	}
}

func TestAuthSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	am := NewAuthManager(nil, time.Hour)
	am.now = func() time.Time { return now }

	a, err := am.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := am.CreateSession()
	if a == b || len(a) != 64 {
		t.Errorf("tokens %q, %q", a, b)
	}
	if !am.ValidateSession(a) {
		t.Error("fresh session rejected")
	}
	if am.ValidateSession("") || am.ValidateSession("forged") {
		t.Error("unknown token accepted")
	}

	am.Revoke(b)
	if am.ValidateSession(b) {
		t.Error("revoked session accepted")
	}

	now = now.Add(2 * time.Hour)
	if am.ValidateSession(a) {
		t.Error("expired session accepted")
	}
	if _, ok := am.sessions[a]; ok {
		t.Error("expired session not evicted on validation")
	}
}

func TestAuthSweep(t *testing.T) {
	now := time.Now()
	am := NewAuthManager(nil, time.Minute)
	am.now = func() time.Time { return now }

	am.CreateSession()
	am.CreateSession()
	now = now.Add(2 * time.Minute)
	live, _ := am.CreateSession()

	if n := am.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if !am.ValidateSession(live) {
		t.Error("live session swept")
	}
}

func TestRequestToken(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *http.Request)
		want  string
	}{
		{"header", func(r *http.Request) { r.Header.Set(authHeader, "h") }, "h"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: authCookie, Value: "c"}) }, "c"},
		{"header wins", func(r *http.Request) {
			r.Header.Set(authHeader, "h")
			r.AddCookie(&http.Cookie{Name: authCookie, Value: "c"})
		}, "h"},
		{"query ignored for plain requests", func(r *http.Request) {}, ""},
		{"query on websocket upgrade", func(r *http.Request) {
			r.Header.Set("Connection", "Upgrade")
			r.Header.Set("Upgrade", "websocket")
		}, "q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/servers?token=q", nil)
			tt.build(r)
			if got := requestToken(r); got != tt.want {
				t.Errorf("requestToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	am := NewAuthManager(nil, time.Hour)
	token, _ := am.CreateSession()
	h := am.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("without token: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authHeader, token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("with token: %d", rec.Code)
	}
}
