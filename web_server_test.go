package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type testPanel struct {
	handler *Handler
	server  *httptest.Server
}

func newTestPanel(t *testing.T, releaseAPI string) *testPanel {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Frpc.StopTimeout = Duration{2 * time.Second}
	if releaseAPI != "" {
		cfg.Frpc.ReleaseAPI = releaseAPI
	}

	store, err := OpenStore(cfg.dbPath())
	if err != nil {
		t.Fatal(err)
	}
	versions, err := NewVersionManager(cfg)
	if err != nil {
		t.Fatal(err)
	}
	procs, err := NewProcessManager(cfg, versions.BinaryPath)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandler(cfg, store, procs, versions, NewAuthManager(store, time.Hour))

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(func() {
		srv.Close()
		procs.StopAll()
		store.Close()
	})
	return &testPanel{handler: h, server: srv}
}

// do sends a JSON request and decodes a JSON reply into out when out is non-nil.
func (p *testPanel) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, p.server.URL+path, r)
	if token != "" {
		req.Header.Set(authHeader, token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

// login completes first-run setup and returns a session token.
func (p *testPanel) login(t *testing.T) string {
	t.Helper()
	var res struct{ Token string }
	if code := p.do(t, http.MethodPost, "/api/auth/setup", "", passwordBody{Password: "hunter22"}, &res); code != http.StatusOK {
		t.Fatalf("setup: %d", code)
	}
	return res.Token
}

func (p *testPanel) createServer(t *testing.T, token string, s ServerProfile) string {
	t.Helper()
	var res struct{ ID string }
	if code := p.do(t, http.MethodPost, "/api/servers", token, s, &res); code != http.StatusCreated {
		t.Fatalf("create server: %d", code)
	}
	return res.ID
}

func TestAPIAuthFlow(t *testing.T) {
	p := newTestPanel(t, "")

	var status AuthStatus
	p.do(t, http.MethodGet, "/api/auth/status", "", nil, &status)
	if !status.NeedSetup || status.FrpcInstalled {
		t.Fatalf("fresh status = %+v", status)
	}

	if code := p.do(t, http.MethodGet, "/api/servers", "", nil, nil); code != http.StatusUnauthorized {
		t.Errorf("unauthenticated list: %d", code)
	}
	if code := p.do(t, http.MethodPost, "/api/auth/login", "", passwordBody{Password: "hunter22"}, nil); code != http.StatusConflict {
		t.Errorf("login before setup: %d", code)
	}
	if code := p.do(t, http.MethodPost, "/api/auth/setup", "", passwordBody{Password: "abc"}, nil); code != http.StatusBadRequest {
		t.Errorf("short password: %d", code)
	}

	token := p.login(t)
	if code := p.do(t, http.MethodGet, "/api/servers", token, nil, nil); code != http.StatusOK {
		t.Errorf("list with token: %d", code)
	}
	if code := p.do(t, http.MethodPost, "/api/auth/setup", "", passwordBody{Password: "taken-over"}, nil); code != http.StatusConflict {
		t.Errorf("second setup: %d", code)
	}

	p.do(t, http.MethodGet, "/api/auth/status", "", nil, &status)
	if status.NeedSetup {
		t.Error("needSetup after setup")
	}

	var e struct{ Error string }
	if code := p.do(t, http.MethodPost, "/api/auth/login", "", passwordBody{Password: "wrong-one"}, &e); code != http.StatusUnauthorized || e.Error == "" {
		t.Errorf("wrong password: %d %q", code, e.Error)
	}
	var res struct{ Token string }
	if code := p.do(t, http.MethodPost, "/api/auth/login", "", passwordBody{Password: "hunter22"}, &res); code != http.StatusOK || res.Token == "" {
		t.Fatalf("login: %d", code)
	}

	if code := p.do(t, http.MethodPost, "/api/auth/logout", res.Token, nil, nil); code != http.StatusOK {
		t.Errorf("logout: %d", code)
	}
	if code := p.do(t, http.MethodGet, "/api/servers", res.Token, nil, nil); code != http.StatusUnauthorized {
		t.Errorf("token after logout: %d", code)
	}
	if code := p.do(t, http.MethodGet, "/api/servers", token, nil, nil); code != http.StatusOK {
		t.Errorf("other session affected by logout: %d", code)
	}
}

func TestAPISessionCookie(t *testing.T) {
	p := newTestPanel(t, "")
	resp, err := http.Post(p.server.URL+"/api/auth/setup", "application/json", strings.NewReader(`{"password":"hunter22"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == authCookie {
			cookie = c
		}
	}
	if cookie == nil || !cookie.HttpOnly {
		t.Fatalf("session cookie = %+v", cookie)
	}

	req, _ := http.NewRequest(http.MethodGet, p.server.URL+"/api/servers", nil)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie auth: %d", resp.StatusCode)
	}
}

func TestAPIServers(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)

	if code := p.do(t, http.MethodPost, "/api/servers", token, ServerProfile{Name: "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("invalid create: %d", code)
	}
	req, _ := http.NewRequest(http.MethodPost, p.server.URL+"/api/servers", strings.NewReader("{not json"))
	req.Header.Set(authHeader, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: %d", resp.StatusCode)
	}

	id := p.createServer(t, token, ServerProfile{
		Name: " home ", ServerAddr: "frps.example.com", ServerPort: 7000, AuthToken: "s3cret",
		Proxies: []ProxyRule{{Name: "ssh", Type: "tcp", LocalPort: 22, RemotePort: 6000}},
	})

	var got ServerView
	if code := p.do(t, http.MethodGet, "/api/servers/"+id, token, nil, &got); code != http.StatusOK {
		t.Fatalf("get: %d", code)
	}
	if got.Name != "home" || got.AuthMethod != "token" || got.Running {
		t.Errorf("get = %+v", got)
	}
	if len(got.Proxies) != 1 || got.Proxies[0].LocalIP != "127.0.0.1" {
		t.Errorf("proxies = %+v", got.Proxies)
	}

	update := ServerProfile{Name: "home2", ServerAddr: "10.0.0.1", ServerPort: 7001}
	if code := p.do(t, http.MethodPut, "/api/servers/"+id, token, update, nil); code != http.StatusOK {
		t.Errorf("update: %d", code)
	}
	var list []ServerView
	p.do(t, http.MethodGet, "/api/servers", token, nil, &list)
	if len(list) != 1 || list[0].Name != "home2" || len(list[0].Proxies) != 1 {
		t.Errorf("list after update = %+v", list)
	}

	if code := p.do(t, http.MethodGet, "/api/servers/missing", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("get missing: %d", code)
	}
	if code := p.do(t, http.MethodPut, "/api/servers/missing", token, update, nil); code != http.StatusNotFound {
		t.Errorf("update missing: %d", code)
	}

	if code := p.do(t, http.MethodDelete, "/api/servers/"+id, token, nil, nil); code != http.StatusOK {
		t.Errorf("delete: %d", code)
	}
	if code := p.do(t, http.MethodDelete, "/api/servers/"+id, token, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete: %d", code)
	}
}

func TestAPIProxies(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)
	id := p.createServer(t, token, testProfile("home"))
	base := "/api/servers/" + id + "/proxies"

	var created struct{ ID string }
	rule := ProxyRule{Name: "web", Type: "http", LocalPort: 8080, CustomDomains: []string{"a.example.com"}}
	if code := p.do(t, http.MethodPost, base, token, rule, &created); code != http.StatusCreated || created.ID == "" {
		t.Fatalf("create proxy: %d", code)
	}
	if code := p.do(t, http.MethodPost, base, token, rule, nil); code != http.StatusBadRequest {
		t.Errorf("duplicate name: %d", code)
	}
	if code := p.do(t, http.MethodPost, base, token, ProxyRule{Name: "bad", Type: "http", LocalPort: 80}, nil); code != http.StatusBadRequest {
		t.Errorf("http without domain: %d", code)
	}
	if code := p.do(t, http.MethodPost, "/api/servers/missing/proxies", token, rule, nil); code != http.StatusNotFound {
		t.Errorf("proxy on missing server: %d", code)
	}

	rule.Type = "tcp"
	rule.RemotePort = 8080
	if code := p.do(t, http.MethodPut, base+"/"+created.ID, token, rule, nil); code != http.StatusOK {
		t.Errorf("update proxy: %d", code)
	}
	var proxies []ProxyRule
	p.do(t, http.MethodGet, base, token, nil, &proxies)
	if len(proxies) != 1 || proxies[0].Type != "tcp" || proxies[0].CustomDomains != nil || proxies[0].RemotePort != 8080 {
		t.Errorf("after type change = %+v", proxies)
	}

	if code := p.do(t, http.MethodPut, base+"/missing", token, rule, nil); code != http.StatusNotFound {
		t.Errorf("update missing proxy: %d", code)
	}
	if code := p.do(t, http.MethodDelete, base+"/"+created.ID, token, nil, nil); code != http.StatusOK {
		t.Errorf("delete proxy: %d", code)
	}
	if code := p.do(t, http.MethodDelete, base+"/"+created.ID, token, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete: %d", code)
	}
}

func TestAPIServerConfig(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)
	id := p.createServer(t, token, ServerProfile{
		Name: "home", ServerAddr: "frps.example.com", ServerPort: 7000,
		Proxies: []ProxyRule{{Name: "ssh", Type: "tcp", LocalPort: 22}},
	})

	req, _ := http.NewRequest(http.MethodGet, p.server.URL+"/api/servers/"+id+"/config", nil)
	req.Header.Set(authHeader, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("content type %q", resp.Header.Get("Content-Type"))
	}
	for _, want := range []string{"serverAddr = ", "frps.example.com", "[[proxies]]", "localPort = 22"} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("config missing %q:\n%s", want, body)
		}
	}
}

func TestAPIStartWithoutFrpc(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)
	id := p.createServer(t, token, testProfile("home"))

	var e struct{ Error string }
	if code := p.do(t, http.MethodPost, "/api/servers/"+id+"/start", token, nil, &e); code != http.StatusConflict {
		t.Errorf("start without frpc: %d", code)
	}
	if !strings.Contains(e.Error, "install") {
		t.Errorf("error = %q", e.Error)
	}
	if code := p.do(t, http.MethodPost, "/api/servers/"+id+"/stop", token, nil, nil); code != http.StatusConflict {
		t.Errorf("stop idle: %d", code)
	}
	if code := p.do(t, http.MethodPost, "/api/servers/missing/start", token, nil, nil); code != http.StatusNotFound {
		t.Errorf("start missing server: %d", code)
	}
}

func TestAPIUnknownServer(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)

	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, "/api/servers/missing/start"},
		{http.MethodPost, "/api/servers/missing/stop"},
		{http.MethodPost, "/api/servers/missing/restart"},
		{http.MethodGet, "/api/servers/missing/status"},
		{http.MethodGet, "/api/servers/missing/logs"},
		{http.MethodGet, "/api/servers/missing/config"},
	} {
		if code := p.do(t, tt.method, tt.path, token, nil, nil); code != http.StatusNotFound {
			t.Errorf("%s %s: %d, want 404", tt.method, tt.path, code)
		}
	}
}

func TestAPILogsParam(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)
	id := p.createServer(t, token, testProfile("home"))

	var res struct{ Logs string }
	if code := p.do(t, http.MethodGet, "/api/servers/"+id+"/logs", token, nil, &res); code != http.StatusOK || res.Logs != "" {
		t.Errorf("logs before start: %d %q", code, res.Logs)
	}
	if code := p.do(t, http.MethodGet, "/api/servers/"+id+"/logs?lines=-1", token, nil, nil); code != http.StatusBadRequest {
		t.Errorf("negative lines: %d", code)
	}
}

func TestAPIUploadRejectsBadArchive(t *testing.T) {
	p := newTestPanel(t, "")
	token := p.login(t)

	c := NewClient(p.server.URL)
	c.SetToken(token)
	path := writeTempFile(t, "frp.tar.gz", []byte("definitely not gzip"))
	_, err := c.FrpcUpload(t.Context(), path)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest {
		t.Errorf("upload garbage = %v", err)
	}
}

func TestAPIUploadLimit(t *testing.T) {
	p := newTestPanel(t, "")
	p.handler.cfg.Web.UploadLimit = 1024
	token := p.login(t)

	c := NewClient(p.server.URL)
	c.SetToken(token)
	path := writeTempFile(t, "frp.tar.gz", bytes.Repeat([]byte{0x1f}, 4096))
	_, err := c.FrpcUpload(t.Context(), path)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload = %v", err)
	}
}

func TestAPILatestUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer upstream.Close()

	p := newTestPanel(t, upstream.URL)
	token := p.login(t)
	if code := p.do(t, http.MethodGet, "/api/frpc/latest", token, nil, nil); code != http.StatusBadGateway {
		t.Errorf("latest with failing upstream: %d", code)
	}
}

func TestIndexPage(t *testing.T) {
	p := newTestPanel(t, "")
	resp, err := http.Get(p.server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("index: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.Contains(body, []byte("X-Auth-Token")) {
		t.Error("dashboard does not send the auth header")
	}
	if !bytes.Contains(body, []byte("r.status===401&&path.indexOf('/auth/')!==0){localStorage.removeItem(TOKEN_KEY);")) {
		t.Error("dashboard keeps a rejected session token")
	}

	resp, err = http.Get(p.server.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path: %d", resp.StatusCode)
	}
}
