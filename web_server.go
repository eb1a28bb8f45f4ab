// Web API and dashboard server
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Handler serves the REST API the dashboard and the terminal client use.
type Handler struct {
	cfg      *Config
	store    *Store
	procs    *ProcessManager
	versions *VersionManager
	auth     *AuthManager
}

func NewHandler(cfg *Config, store *Store, procs *ProcessManager, versions *VersionManager, auth *AuthManager) *Handler {
	return &Handler{cfg: cfg, store: store, procs: procs, versions: versions, auth: auth}
}

// Routes builds the HTTP mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	protect := func(fn http.HandlerFunc) http.Handler { return h.auth.Middleware(fn) }

	mux.HandleFunc("GET /api/auth/status", h.AuthStatus)
	mux.HandleFunc("POST /api/auth/setup", h.AuthSetup)
	mux.HandleFunc("POST /api/auth/login", h.AuthLogin)
	mux.Handle("POST /api/auth/logout", protect(h.AuthLogout))

	mux.Handle("GET /api/servers", protect(h.ListServers))
	mux.Handle("POST /api/servers", protect(h.CreateServer))
	mux.Handle("GET /api/servers/{id}", protect(h.GetServer))
	mux.Handle("PUT /api/servers/{id}", protect(h.UpdateServer))
	mux.Handle("DELETE /api/servers/{id}", protect(h.DeleteServer))

	mux.Handle("GET /api/servers/{id}/proxies", protect(h.ListProxies))
	mux.Handle("POST /api/servers/{id}/proxies", protect(h.CreateProxy))
	mux.Handle("PUT /api/servers/{id}/proxies/{pid}", protect(h.UpdateProxy))
	mux.Handle("DELETE /api/servers/{id}/proxies/{pid}", protect(h.DeleteProxy))

	mux.Handle("POST /api/servers/{id}/start", protect(h.StartServer))
	mux.Handle("POST /api/servers/{id}/stop", protect(h.StopServer))
	mux.Handle("POST /api/servers/{id}/restart", protect(h.RestartServer))
	mux.Handle("GET /api/servers/{id}/status", protect(h.ServerStatus))
	mux.Handle("GET /api/servers/{id}/logs", protect(h.ServerLogs))
	mux.Handle("GET /api/servers/{id}/logs/ws", protect(h.ServerLogsWS))
	mux.Handle("GET /api/servers/{id}/config", protect(h.ServerConfig))

	mux.Handle("GET /api/frpc/version", protect(h.FrpcVersion))
	mux.Handle("GET /api/frpc/latest", protect(h.FrpcLatest))
	mux.Handle("POST /api/frpc/install", protect(h.FrpcInstall))
	mux.Handle("POST /api/frpc/upload", protect(h.FrpcUpload))

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		io.WriteString(w, webIndexHTML)
	})

	return logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed for websocket upgrades behind the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start))
	})
}

func webJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func webErr(w http.ResponseWriter, code int, msg string) {
	webJSON(w, code, map[string]string{"error": msg})
}

// webFail maps err to a status code and writes it.
func webFail(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case isValidation(err):
		code = http.StatusBadRequest
	case errors.Is(err, ErrDuplicateProxy):
		code = http.StatusBadRequest
	case errors.Is(err, ErrServerNotFound), errors.Is(err, ErrProxyNotFound):
		code = http.StatusNotFound
	case errors.Is(err, ErrAlreadyRunning), errors.Is(err, ErrNotRunning),
		errors.Is(err, ErrFrpcNotInstalled), errors.Is(err, ErrAlreadySetup), errors.Is(err, ErrNotSetup):
		code = http.StatusConflict
	case errors.Is(err, ErrUnsupportedArchive), errors.Is(err, ErrBinaryNotInArchive):
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	webErr(w, code, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return invalid("request body", "is not valid JSON")
	}
	return nil
}

// --- Auth ---

func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	setup, err := h.auth.IsSetup(r.Context())
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]bool{
		"needSetup":     !setup,
		"frpcInstalled": h.versions.IsInstalled(),
	})
}

type passwordBody struct {
	Password string `json:"password"`
}

func (h *Handler) AuthSetup(w http.ResponseWriter, r *http.Request) {
	var body passwordBody
	if err := decodeBody(r, &body); err != nil || body.Password == "" {
		webErr(w, http.StatusBadRequest, "password is required")
		return
	}
	if err := h.auth.Setup(r.Context(), body.Password); err != nil {
		webFail(w, err)
		return
	}
	h.issueSession(w)
}

func (h *Handler) AuthLogin(w http.ResponseWriter, r *http.Request) {
	var body passwordBody
	if err := decodeBody(r, &body); err != nil || body.Password == "" {
		webErr(w, http.StatusBadRequest, "password is required")
		return
	}
	ok, err := h.auth.Verify(r.Context(), body.Password)
	if err != nil {
		webFail(w, err)
		return
	}
	if !ok {
		slog.Warn("failed login", "remote", r.RemoteAddr)
		webErr(w, http.StatusUnauthorized, "incorrect password")
		return
	}
	h.issueSession(w)
}

func (h *Handler) issueSession(w http.ResponseWriter) {
	token, err := h.auth.CreateSession()
	if err != nil {
		webFail(w, err)
		return
	}
	h.auth.setCookie(w, token)
	webJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) AuthLogout(w http.ResponseWriter, r *http.Request) {
	h.auth.Revoke(requestToken(r))
	clearCookie(w)
	webJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// --- Servers ---

func (h *Handler) view(s ServerProfile) ServerView {
	running, pid := h.procs.Status(s.ID)
	return ServerView{ServerProfile: s, Running: running, PID: pid}
}

func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.store.ListServers(r.Context())
	if err != nil {
		webFail(w, err)
		return
	}
	result := make([]ServerView, len(servers))
	for i, s := range servers {
		result[i] = h.view(s)
	}
	webJSON(w, http.StatusOK, result)
}

func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.store.GetServer(r.Context(), r.PathValue("id"))
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, h.view(*server))
}

func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var cfg ServerProfile
	if err := decodeBody(r, &cfg); err != nil {
		webFail(w, err)
		return
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		webFail(w, err)
		return
	}
	for i := range cfg.Proxies {
		cfg.Proxies[i].Normalize()
		if err := cfg.Proxies[i].Validate(); err != nil {
			webFail(w, err)
			return
		}
	}

	created, err := h.store.CreateServer(r.Context(), cfg)
	if err != nil {
		webFail(w, err)
		return
	}
	slog.Info("server created", "server", created.ID, "name", created.Name)
	webJSON(w, http.StatusCreated, map[string]string{"status": "created", "id": created.ID})
}

func (h *Handler) UpdateServer(w http.ResponseWriter, r *http.Request) {
	var cfg ServerProfile
	if err := decodeBody(r, &cfg); err != nil {
		webFail(w, err)
		return
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		webFail(w, err)
		return
	}
	if err := h.store.UpdateServer(r.Context(), r.PathValue("id"), cfg); err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.store.GetServer(r.Context(), id); err != nil {
		webFail(w, err)
		return
	}
	h.procs.Forget(id)
	if err := h.store.DeleteServer(r.Context(), id); err != nil {
		webFail(w, err)
		return
	}
	slog.Info("server deleted", "server", id)
	webJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Proxies ---

func (h *Handler) ListProxies(w http.ResponseWriter, r *http.Request) {
	server, err := h.store.GetServer(r.Context(), r.PathValue("id"))
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, server.Proxies)
}

func decodeProxy(r *http.Request) (ProxyRule, error) {
	var p ProxyRule
	if err := decodeBody(r, &p); err != nil {
		return p, err
	}
	p.Normalize()
	return p, p.Validate()
}

func (h *Handler) CreateProxy(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProxy(r)
	if err != nil {
		webFail(w, err)
		return
	}
	added, err := h.store.AddProxy(r.Context(), r.PathValue("id"), p)
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusCreated, map[string]string{"status": "created", "id": added.ID})
}

func (h *Handler) UpdateProxy(w http.ResponseWriter, r *http.Request) {
	p, err := decodeProxy(r)
	if err != nil {
		webFail(w, err)
		return
	}
	if err := h.store.UpdateProxy(r.Context(), r.PathValue("id"), r.PathValue("pid"), p); err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handler) DeleteProxy(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteProxy(r.Context(), r.PathValue("id"), r.PathValue("pid")); err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Process control ---

func (h *Handler) renderConfig(r *http.Request) (string, []byte, error) {
	id := r.PathValue("id")
	server, err := h.store.GetServer(r.Context(), id)
	if err != nil {
		return id, nil, err
	}
	conf, err := RenderFrpcConfig(server)
	return id, conf, err
}

func (h *Handler) StartServer(w http.ResponseWriter, r *http.Request) {
	id, conf, err := h.renderConfig(r)
	if err == nil {
		err = h.procs.Start(id, conf)
	}
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (h *Handler) RestartServer(w http.ResponseWriter, r *http.Request) {
	id, conf, err := h.renderConfig(r)
	if err == nil {
		err = h.procs.Restart(id, conf)
	}
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "restarted"})
}

// serverID returns the id path value once the profile is known to exist.
func (h *Handler) serverID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	_, err := h.store.GetServer(r.Context(), id)
	return id, err
}

func (h *Handler) StopServer(w http.ResponseWriter, r *http.Request) {
	id, err := h.serverID(r)
	if err == nil {
		err = h.procs.Stop(id)
	}
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) ServerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := h.serverID(r)
	if err != nil {
		webFail(w, err)
		return
	}
	running, pid := h.procs.Status(id)
	webJSON(w, http.StatusOK, map[string]any{"running": running, "pid": pid})
}

func (h *Handler) ServerLogs(w http.ResponseWriter, r *http.Request) {
	id, err := h.serverID(r)
	if err != nil {
		webFail(w, err)
		return
	}
	lines := h.cfg.Frpc.LogTailLines
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			webErr(w, http.StatusBadRequest, "lines must be a positive integer")
			return
		}
		lines = min(n, 10*h.cfg.Frpc.LogTailLines)
	}
	logs, err := h.procs.Logs(id, lines)
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"logs": logs})
}

func (h *Handler) ServerConfig(w http.ResponseWriter, r *http.Request) {
	_, conf, err := h.renderConfig(r)
	if err != nil {
		webFail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(conf)
}

// --- frpc binary ---

func (h *Handler) FrpcVersion(w http.ResponseWriter, r *http.Request) {
	installed := h.versions.IsInstalled()
	version := ""
	if installed {
		v, err := h.versions.CurrentVersion(r.Context())
		if err != nil {
			slog.Warn("frpc version probe failed", "error", err)
		}
		version = v
	}
	webJSON(w, http.StatusOK, map[string]any{"installed": installed, "version": version})
}

func (h *Handler) FrpcLatest(w http.ResponseWriter, r *http.Request) {
	release, err := h.versions.LatestRelease(r.Context())
	if err != nil {
		webErr(w, http.StatusBadGateway, err.Error())
		return
	}
	webJSON(w, http.StatusOK, map[string]string{
		"version": release.TagName,
		"asset":   h.versions.AssetName(release.TagName),
	})
}

func (h *Handler) FrpcInstall(w http.ResponseWriter, r *http.Request) {
	version, err := h.versions.InstallLatest(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoMatchingAsset) {
			webErr(w, http.StatusNotFound, err.Error())
			return
		}
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "installed", "version": version})
}

func (h *Handler) FrpcUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Web.UploadLimit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			webErr(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		webErr(w, http.StatusBadRequest, "file upload required")
		return
	}
	defer file.Close()

	slog.Info("installing frpc from upload", "file", header.Filename, "size", header.Size)
	version, err := h.versions.InstallFromArchive(r.Context(), file)
	if err != nil {
		webFail(w, err)
		return
	}
	webJSON(w, http.StatusOK, map[string]string{"status": "installed", "version": version})
}
