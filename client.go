package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// APIError is a non-2xx reply from the panel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.Status)
	}
	return e.Message
}

// IsUnauthorized reports whether err is a 401 from the panel.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// Client talks to the panel's REST API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 5 * time.Minute},
	}
}

func (c *Client) Token() string         { return c.token }
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api"+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.Unmarshal(data, &e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(data)
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

// AuthStatus is the unauthenticated bootstrap state of the panel.
type AuthStatus struct {
	NeedSetup     bool `json:"needSetup"`
	FrpcInstalled bool `json:"frpcInstalled"`
}

func (c *Client) AuthStatus(ctx context.Context) (*AuthStatus, error) {
	var s AuthStatus
	return &s, c.doJSON(ctx, http.MethodGet, "/auth/status", nil, &s)
}

func (c *Client) authenticate(ctx context.Context, path, password string) error {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, path, passwordBody{Password: password}, &res); err != nil {
		return err
	}
	c.token = res.Token
	return nil
}

// Setup sets the first admin password and keeps the returned session.
func (c *Client) Setup(ctx context.Context, password string) error {
	return c.authenticate(ctx, "/auth/setup", password)
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, password string) error {
	return c.authenticate(ctx, "/auth/login", password)
}

// Logout ends the session on the server and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.token = ""
	return err
}

func (c *Client) ListServers(ctx context.Context) ([]ServerView, error) {
	var servers []ServerView
	if err := c.doJSON(ctx, http.MethodGet, "/servers", nil, &servers); err != nil {
		return nil, err
	}
	return servers, nil
}

func (c *Client) GetServer(ctx context.Context, id string) (*ServerView, error) {
	var s ServerView
	return &s, c.doJSON(ctx, http.MethodGet, "/servers/"+url.PathEscape(id), nil, &s)
}

type createdReply struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// CreateServer returns the new profile's ID.
func (c *Client) CreateServer(ctx context.Context, s ServerProfile) (string, error) {
	var res createdReply
	if err := c.doJSON(ctx, http.MethodPost, "/servers", s, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) UpdateServer(ctx context.Context, id string, s ServerProfile) error {
	return c.doJSON(ctx, http.MethodPut, "/servers/"+url.PathEscape(id), s, nil)
}

func (c *Client) DeleteServer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/servers/"+url.PathEscape(id), nil, nil)
}

func proxiesPath(serverID string) string {
	return "/servers/" + url.PathEscape(serverID) + "/proxies"
}

// CreateProxy returns the new rule's ID.
func (c *Client) CreateProxy(ctx context.Context, serverID string, p ProxyRule) (string, error) {
	var res createdReply
	if err := c.doJSON(ctx, http.MethodPost, proxiesPath(serverID), p, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

func (c *Client) UpdateProxy(ctx context.Context, serverID, proxyID string, p ProxyRule) error {
	return c.doJSON(ctx, http.MethodPut, proxiesPath(serverID)+"/"+url.PathEscape(proxyID), p, nil)
}

func (c *Client) DeleteProxy(ctx context.Context, serverID, proxyID string) error {
	return c.doJSON(ctx, http.MethodDelete, proxiesPath(serverID)+"/"+url.PathEscape(proxyID), nil, nil)
}

// Control posts start, stop or restart for a profile.
func (c *Client) Control(ctx context.Context, serverID, action string) error {
	return c.doJSON(ctx, http.MethodPost, "/servers/"+url.PathEscape(serverID)+"/"+action, nil, nil)
}

type ProcessStatus struct {
	Running bool `json:"running"`
	PID     int  `json:"pid"`
}

func (c *Client) Status(ctx context.Context, serverID string) (*ProcessStatus, error) {
	var s ProcessStatus
	return &s, c.doJSON(ctx, http.MethodGet, "/servers/"+url.PathEscape(serverID)+"/status", nil, &s)
}

// Logs returns the last lines of a profile's frpc log; lines <= 0 uses the server default.
func (c *Client) Logs(ctx context.Context, serverID string, lines int) (string, error) {
	path := "/servers/" + url.PathEscape(serverID) + "/logs"
	if lines > 0 {
		path += fmt.Sprintf("?lines=%d", lines)
	}
	var res struct {
		Logs string `json:"logs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &res); err != nil {
		return "", err
	}
	return res.Logs, nil
}

// Config returns the rendered frpc TOML of a profile.
func (c *Client) Config(ctx context.Context, serverID string) (string, error) {
	var conf string
	if err := c.do(ctx, http.MethodGet, "/servers/"+url.PathEscape(serverID)+"/config", nil, "", &conf); err != nil {
		return "", err
	}
	return conf, nil
}

type FrpcVersionInfo struct {
	Installed bool   `json:"installed"`
	Version   string `json:"version"`
}

func (c *Client) FrpcVersion(ctx context.Context) (*FrpcVersionInfo, error) {
	var v FrpcVersionInfo
	return &v, c.doJSON(ctx, http.MethodGet, "/frpc/version", nil, &v)
}

// FrpcLatest returns the latest release tag.
func (c *Client) FrpcLatest(ctx context.Context) (string, error) {
	var res struct {
		Version string `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/frpc/latest", nil, &res); err != nil {
		return "", err
	}
	return res.Version, nil
}

type installReply struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// FrpcInstall asks the panel to download and install the latest frpc.
func (c *Client) FrpcInstall(ctx context.Context) (string, error) {
	var res installReply
	if err := c.doJSON(ctx, http.MethodPost, "/frpc/install", nil, &res); err != nil {
		return "", err
	}
	return res.Version, nil
}

// FrpcUpload sends a release archive from disk for installation.
func (c *Client) FrpcUpload(ctx context.Context, archive string) (string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return "", err
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(archive))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	var res installReply
	err = c.do(ctx, http.MethodPost, "/frpc/upload", pr, mw.FormDataContentType(), &res)
	pr.Close()
	if err != nil {
		return "", err
	}
	return res.Version, nil
}

// FollowLogs streams a profile's log over the websocket endpoint and calls fn for
// every chunk until ctx is done or the server closes the stream.
func (c *Client) FollowLogs(ctx context.Context, serverID string, fn func(string)) error {
	u, err := url.Parse(c.base + "/api/servers/" + url.PathEscape(serverID) + "/logs/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	if c.token != "" {
		header.Set(authHeader, c.token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		fn(string(data))
	}
}
