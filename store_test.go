package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "panel.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testProfile(name string) ServerProfile {
	return ServerProfile{Name: name, ServerAddr: "frps.example.com", ServerPort: 7000}
}

func proxyNames(proxies []ProxyRule) []string {
	names := make([]string, len(proxies))
	for i, p := range proxies {
		names[i] = p.Name
	}
	return names
}

func TestStoreServerCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.CreateServer(ctx, ServerProfile{
		Name: "home", ServerAddr: "frps.example.com", ServerPort: 7000, AuthToken: "t", AuthMethod: "token",
		Proxies: []ProxyRule{{Name: "ssh", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 22}},
	})
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	if created.ID == "" || created.CreatedAt == "" || created.CreatedAt != created.UpdatedAt {
		t.Errorf("created = %+v", created)
	}
	if len(created.Proxies) != 1 || created.Proxies[0].ID == "" {
		t.Fatalf("created proxies = %+v", created.Proxies)
	}

	got, err := s.GetServer(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if got.Name != "home" || got.AuthMethod != "token" || len(got.Proxies) != 1 {
		t.Errorf("GetServer = %+v", got)
	}

	update := testProfile("renamed")
	update.TLSEnable = true
	if err := s.UpdateServer(ctx, created.ID, update); err != nil {
		t.Fatalf("UpdateServer: %v", err)
	}
	got, _ = s.GetServer(ctx, created.ID)
	if got.Name != "renamed" || !got.TLSEnable || got.CreatedAt != created.CreatedAt {
		t.Errorf("after update = %+v", got)
	}
	if len(got.Proxies) != 1 {
		t.Errorf("update dropped proxies: %+v", got.Proxies)
	}

	list, err := s.ListServers(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListServers = %v, %v", list, err)
	}

	if err := s.DeleteServer(ctx, created.ID); err != nil {
		t.Fatalf("DeleteServer: %v", err)
	}
	if _, err := s.GetServer(ctx, created.ID); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("GetServer after delete = %v, want ErrServerNotFound", err)
	}
	proxies, err := s.ListProxies(ctx, created.ID)
	if err != nil || len(proxies) != 0 {
		t.Errorf("proxies survived delete: %v, %v", proxies, err)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.UpdateServer(ctx, "nope", testProfile("x")); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("UpdateServer = %v", err)
	}
	if err := s.DeleteServer(ctx, "nope"); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("DeleteServer = %v", err)
	}
	if _, err := s.AddProxy(ctx, "nope", ProxyRule{Name: "a", Type: "tcp", LocalPort: 1}); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("AddProxy = %v", err)
	}

	created, err := s.CreateServer(ctx, testProfile("a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateProxy(ctx, created.ID, "nope", ProxyRule{Name: "a"}); !errors.Is(err, ErrProxyNotFound) {
		t.Errorf("UpdateProxy = %v", err)
	}
	if err := s.DeleteProxy(ctx, created.ID, "nope"); !errors.Is(err, ErrProxyNotFound) {
		t.Errorf("DeleteProxy = %v", err)
	}
}

func TestStoreProxyOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	server, err := s.CreateServer(ctx, testProfile("a"))
	if err != nil {
		t.Fatal(err)
	}

	ids := map[string]string{}
	for _, name := range []string{"p1", "p2", "p3", "p4"} {
		p, err := s.AddProxy(ctx, server.ID, ProxyRule{Name: name, Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 80})
		if err != nil {
			t.Fatalf("AddProxy %s: %v", name, err)
		}
		ids[name] = p.ID
	}

	if err := s.DeleteProxy(ctx, server.ID, ids["p2"]); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateProxy(ctx, server.ID, ids["p3"], ProxyRule{Name: "p3b", Type: "udp", LocalIP: "127.0.0.1", LocalPort: 53}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddProxy(ctx, server.ID, ProxyRule{Name: "p5", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 80}); err != nil {
		t.Fatal(err)
	}

	proxies, err := s.ListProxies(ctx, server.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"p1", "p3b", "p4", "p5"}
	got := proxyNames(proxies)
	if len(got) != len(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if proxies[1].ID != ids["p3"] || proxies[1].Type != "udp" {
		t.Errorf("update changed ID or lost fields: %+v", proxies[1])
	}
}

func TestStoreDuplicateProxyName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, _ := s.CreateServer(ctx, testProfile("a"))
	b, _ := s.CreateServer(ctx, testProfile("b"))

	rule := ProxyRule{Name: "ssh", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 22}
	first, err := s.AddProxy(ctx, a.ID, rule)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddProxy(ctx, a.ID, rule); !errors.Is(err, ErrDuplicateProxy) {
		t.Errorf("second AddProxy = %v, want ErrDuplicateProxy", err)
	}
	if _, err := s.AddProxy(ctx, b.ID, rule); err != nil {
		t.Errorf("same name on another server: %v", err)
	}

	other, _ := s.AddProxy(ctx, a.ID, ProxyRule{Name: "web", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 80})
	if err := s.UpdateProxy(ctx, a.ID, other.ID, rule); !errors.Is(err, ErrDuplicateProxy) {
		t.Errorf("rename onto existing = %v, want ErrDuplicateProxy", err)
	}
	if err := s.UpdateProxy(ctx, a.ID, first.ID, rule); err != nil {
		t.Errorf("update keeping own name: %v", err)
	}
}

func TestStoreCustomDomains(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	server, _ := s.CreateServer(ctx, testProfile("a"))

	_, err := s.AddProxy(ctx, server.ID, ProxyRule{Name: "web", Type: "http", LocalIP: "127.0.0.1", LocalPort: 80,
		CustomDomains: []string{"a.example.com", "b.example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	proxies, _ := s.ListProxies(ctx, server.ID)
	if len(proxies[0].CustomDomains) != 2 || proxies[0].CustomDomains[1] != "b.example.com" {
		t.Errorf("domains = %v", proxies[0].CustomDomains)
	}
}

func TestStoreSettings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.GetSetting(ctx, "k"); ok || err != nil {
		t.Fatalf("GetSetting on empty = %v, %v", ok, err)
	}
	written, err := s.SetSettingIfAbsent(ctx, "k", "v1")
	if err != nil || !written {
		t.Fatalf("SetSettingIfAbsent = %v, %v", written, err)
	}
	written, err = s.SetSettingIfAbsent(ctx, "k", "v2")
	if err != nil || written {
		t.Fatalf("second SetSettingIfAbsent = %v, %v", written, err)
	}
	if err := s.SetSetting(ctx, "k", "v3"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.GetSetting(ctx, "k"); !ok || v != "v3" {
		t.Errorf("GetSetting = %q, %v", v, ok)
	}
}

func TestStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "panel.db")

	s, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	created, err := s.CreateServer(ctx, testProfile("kept"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetServer(ctx, created.ID)
	if err != nil || got.Name != "kept" {
		t.Errorf("after reopen = %+v, %v", got, err)
	}
}
