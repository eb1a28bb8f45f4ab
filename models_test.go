package main

import (
	"errors"
	"reflect"
	"testing"
)

func TestProxyRuleNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ProxyRule
		want ProxyRule
	}{
		{
			name: "tcp drops l7 fields",
			in: ProxyRule{Name: " ssh ", Type: "TCP", LocalPort: 22, RemotePort: 6000,
				CustomDomains: []string{"a.example.com"}, Subdomain: "x"},
			want: ProxyRule{Name: "ssh", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 22, RemotePort: 6000},
		},
		{
			name: "http drops remote port and blank domains",
			in: ProxyRule{Name: "web", Type: "http", LocalIP: " 10.0.0.2 ", LocalPort: 80, RemotePort: 8080,
				CustomDomains: []string{" a.example.com ", "", "  "}},
			want: ProxyRule{Name: "web", Type: "http", LocalIP: "10.0.0.2", LocalPort: 80,
				CustomDomains: []string{"a.example.com"}},
		},
		{
			name: "https with only blank domains",
			in:   ProxyRule{Name: "web", Type: "https", LocalPort: 443, CustomDomains: []string{""}, Subdomain: " app "},
			want: ProxyRule{Name: "web", Type: "https", LocalIP: "127.0.0.1", LocalPort: 443, Subdomain: "app"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			got.Normalize()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProxyRuleNormalizeDoesNotAliasInput(t *testing.T) {
	domains := []string{" a.example.com ", "b.example.com"}
	p := ProxyRule{Name: "web", Type: "http", LocalPort: 80, CustomDomains: domains}
	p.Normalize()
	if domains[0] != " a.example.com " {
		t.Errorf("caller slice modified: %q", domains[0])
	}
}

func TestProxyRuleValidate(t *testing.T) {
	valid := ProxyRule{Name: "ssh", Type: "tcp", LocalIP: "127.0.0.1", LocalPort: 22}
	tests := []struct {
		name  string
		edit  func(p *ProxyRule)
		field string
	}{
		{"valid tcp", func(p *ProxyRule) {}, ""},
		{"tcp auto remote port", func(p *ProxyRule) { p.RemotePort = 0 }, ""},
		{"missing name", func(p *ProxyRule) { p.Name = "" }, "name"},
		{"quote in name", func(p *ProxyRule) { p.Name = `a"b` }, "name"},
		{"unknown type", func(p *ProxyRule) { p.Type = "stcp" }, "type"},
		{"local port zero", func(p *ProxyRule) { p.LocalPort = 0 }, "localPort"},
		{"local port too big", func(p *ProxyRule) { p.LocalPort = 70000 }, "localPort"},
		{"remote port too big", func(p *ProxyRule) { p.RemotePort = 65536 }, "remotePort"},
		{"bad local ip", func(p *ProxyRule) { p.LocalIP = "a b" }, "localIP"},
		{"http without domain", func(p *ProxyRule) { p.Type = "http" }, "customDomains"},
		{"http with subdomain", func(p *ProxyRule) { p.Type = "http"; p.Subdomain = "app" }, ""},
		{"https with domain", func(p *ProxyRule) { p.Type = "https"; p.CustomDomains = []string{"a.example.com"} }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.edit(&p)
			err := p.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestServerProfileNormalize(t *testing.T) {
	s := ServerProfile{Name: " home ", ServerAddr: " frps.example.com ", ServerPort: 7000, AuthToken: "secret"}
	s.Normalize()
	if s.Name != "home" || s.ServerAddr != "frps.example.com" {
		t.Errorf("not trimmed: %+v", s)
	}
	if s.AuthMethod != "token" {
		t.Errorf("AuthMethod = %q, want token", s.AuthMethod)
	}

	s = ServerProfile{Name: "x", ServerAddr: "h", ServerPort: 1, AuthMethod: "oidc"}
	s.Normalize()
	if s.AuthMethod != "" {
		t.Errorf("AuthMethod without token = %q, want empty", s.AuthMethod)
	}
}

func TestServerProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile ServerProfile
		field   string
	}{
		{"valid", ServerProfile{Name: "a", ServerAddr: "1.2.3.4", ServerPort: 7000}, ""},
		{"missing name", ServerProfile{ServerAddr: "h", ServerPort: 7000}, "name"},
		{"missing addr", ServerProfile{Name: "a", ServerPort: 7000}, "serverAddr"},
		{"url as addr", ServerProfile{Name: "a", ServerAddr: "http://h", ServerPort: 7000}, "serverAddr"},
		{"port zero", ServerProfile{Name: "a", ServerAddr: "h"}, "serverPort"},
		{"port too big", ServerProfile{Name: "a", ServerAddr: "h", ServerPort: 65536}, "serverPort"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Fatalf("Validate() = %v, want error on %q", err, tt.field)
			}
		})
	}
}
