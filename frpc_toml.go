package main

import (
	"bytes"
	"fmt"

	toml "github.com/pelletier/go-toml/v2"
)

// frpcConfig mirrors the subset of frpc's TOML schema the panel writes.
type frpcConfig struct {
	ServerAddr string         `toml:"serverAddr"`
	ServerPort int            `toml:"serverPort"`
	User       string         `toml:"user,omitempty"`
	Auth       *frpcAuth      `toml:"auth,omitempty"`
	Transport  *frpcTransport `toml:"transport,omitempty"`
	Proxies    []frpcProxy    `toml:"proxies,omitempty"`
}

type frpcAuth struct {
	Method string `toml:"method"`
	Token  string `toml:"token"`
}

type frpcTransport struct {
	TLS frpcTLS `toml:"tls"`
}

type frpcTLS struct {
	Enable bool `toml:"enable"`
}

type frpcProxy struct {
	Name          string   `toml:"name"`
	Type          string   `toml:"type"`
	LocalIP       string   `toml:"localIP"`
	LocalPort     int      `toml:"localPort"`
	RemotePort    int      `toml:"remotePort,omitempty"`
	CustomDomains []string `toml:"customDomains,omitempty"`
	Subdomain     string   `toml:"subdomain,omitempty"`
}

const frpcConfigHeader = "# Auto-generated by frpc-panel. Edits are overwritten on the next start.\n\n"

// RenderFrpcConfig renders a profile as an frpc TOML config file.
func RenderFrpcConfig(s *ServerProfile) ([]byte, error) {
	cfg := frpcConfig{
		ServerAddr: s.ServerAddr,
		ServerPort: s.ServerPort,
		User:       s.User,
	}
	if s.AuthToken != "" {
		method := s.AuthMethod
		if method == "" {
			method = defaultAuthMethod
		}
		cfg.Auth = &frpcAuth{Method: method, Token: s.AuthToken}
	}
	if s.TLSEnable {
		cfg.Transport = &frpcTransport{TLS: frpcTLS{Enable: true}}
	}

	for _, p := range s.Proxies {
		fp := frpcProxy{
			Name:      p.Name,
			Type:      p.Type,
			LocalIP:   p.LocalIP,
			LocalPort: p.LocalPort,
		}
		if fp.LocalIP == "" {
			fp.LocalIP = defaultLocalIP
		}
		switch {
		case isL4(p.Type):
			fp.RemotePort = p.RemotePort
		case isL7(p.Type):
			fp.CustomDomains = p.CustomDomains
			fp.Subdomain = p.Subdomain
		}
		cfg.Proxies = append(cfg.Proxies, fp)
	}

	var buf bytes.Buffer
	buf.WriteString(frpcConfigHeader)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(false)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("render frpc config for %s: %w", s.ID, err)
	}
	return buf.Bytes(), nil
}
