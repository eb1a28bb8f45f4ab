package main

import (
	"net"
	"strings"
)

// Proxy rule types understood by frpc.
const (
	ProxyTCP   = "tcp"
	ProxyUDP   = "udp"
	ProxyHTTP  = "http"
	ProxyHTTPS = "https"

	defaultLocalIP    = "127.0.0.1"
	defaultAuthMethod = "token"
)

// ServerProfile is one connection to a remote frps together with its proxy rules.
type ServerProfile struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	ServerAddr string      `json:"serverAddr"`
	ServerPort int         `json:"serverPort"`
	AuthToken  string      `json:"authToken,omitempty"`
	AuthMethod string      `json:"authMethod,omitempty"`
	User       string      `json:"user,omitempty"`
	TLSEnable  bool        `json:"tlsEnable,omitempty"`
	Proxies    []ProxyRule `json:"proxies"`
	CreatedAt  string      `json:"createdAt"`
	UpdatedAt  string      `json:"updatedAt"`
}

// ProxyRule is a single forwarding rule under a profile.
type ProxyRule struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	LocalIP       string   `json:"localIP"`
	LocalPort     int      `json:"localPort"`
	RemotePort    int      `json:"remotePort,omitempty"`
	CustomDomains []string `json:"customDomains,omitempty"`
	Subdomain     string   `json:"subdomain,omitempty"`
}

// ServerView is what the API returns for a profile: stored fields plus live process state.
type ServerView struct {
	ServerProfile
	Running bool `json:"running"`
	PID     int  `json:"pid"`
}

func isL4(t string) bool { return t == ProxyTCP || t == ProxyUDP }
func isL7(t string) bool { return t == ProxyHTTP || t == ProxyHTTPS }

func validPort(p int) bool { return p > 0 && p <= 65535 }

// Normalize trims user input and fills defaults.
func (s *ServerProfile) Normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.ServerAddr = strings.TrimSpace(s.ServerAddr)
	s.User = strings.TrimSpace(s.User)
	s.AuthMethod = strings.TrimSpace(s.AuthMethod)
	if s.AuthToken != "" && s.AuthMethod == "" {
		s.AuthMethod = defaultAuthMethod
	}
	if s.AuthToken == "" {
		s.AuthMethod = ""
	}
}

// Validate checks the fields a profile needs before it can be stored.
func (s *ServerProfile) Validate() error {
	if s.Name == "" {
		return invalid("name", "is required")
	}
	if s.ServerAddr == "" {
		return invalid("serverAddr", "is required")
	}
	if strings.ContainsAny(s.ServerAddr, " /") {
		return invalid("serverAddr", "must be a host name or IP address")
	}
	if !validPort(s.ServerPort) {
		return invalid("serverPort", "must be between 1 and 65535")
	}
	return nil
}

// Normalize trims input, applies the local IP default and drops fields that do not
// apply to the rule's type.
func (p *ProxyRule) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	p.LocalIP = strings.TrimSpace(p.LocalIP)
	if p.LocalIP == "" {
		p.LocalIP = defaultLocalIP
	}
	p.Subdomain = strings.TrimSpace(p.Subdomain)

	domains := p.CustomDomains[:0:0]
	for _, d := range p.CustomDomains {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	p.CustomDomains = domains

	switch {
	case isL4(p.Type):
		p.CustomDomains = nil
		p.Subdomain = ""
	case isL7(p.Type):
		p.RemotePort = 0
	}
	if len(p.CustomDomains) == 0 {
		p.CustomDomains = nil
	}
}

// Validate checks a normalized rule.
func (p *ProxyRule) Validate() error {
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if strings.ContainsAny(p.Name, "\"\n") {
		return invalid("name", "must not contain quotes or newlines")
	}
	if !isL4(p.Type) && !isL7(p.Type) {
		return invalid("type", "must be one of tcp, udp, http, https")
	}
	if net.ParseIP(p.LocalIP) == nil && strings.ContainsAny(p.LocalIP, " /") {
		return invalid("localIP", "must be an IP address or host name")
	}
	if !validPort(p.LocalPort) {
		return invalid("localPort", "must be between 1 and 65535")
	}
	if isL4(p.Type) && p.RemotePort != 0 && !validPort(p.RemotePort) {
		return invalid("remotePort", "must be between 1 and 65535")
	}
	if isL7(p.Type) && len(p.CustomDomains) == 0 && p.Subdomain == "" {
		return invalid("customDomains", "or subdomain is required for http/https")
	}
	return nil
}
