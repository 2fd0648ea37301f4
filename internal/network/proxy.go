// File: internal/network/proxy.go
package network

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/xkilldash9x/billfetch-cli/internal/config"
)

// ProxySettings is the normalized view of an upstream proxy. The browser
// driver consumes Server (plus credentials via an auth challenge handler),
// while the HTTP client consumes the authenticated URL form.
type ProxySettings struct {
	Server   string
	Username string
	Password string
}

// ResolveProxy normalizes the proxy configuration. A nil result means no
// proxy is configured and all dependent code must dial directly.
func ResolveProxy(cfg config.ProxyConfig) (*ProxySettings, error) {
	server := strings.TrimSpace(cfg.Server)
	if server == "" {
		if cfg.Username != "" || cfg.Password != "" {
			return nil, fmt.Errorf("proxy credentials provided without a proxy server")
		}
		return nil, nil
	}

	settings := &ProxySettings{
		Server:   server,
		Username: cfg.Username,
		Password: cfg.Password,
	}

	// Validate early so a malformed server fails at startup, not mid-run.
	if _, err := settings.URL(); err != nil {
		return nil, err
	}
	return settings, nil
}

// HasCredentials reports whether the proxy requires authentication.
func (p *ProxySettings) HasCredentials() bool {
	return p != nil && p.Username != ""
}

// URL returns the proxy as a single URL suitable for http.Transport.Proxy.
// Credentials, when present, are embedded as userinfo; a server without a
// scheme is assumed to be plain HTTP.
func (p *ProxySettings) URL() (*url.URL, error) {
	raw := p.Server
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy server %q: %w", p.Server, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid proxy server %q: missing host", p.Server)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q (only http/https supported)", u.Scheme)
	}

	if p.Username != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.Username, p.Password)
		} else {
			u.User = url.User(p.Username)
		}
	}
	return u, nil
}

// String renders the authenticated URL form, masking nothing; callers must
// not log this value directly.
func (p *ProxySettings) String() string {
	u, err := p.URL()
	if err != nil {
		return p.Server
	}
	return u.String()
}
