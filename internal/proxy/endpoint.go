package proxy

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var ErrBadEndpoint = errors.New("invalid proxy endpoint")

// Endpoint describes one outbound proxy. It is a plain comparable value:
// two endpoints are the same proxy iff every field matches.
type Endpoint struct {
	Scheme   string
	Host     string
	Port     int
	Username string
	Password string
}

// Parse accepts the line formats found in proxies.txt:
//
//	host:port
//	host:port:user:pass
//	user:pass@host:port
//	scheme://[user:pass@]host:port
func Parse(s string) (Endpoint, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Endpoint{}, fmt.Errorf("%w: empty line", ErrBadEndpoint)
	}
	if strings.Contains(s, "://") {
		return parseURL(s)
	}
	if strings.Contains(s, "@") {
		return parseURL("http://" + s)
	}

	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return build("http", parts[0], parts[1], "", "", s)
	case 4:
		return build("http", parts[0], parts[1], parts[2], parts[3], s)
	}
	return Endpoint{}, fmt.Errorf("%w: %q", ErrBadEndpoint, s)
}

// ParseList parses every non-empty line, failing on the first bad one.
func ParseList(lines []string) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ep, err := Parse(l)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		out = append(out, ep)
	}
	return out, nil
}

func parseURL(s string) (Endpoint, error) {
	u, err := url.Parse(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrBadEndpoint, err)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrBadEndpoint, err)
	}
	user, pass := "", ""
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
	}
	return build(strings.ToLower(u.Scheme), host, port, user, pass, s)
}

func build(scheme, host, port, user, pass, raw string) (Endpoint, error) {
	switch scheme {
	case "http", "https", "socks5":
	default:
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q", ErrBadEndpoint, scheme)
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", ErrBadEndpoint, raw)
	}
	p, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil || p <= 0 || p > 65535 {
		return Endpoint{}, fmt.Errorf("%w: bad port in %q", ErrBadEndpoint, raw)
	}
	return Endpoint{Scheme: scheme, Host: host, Port: p, Username: user, Password: pass}, nil
}

// URL returns the endpoint as a proxy URL usable with http.ProxyURL.
func (e Endpoint) URL() *url.URL {
	u := &url.URL{Scheme: e.Scheme, Host: net.JoinHostPort(e.Host, strconv.Itoa(e.Port))}
	if e.Username != "" || e.Password != "" {
		u.User = url.UserPassword(e.Username, e.Password)
	}
	return u
}

// String hides the password so endpoints can be logged.
func (e Endpoint) String() string {
	hp := net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	if e.Username == "" {
		return e.Scheme + "://" + hp
	}
	return e.Scheme + "://" + e.Username + ":***@" + hp
}
