package httpclient

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// LookupCookie returns the value of the cookie called name.
//
// Matching is exact first; if no cookie has exactly that name, the first
// cookie whose name matches case-insensitively wins (so both XSRF-TOKEN and
// xsrf-token are found). Values are percent-decoded when they decode cleanly,
// since backends commonly URL-encode the token. Empty values count as absent.
func LookupCookie(cookies []*http.Cookie, name string) (string, bool) {
	var fold *http.Cookie
	for _, c := range cookies {
		if c == nil || c.Value == "" {
			continue
		}
		if c.Name == name {
			return decodeCookieValue(c.Value), true
		}
		if fold == nil && strings.EqualFold(c.Name, name) {
			fold = c
		}
	}
	if fold != nil {
		return decodeCookieValue(fold.Value), true
	}
	return "", false
}

func decodeCookieValue(v string) string {
	if decoded, err := url.PathUnescape(v); err == nil {
		return decoded
	}
	return v
}

// ParseCookieHeader parses a raw Cookie header line ("a=1; b=2").
// Malformed pairs are skipped rather than failing the whole line.
func ParseCookieHeader(raw string) []*http.Cookie {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if parsed, err := http.ParseCookie(raw); err == nil {
		return parsed
	}

	var out []*http.Cookie
	for _, part := range strings.Split(raw, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: name, Value: strings.Trim(strings.TrimSpace(value), `"`)})
	}
	return out
}

// HeaderCookieStore is a CookieStore fed from raw Cookie header lines, for
// hosts that only see the cookie string (proxies, server-side rendering).
// It ignores URLs: every cookie is visible to every request.
type HeaderCookieStore struct {
	mu      sync.RWMutex
	cookies map[string]*http.Cookie
	order   []string
}

// NewHeaderCookieStore seeds a store from a raw Cookie header line.
func NewHeaderCookieStore(raw string) *HeaderCookieStore {
	s := &HeaderCookieStore{cookies: make(map[string]*http.Cookie)}
	s.SetCookies(nil, ParseCookieHeader(raw))
	return s
}

// SetCookies records cookies; a cookie with MaxAge < 0 is removed.
func (s *HeaderCookieStore) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if c.MaxAge < 0 {
			s.remove(c.Name)
			continue
		}
		if _, exists := s.cookies[c.Name]; !exists {
			s.order = append(s.order, c.Name)
		}
		cp := *c
		s.cookies[c.Name] = &cp
	}
}

func (s *HeaderCookieStore) remove(name string) {
	if _, ok := s.cookies[name]; !ok {
		return
	}
	delete(s.cookies, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Cookies returns every stored cookie in insertion order.
func (s *HeaderCookieStore) Cookies(_ *url.URL) []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*http.Cookie, 0, len(s.order))
	for _, name := range s.order {
		c := *s.cookies[name]
		out = append(out, &c)
	}
	return out
}

// Header renders the store as a Cookie header line.
func (s *HeaderCookieStore) Header() string {
	cookies := s.Cookies(nil)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
