// Package routes decides which frontend pages require a session and where
// unauthenticated visitors are sent.
package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLoginPath = "/login"

// DefaultProtectedPrefixes are the page prefixes that need an authenticated session.
var DefaultProtectedPrefixes = []string{"/portal", "/bookings"}

// Policy is the protected-route allow-list plus the login page location.
type Policy struct {
	LoginPath         string   `json:"login_path" yaml:"login_path"`
	ProtectedPrefixes []string `json:"protected_prefixes" yaml:"protected_prefixes"`
}

// DefaultPolicy returns the built-in policy.
func DefaultPolicy() Policy {
	return Policy{
		LoginPath:         DefaultLoginPath,
		ProtectedPrefixes: append([]string(nil), DefaultProtectedPrefixes...),
	}
}

// Protected reports whether the page at current (path, optionally with a
// query) sits under a protected prefix. Prefixes match whole path segments:
// /portal covers /portal and /portal/x but not /portals. The login page is
// never protected.
func (p Policy) Protected(current string) bool {
	path := pathOf(current)
	if path == "" || p.IsLoginPage(path) {
		return false
	}
	for _, prefix := range p.ProtectedPrefixes {
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// IsLoginPage reports whether current is the login page.
func (p Policy) IsLoginPage(current string) bool {
	login := p.loginPath()
	path := pathOf(current)
	return path == login || strings.HasPrefix(path, login+"/")
}

// LoginURL builds the login target that returns the user to current afterwards.
func (p Policy) LoginURL(current string) string {
	return p.loginPath() + "?redirect=" + url.QueryEscape(current)
}

func (p Policy) loginPath() string {
	if p.LoginPath == "" {
		return DefaultLoginPath
	}
	return p.LoginPath
}

func pathOf(current string) string {
	current = strings.TrimSpace(current)
	if i := strings.IndexAny(current, "?#"); i >= 0 {
		current = current[:i]
	}
	if len(current) > 1 {
		current = strings.TrimRight(current, "/")
	}
	return current
}

// LoadPolicy reads a policy from a YAML or JSON file.
func LoadPolicy(path string) (Policy, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Policy{}, errors.New("routes file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return Policy{}, fmt.Errorf("open routes file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return Policy{}, fmt.Errorf("read routes file: %w", err)
	}

	policy, err := parsePolicy(raw, filepath.Ext(path))
	if err != nil {
		return Policy{}, err
	}
	policy = sanitizePolicy(policy)
	if err := validatePolicy(policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

type unmarshalFn func([]byte, any) error

func parsePolicy(data []byte, ext string) (Policy, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var p Policy
		if err := d.fn(data, &p); err == nil {
			return p, nil
		}
	}

	return Policy{}, errors.New("routes file format not recognized (expected YAML or JSON)")
}

func sanitizePolicy(p Policy) Policy {
	p.LoginPath = normalizePrefix(p.LoginPath)
	if p.LoginPath == "" {
		p.LoginPath = DefaultLoginPath
	}

	seen := make(map[string]struct{}, len(p.ProtectedPrefixes))
	prefixes := make([]string, 0, len(p.ProtectedPrefixes))
	for _, raw := range p.ProtectedPrefixes {
		prefix := normalizePrefix(raw)
		if prefix == "" {
			continue
		}
		if _, dup := seen[prefix]; dup {
			continue
		}
		seen[prefix] = struct{}{}
		prefixes = append(prefixes, prefix)
	}
	p.ProtectedPrefixes = prefixes
	return p
}

func normalizePrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "/") {
		raw = "/" + raw
	}
	if len(raw) > 1 {
		raw = strings.TrimRight(raw, "/")
	}
	return raw
}

func validatePolicy(p Policy) error {
	for _, prefix := range p.ProtectedPrefixes {
		if prefix == "/" {
			return errors.New("protected prefix \"/\" would protect the login page")
		}
		if prefix == p.LoginPath {
			return fmt.Errorf("login path %q cannot be protected", p.LoginPath)
		}
	}
	return nil
}
