// Package storage persists the session's cookies between CLI runs.
package storage

import (
	"fmt"
	"strings"
	"time"
)

// Cookie is a persisted cookie. Expires is zero for session cookies.
type Cookie struct {
	Host     string    `json:"host"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Domain   string    `json:"domain,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
}

// Session reports whether the cookie lives only as long as the browsing session.
func (c Cookie) Session() bool { return c.Expires.IsZero() }

// Store keeps one cookie per (host, name).
type Store interface {
	Close() error
	LoadCookies() ([]Cookie, error)
	SaveCookie(c Cookie) error
	DeleteCookie(host, name string) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	// SessionTTL bounds how long a session cookie survives on disk.
	SessionTTL      time.Duration
	CleanupInterval time.Duration
}

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                      { return nil }
func (noopStore) LoadCookies() ([]Cookie, error)    { return nil, nil }
func (noopStore) SaveCookie(Cookie) error           { return nil }
func (noopStore) DeleteCookie(string, string) error { return nil }
