package storage

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/Adda-Baaj/griha/internal/logger"
	"golang.org/x/net/publicsuffix"
)

// Jar is an http.CookieJar that mirrors every cookie into a Store so the
// session survives process restarts.
type Jar struct {
	jar   *cookiejar.Jar
	store Store
	log   logger.Logger
	now   func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

// NewJar builds a jar with public-suffix domain rules and restores the
// cookies persisted in store.
func NewJar(store Store, log logger.Logger) (*Jar, error) {
	if store == nil {
		store = noopStore{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	inner, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	j := &Jar{jar: inner, store: store, log: log, now: time.Now}
	if err := j.restore(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Jar) restore() error {
	cookies, err := j.store.LoadCookies()
	if err != nil {
		return fmt.Errorf("load persisted cookies: %w", err)
	}
	for _, c := range cookies {
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: c.Host, Path: c.Path}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if !c.Session() {
			hc.Expires = c.Expires
		}
		j.jar.SetCookies(u, []*http.Cookie{hc})
	}
	if len(cookies) > 0 {
		j.log.DebugObj("restored persisted cookies", "cookie_restore", map[string]any{
			"count": len(cookies),
		})
	}
	return nil
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// SetCookies implements http.CookieJar and writes the cookies through to the
// store. Persistence failures are logged; the in-memory jar stays authoritative.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	if u == nil {
		return
	}

	host := u.Hostname()
	now := j.now()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}

		var err error
		expires, keep := cookieExpiry(c, now)
		if !keep {
			err = j.store.DeleteCookie(host, c.Name)
		} else {
			err = j.store.SaveCookie(Cookie{
				Host:     host,
				Name:     c.Name,
				Value:    c.Value,
				Path:     cookiePath(c, u),
				Domain:   c.Domain,
				Secure:   c.Secure,
				HttpOnly: c.HttpOnly,
				Expires:  expires,
			})
		}
		if err != nil {
			j.log.WarnObj("persist cookie failed", "cookie_persist", map[string]any{
				"host":  host,
				"name":  c.Name,
				"error": err.Error(),
			})
		}
	}
}

// cookieExpiry resolves Max-Age and Expires into an absolute expiry (zero for
// session cookies). keep is false when the cookie deletes itself.
func cookieExpiry(c *http.Cookie, now time.Time) (time.Time, bool) {
	switch {
	case c.MaxAge < 0:
		return time.Time{}, false
	case c.MaxAge > 0:
		return now.Add(time.Duration(c.MaxAge) * time.Second), true
	case c.Expires.IsZero():
		return time.Time{}, true
	case !c.Expires.After(now):
		return time.Time{}, false
	default:
		return c.Expires, true
	}
}

// cookiePath mirrors the jar's default-path rule for cookies without a Path.
func cookiePath(c *http.Cookie, u *url.URL) string {
	if c.Path != "" && strings.HasPrefix(c.Path, "/") {
		return c.Path
	}
	dir := u.Path
	if dir == "" || dir[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(dir, "/")
	if i == 0 {
		return "/"
	}
	return dir[:i]
}
