package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func TestBoltStoreSavesAndExpiresCookies(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		SessionTTL:      time.Hour,
		CleanupInterval: time.Second,
	}

	storeRaw, err := openBolt(filepath.Join(dir, "cookies.db"), opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	cookies, err := store.LoadCookies()
	if err != nil || len(cookies) != 0 {
		t.Fatalf("expected empty store, got %v err=%v", cookies, err)
	}

	if err := store.SaveCookie(Cookie{Host: "localhost", Name: "XSRF-TOKEN", Value: "t1", Path: "/", Expires: time.Now().Add(2 * time.Second)}); err != nil {
		t.Fatalf("SaveCookie: %v", err)
	}
	if err := store.SaveCookie(Cookie{Host: "localhost", Name: "laravel_session", Value: "s1", Path: "/"}); err != nil {
		t.Fatalf("SaveCookie session: %v", err)
	}
	// Same host and name overwrites.
	if err := store.SaveCookie(Cookie{Host: "LOCALHOST", Name: "XSRF-TOKEN", Value: "t2", Path: "/", Expires: time.Now().Add(2 * time.Second)}); err != nil {
		t.Fatalf("SaveCookie overwrite: %v", err)
	}

	cookies, err = store.LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies: %v", err)
	}
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.Name == "XSRF-TOKEN" && c.Value != "t2" {
			t.Fatalf("expected overwritten token, got %q", c.Value)
		}
	}

	// Move the clock past the persistent cookie's expiry; the session cookie
	// is still inside SessionTTL.
	store.now = func() time.Time { return time.Now().Add(5 * time.Second) }
	cookies, err = store.LoadCookies()
	if err != nil {
		t.Fatalf("LoadCookies after expiry: %v", err)
	}
	if len(cookies) != 1 || cookies[0].Name != "laravel_session" {
		t.Fatalf("expected only the session cookie to survive, got %+v", cookies)
	}

	// Session cookies expire after SessionTTL.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := store.maybeCleanupExpired(store.now()); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	store.now = time.Now
	cookies, err = store.LoadCookies()
	if err != nil || len(cookies) != 0 {
		t.Fatalf("expected cleanup to purge everything, got %+v err=%v", cookies, err)
	}
}

func TestBoltStoreDeleteCookie(t *testing.T) {
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "nested", "cookies.db"), Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	if err := store.SaveCookie(Cookie{Host: "api.example.com", Name: "a", Value: "1", Path: "/"}); err != nil {
		t.Fatalf("SaveCookie: %v", err)
	}
	if err := store.DeleteCookie("api.example.com", "a"); err != nil {
		t.Fatalf("DeleteCookie: %v", err)
	}
	cookies, err := store.LoadCookies()
	if err != nil || len(cookies) != 0 {
		t.Fatalf("expected cookie removed, got %+v err=%v", cookies, err)
	}

	if err := store.SaveCookie(Cookie{Name: "nohost"}); err == nil {
		t.Fatalf("expected error for cookie without host")
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore("none", "", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.SaveCookie(Cookie{Host: "h", Name: "x"}); err != nil {
		t.Fatalf("noop store SaveCookie: %v", err)
	}
	if _, err := NewStore("redis", "", Options{}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := NewStore("bbolt", " ", Options{}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestBoltStorePurgesAdjacentExpiredRecords(t *testing.T) {
	storeRaw, err := openBolt(filepath.Join(t.TempDir(), "cookies.db"), Options{SessionTTL: time.Hour, CleanupInterval: time.Hour})
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	expires := time.Now().Add(2 * time.Second)
	for i := 0; i < 6; i++ {
		c := Cookie{Host: "localhost", Name: fmt.Sprintf("c%d", i), Value: "v", Path: "/", Expires: expires}
		if err := store.SaveCookie(c); err != nil {
			t.Fatalf("SaveCookie %d: %v", i, err)
		}
	}

	store.now = func() time.Time { return time.Now().Add(time.Minute) }
	cookies, err := store.LoadCookies()
	if err != nil || len(cookies) != 0 {
		t.Fatalf("expected no live cookies, got %+v err=%v", cookies, err)
	}

	var left int
	err = store.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cookieBucket)).ForEach(func(_, _ []byte) error {
			left++
			return nil
		})
	})
	if err != nil {
		t.Fatalf("count records: %v", err)
	}
	if left != 0 {
		t.Fatalf("expected every expired record purged, %d left", left)
	}
}
