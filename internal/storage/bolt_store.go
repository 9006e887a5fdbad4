package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	cookieBucket     = "cookies"
	expiryValueBytes = 8
	keySeparator     = "\x00"
)

// boltStore implements a Store backed by BoltDB. Each value is an 8-byte
// big-endian expiry (unix seconds) followed by the JSON-encoded cookie.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	sessionTTL      time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cookieBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		sessionTTL:      opts.SessionTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// LoadCookies returns every unexpired cookie, dropping expired records on the way.
func (b *boltStore) LoadCookies() ([]Cookie, error) {
	if b == nil || b.db == nil {
		return nil, nil
	}

	now := b.now()
	var out []Cookie
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			cookie, expiry, ok := decodeRecord(v)
			if !ok || !expiry.After(now) {
				expired = append(expired, append([]byte(nil), k...))
				continue
			}
			out = append(out, cookie)
		}
		return deleteKeys(bucket, expired)
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return out, err
}

// SaveCookie upserts the cookie keyed by host and name.
func (b *boltStore) SaveCookie(c Cookie) error {
	if b == nil || b.db == nil {
		return nil
	}
	if c.Host == "" || c.Name == "" {
		return fmt.Errorf("cookie requires host and name")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	expiry := c.Expires
	if c.Session() {
		expiry = now.Add(b.sessionTTL)
	}
	if !expiry.After(now) {
		return b.DeleteCookie(c.Host, c.Name)
	}

	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cookie: %w", err)
	}
	value := make([]byte, expiryValueBytes, expiryValueBytes+len(payload))
	binary.BigEndian.PutUint64(value, uint64(expiry.Unix()))
	value = append(value, payload...)

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}
		return bucket.Put(cookieKey(c.Host, c.Name), value)
	})
}

// DeleteCookie removes the record for host and name, if any.
func (b *boltStore) DeleteCookie(host, name string) error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}
		return bucket.Delete(cookieKey(host, name))
	})
}

// maybeCleanupExpired removes expired cookies on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(cookieBucket))
		if bucket == nil {
			return fmt.Errorf("cookie bucket missing")
		}

		var expired [][]byte
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, ok := decodeExpiry(v)
			if !ok || !expiry.After(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
		}
		return deleteKeys(bucket, expired)
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func cookieKey(host, name string) []byte {
	return []byte(strings.ToLower(host) + keySeparator + name)
}

func decodeRecord(value []byte) (Cookie, time.Time, bool) {
	expiry, ok := decodeExpiry(value)
	if !ok {
		return Cookie{}, time.Time{}, false
	}
	var c Cookie
	if err := json.Unmarshal(value[expiryValueBytes:], &c); err != nil {
		return Cookie{}, time.Time{}, false
	}
	return c, expiry, true
}

// decodeExpiry decodes the expiry prefix of a stored record.
func decodeExpiry(value []byte) (time.Time, bool) {
	if len(value) < expiryValueBytes {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:expiryValueBytes]))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// deleteKeys removes keys after a scan; deleting under a live cursor skips records.
func deleteKeys(bucket *bolt.Bucket, keys [][]byte) error {
	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
