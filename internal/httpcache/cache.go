// Package httpcache is a disk-backed cache for metadata and advisory
// lookups, keyed by an arbitrary string (a package name, or a
// package+version pair). It exists so repeated audits of the same project
// don't re-fetch the same PyPI JSON or OSV query every run.
//
// The on-disk format is a single bbolt database, following the same
// pattern golang-dep's source manager cache uses for memoizing repository
// metadata: one bucket, JSON-encoded values, opened once per process. A
// flock-based lock file guards the cache directory against concurrent
// writers from two audit processes racing on the same cache.
package httpcache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"
	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("entries")

// Cache is an open disk-backed cache. The zero value is not usable; build
// one with Open.
type Cache struct {
	db   *bolt.DB
	lock *flock.Flock
}

// Open opens (creating if necessary) a cache rooted at dir. It takes an
// exclusive advisory lock on the directory for the lifetime of the
// returned Cache; Close releases it.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create cache dir %q", dir)
	}

	lk := flock.New(filepath.Join(dir, ".lock"))
	locked, err := lk.TryLock()
	if err != nil {
		return nil, errors.Wrapf(err, "lock cache dir %q", dir)
	}
	if !locked {
		return nil, errors.Errorf("cache dir %q is locked by another process", dir)
	}

	db, err := bolt.Open(filepath.Join(dir, "cache.db"), 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		_ = lk.Unlock()
		return nil, errors.Wrapf(err, "open cache database in %q", dir)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		_ = lk.Unlock()
		return nil, errors.Wrap(err, "initialize cache bucket")
	}

	return &Cache{db: db, lock: lk}, nil
}

// Get looks up key and, if present, unmarshals its JSON value into dest.
// The bool return reports whether key was found at all.
func (c *Cache) Get(key string, dest interface{}) (bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "read cache key %q", key)
	}
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, errors.Wrapf(err, "decode cached value for %q", key)
	}
	return true, nil
}

// Set stores value under key, JSON-encoded, overwriting any prior entry.
func (c *Cache) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode value for cache key %q", key)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), raw)
	})
}

// Close closes the underlying database and releases the directory lock.
func (c *Cache) Close() error {
	dbErr := c.db.Close()
	lockErr := c.lock.Unlock()
	if dbErr != nil {
		return errors.Wrap(dbErr, "close cache database")
	}
	if lockErr != nil {
		return errors.Wrap(lockErr, "unlock cache directory")
	}
	return nil
}
