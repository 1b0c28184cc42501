// Package identity implements the content identity gate: a stable fingerprint
// for uploaded bytes and the skip-vs-process decision shared by every adapter.
package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Fingerprint returns the lowercase hex SHA-256 of data.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Lookup reports whether any catalog entry already carries hash, regardless of path.
type Lookup interface {
	HashKnown(ctx context.Context, hash string) (bool, error)
}

// Locker serializes work on one content hash across workers (and, for
// database-backed lockers, across processes). The returned func releases the lock.
type Locker interface {
	LockHash(ctx context.Context, hash string) (func(), error)
}

// Decision is the outcome of a gate check. Release must be called once the
// caller has written the primary catalog entry for the object.
type Decision struct {
	Hash  string
	Known bool

	release func()
	once    sync.Once
}

// Release drops the hash lock, if one was taken. Safe to call more than once.
func (d *Decision) Release() {
	if d == nil || d.release == nil {
		return
	}
	d.once.Do(d.release)
}

// Gate combines a catalog lookup with an optional hash lock.
//
// Without a Locker, two workers seeing the same bytes under different paths
// can both observe "unknown" and both do the heavy work; unique constraints on
// the side tables keep the end state correct. With a Locker the second worker
// waits, then observes "known" and writes only a stub.
type Gate struct {
	lookup Lookup
	locker Locker
}

// NewGate builds a gate. If lookup also implements Locker, it is used.
func NewGate(lookup Lookup) *Gate {
	g := &Gate{lookup: lookup}
	if l, ok := lookup.(Locker); ok {
		g.locker = l
	}
	return g
}

// WithLocker overrides the lock used by the gate. A nil locker disables locking.
func (g *Gate) WithLocker(l Locker) *Gate {
	g.locker = l
	return g
}

// Check fingerprints data, takes the hash lock when available, and asks the
// catalog whether the content is already known.
func (g *Gate) Check(ctx context.Context, data []byte) (*Decision, error) {
	d := &Decision{Hash: Fingerprint(data)}

	if g.locker != nil {
		release, err := g.locker.LockHash(ctx, d.Hash)
		if err != nil {
			return nil, fmt.Errorf("lock content hash %s: %w", d.Hash, err)
		}
		d.release = release
	}

	known, err := g.lookup.HashKnown(ctx, d.Hash)
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("lookup content hash %s: %w", d.Hash, err)
	}
	d.Known = known
	return d, nil
}
