package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeLookup is an in-memory catalog of known hashes.
type fakeLookup struct {
	mu    sync.Mutex
	known map[string]bool
	err   error
	calls int
}

func (f *fakeLookup) HashKnown(_ context.Context, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.known[hash], f.err
}

func (f *fakeLookup) add(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.known[hash] = true
}

// lockingLookup also implements Locker so NewGate picks it up.
type lockingLookup struct {
	fakeLookup
	*LocalLocker
}

// TestFingerprint verifies the digest is deterministic, hex encoded and
// sensitive to every byte.
func TestFingerprint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"empty", nil, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"abc", []byte("abc"), "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Fingerprint(tt.in); got != tt.want {
				t.Fatalf("Fingerprint(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	if Fingerprint([]byte("a,b\n1,2\n")) == Fingerprint([]byte("a,b\n1,3\n")) {
		t.Fatalf("Fingerprint collided on different content")
	}
}

// TestGateCheck verifies known/unknown decisions and error propagation.
func TestGateCheck(t *testing.T) {
	t.Parallel()

	data := []byte("hello")
	lk := &fakeLookup{known: map[string]bool{}}
	g := NewGate(lk)

	d, err := g.Check(context.Background(), data)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Known || d.Hash != Fingerprint(data) {
		t.Fatalf("Check = %+v, want unknown with fingerprint", d)
	}
	d.Release()

	lk.add(d.Hash)
	d2, err := g.Check(context.Background(), data)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !d2.Known {
		t.Fatalf("Check after add: Known = false, want true")
	}

	lk.err = errors.New("db down")
	if _, err := g.Check(context.Background(), data); err == nil || !errors.Is(err, lk.err) {
		t.Fatalf("Check with failing lookup: err = %v, want wrapped %v", err, lk.err)
	}
}

// TestGateSerializesSameHash verifies that with a locker, concurrent checks of
// the same content are serialized: only one worker observes "unknown" when the
// winner records the hash before releasing.
func TestGateSerializesSameHash(t *testing.T) {
	t.Parallel()

	lk := &lockingLookup{fakeLookup: fakeLookup{known: map[string]bool{}}, LocalLocker: NewLocalLocker()}
	g := NewGate(lk)

	var unknown int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := g.Check(context.Background(), []byte("same bytes"))
			if err != nil {
				t.Errorf("Check: %v", err)
				return
			}
			defer d.Release()
			if !d.Known {
				atomic.AddInt32(&unknown, 1)
				time.Sleep(5 * time.Millisecond)
				lk.add(d.Hash)
			}
		}()
	}
	wg.Wait()

	if unknown != 1 {
		t.Fatalf("workers observing unknown = %d, want 1", unknown)
	}
	if len(lk.LocalLocker.locks) != 0 {
		t.Fatalf("lock table not drained: %d entries", len(lk.LocalLocker.locks))
	}
}

// TestLocalLockerContextCancel verifies a blocked waiter gives up when its
// context is cancelled and does not leak the lock entry.
func TestLocalLockerContextCancel(t *testing.T) {
	t.Parallel()

	l := NewLocalLocker()
	release, err := l.LockHash(context.Background(), "h")
	if err != nil {
		t.Fatalf("LockHash: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := l.LockHash(ctx, "h"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second LockHash err = %v, want deadline exceeded", err)
	}

	release()
	if len(l.locks) != 0 {
		t.Fatalf("locks = %d, want 0", len(l.locks))
	}
}
