package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeRow struct {
	key string
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.key
	return nil
}

// fakeLocks emulates the app_locks table for a single key space.
type fakeLocks struct {
	mu       sync.Mutex
	holders  map[string]string
	released []string
	renewErr error
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{holders: make(map[string]string)}
}

func (f *fakeLocks) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)
	if sql == releaseSQL && f.holders[key] == token {
		delete(f.holders, key)
		f.released = append(f.released, key)
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("DELETE 0"), nil
}

func (f *fakeLocks) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, token := args[0].(string), args[1].(string)

	switch sql {
	case tryAcquireSQL:
		if holder, ok := f.holders[key]; ok && holder != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		f.holders[key] = token
		return fakeRow{key: key}
	case renewSQL:
		if f.renewErr != nil {
			return fakeRow{err: f.renewErr}
		}
		if f.holders[key] != token {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{key: key}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

func TestBuildKey(t *testing.T) {
	if got := BuildKey("abc"); got != "graph-build:abc" {
		t.Fatalf("BuildKey = %q", got)
	}
}

func TestOptionsDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "zero",
			in:   Options{},
			want: Options{TTL: 5 * time.Minute, RenewEvery: 150 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "renew longer than ttl",
			in:   Options{TTL: 10 * time.Second, RenewEvery: time.Minute, WaitJitter: -1},
			want: Options{TTL: 10 * time.Second, RenewEvery: 5 * time.Second, WaitInterval: 250 * time.Millisecond},
		},
		{
			name: "short ttl keeps one second renew",
			in:   Options{TTL: time.Second},
			want: Options{TTL: time.Second, RenewEvery: time.Second, WaitInterval: 250 * time.Millisecond},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.withDefaults(); got != tt.want {
				t.Fatalf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAcquireAndRelease(t *testing.T) {
	locks := newFakeLocks()
	c := New(locks)
	ctx := context.Background()

	lease, err := c.Acquire(ctx, "k", Options{TokenPrefix: "w1-"})
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	if lease.Token[:3] != "w1-" {
		t.Fatalf("token %q does not carry prefix", lease.Token)
	}

	if _, err := c.Acquire(ctx, "k", Options{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if lease.Context.Err() == nil {
		t.Fatal("lease context must be canceled after release")
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("second Release error: %v", err)
	}

	other, err := c.Acquire(ctx, "k", Options{})
	if err != nil {
		t.Fatalf("Acquire after release error: %v", err)
	}
	_ = other.Release(ctx)
}

func TestAcquireEmptyKey(t *testing.T) {
	if _, err := New(newFakeLocks()).Acquire(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestAcquireWaitHonorsContext(t *testing.T) {
	locks := newFakeLocks()
	locks.holders["k"] = "someone-else"

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(locks).Acquire(ctx, "k", Options{Wait: true, WaitInterval: 10 * time.Millisecond})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWithLease(t *testing.T) {
	locks := newFakeLocks()
	c := New(locks)

	boom := errors.New("boom")
	err := c.WithLease(context.Background(), "k", Options{}, func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Fatal("lease context canceled while running")
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if len(locks.released) != 1 {
		t.Fatalf("lease must be released, got %v", locks.released)
	}
}

func TestRenewLossCancelsLease(t *testing.T) {
	locks := newFakeLocks()
	c := New(locks)

	lease, err := c.Acquire(context.Background(), "k", Options{TTL: 2 * time.Second, RenewEvery: time.Second})
	if err != nil {
		t.Fatalf("Acquire error: %v", err)
	}
	defer lease.Release(context.Background())

	locks.mu.Lock()
	delete(locks.holders, "k")
	locks.mu.Unlock()

	select {
	case <-lease.Context.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("lease context not canceled after renewal failed")
	}
	if cause := context.Cause(lease.Context); !errors.Is(cause, ErrLost) {
		t.Fatalf("expected ErrLost cause, got %v", cause)
	}
}
