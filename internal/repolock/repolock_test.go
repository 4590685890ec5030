package repolock

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLocker_SerializesSameRepository(t *testing.T) {
	l := New()
	dir := t.TempDir()

	var active, maxActive int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), dir)
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()

			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestLocker_IndependentRepositories(t *testing.T) {
	l := New()

	unlockA, err := l.Lock(context.Background(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer unlockA()

	unlockB, ok := l.TryLock(t.TempDir())
	if !ok {
		t.Fatal("a different repository should not be blocked")
	}
	unlockB()
}

func TestLocker_CanonicalKey(t *testing.T) {
	l := New()
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	unlock, err := l.Lock(context.Background(), target)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.TryLock(link); ok {
		t.Error("a symlink to a locked repository should share its lock")
	}
	if _, ok := l.TryLock(target + string(filepath.Separator) + "."); ok {
		t.Error("an unclean path should share the lock")
	}
	unlock()

	again, ok := l.TryLock(link)
	if !ok {
		t.Fatal("lock should be free after unlock")
	}
	again()
}

func TestLocker_ContextCancel(t *testing.T) {
	l := New()
	dir := t.TempDir()

	unlock, err := l.Lock(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, dir); err == nil {
		t.Error("Lock() should fail when the context expires")
	}
}

func TestLocker_UnlockIdempotent(t *testing.T) {
	l := New()
	dir := t.TempDir()

	unlock, err := l.Lock(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	unlock()
	unlock()

	first, ok := l.TryLock(dir)
	if !ok {
		t.Fatal("TryLock() after unlock failed")
	}
	if _, ok := l.TryLock(dir); ok {
		t.Error("a double unlock must not free a second slot")
	}
	first()
}

func TestKey(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	if got := Key(dir); got != want {
		t.Errorf("Key(%q) = %q, want %q", dir, got, want)
	}

	missing := filepath.Join(dir, "missing", "..", "missing")
	if got := Key(missing); got != filepath.Join(dir, "missing") {
		t.Errorf("Key(missing) = %q", got)
	}
}

func TestLock_Default(t *testing.T) {
	dir := t.TempDir()
	unlock, err := Lock(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := defaultLocker.TryLock(dir); ok {
		t.Error("package-level Lock should use the shared locker")
	}
	unlock()
}
