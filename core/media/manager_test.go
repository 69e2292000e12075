package media

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestManagerStoreInitializesOnce(t *testing.T) {
	p := newFakePlatform()
	store := NewManagerStore(p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := store.Get(context.Background())
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			if m != p.manager {
				t.Error("got a different manager handle")
			}
		}()
	}
	wg.Wait()

	if n := p.requestCount(); n != 1 {
		t.Errorf("platform manager requested %d times, want 1", n)
	}
}

func TestManagerStoreRetriesFailedInit(t *testing.T) {
	p := newFakePlatform()
	p.requestErr = errors.New("service not running")
	store := NewManagerStore(p)

	if _, err := store.Get(context.Background()); !errors.Is(err, ErrNoManager) {
		t.Fatalf("expected ErrNoManager, got %v", err)
	}

	p.mu.Lock()
	p.requestErr = nil
	p.mu.Unlock()

	if _, err := store.Get(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := p.requestCount(); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

func TestEnsureSubscriptionsReplacesTokens(t *testing.T) {
	p := newFakePlatform()
	store := NewManagerStore(p)
	ctx := context.Background()
	noop := func() {}

	if err := store.EnsureSubscriptions(ctx, noop); err != nil {
		t.Fatal(err)
	}
	first := store.Tokens()

	if err := store.EnsureSubscriptions(ctx, noop); err != nil {
		t.Fatal(err)
	}
	second := store.Tokens()

	if len(second) != 2 {
		t.Fatalf("expected 2 stored tokens, got %d", len(second))
	}
	if n := p.manager.subs.total(); n != 2 {
		t.Errorf("expected 2 live manager subscriptions, got %d", n)
	}
	for name, tok := range first {
		if second[name] == tok {
			t.Errorf("%s token was not replaced", name)
		}
		if n := p.manager.subs.removals(tok); n != 1 {
			t.Errorf("old %s token removed %d times, want 1", name, n)
		}
	}
}

func TestEnsureSubscriptionsConcurrentNeverLeaks(t *testing.T) {
	p := newFakePlatform()
	store := NewManagerStore(p)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.EnsureSubscriptions(context.Background(), func() {}); err != nil {
				t.Errorf("ensure: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := p.manager.subs.total(); n != 2 {
		t.Errorf("expected 2 live manager subscriptions, got %d", n)
	}
	if n := len(store.Tokens()); n != 2 {
		t.Errorf("expected 2 stored tokens, got %d", n)
	}
}

func TestEnsureSubscriptionsRollsBackOnFailure(t *testing.T) {
	p := newFakePlatform()
	p.manager.subs.failKind = "current"
	store := NewManagerStore(p)

	if err := store.EnsureSubscriptions(context.Background(), func() {}); err == nil {
		t.Fatal("expected error")
	}
	if n := p.manager.subs.total(); n != 0 {
		t.Errorf("expected no live subscriptions, got %d", n)
	}
}

func TestManagerStoreClose(t *testing.T) {
	p := newFakePlatform()
	store := NewManagerStore(p)
	if err := store.EnsureSubscriptions(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}

	store.Close()

	if n := p.manager.subs.total(); n != 0 {
		t.Errorf("expected no live subscriptions after close, got %d", n)
	}
	if n := len(store.Tokens()); n != 0 {
		t.Errorf("expected empty token map, got %d", n)
	}
}
