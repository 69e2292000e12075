package media

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"mediabridge/logger"
)

func TestAttachIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	l := NewListeners(registry, NewNotifier())
	s := newFakeSession("spotify")

	if err := l.Attach("spotify", s); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := l.Attach("spotify", s); err != nil {
		t.Fatalf("second attach: %v", err)
	}

	if registry.Len() != 1 {
		t.Errorf("expected 1 registry entry, got %d", registry.Len())
	}
	for _, kind := range []string{"metadata", "playback", "timeline"} {
		if n := s.subs.count(kind); n != 1 {
			t.Errorf("expected 1 live %s subscription, got %d", kind, n)
		}
	}
}

func TestConcurrentAttachKeepsOneSetOfTokens(t *testing.T) {
	registry := NewRegistry()
	l := NewListeners(registry, NewNotifier())
	s := newFakeSession("spotify")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Attach("spotify", s); err != nil {
				t.Errorf("attach: %v", err)
			}
		}()
	}
	wg.Wait()

	if registry.Len() != 1 {
		t.Fatalf("expected 1 registry entry, got %d", registry.Len())
	}
	if n := s.subs.total(); n != 3 {
		t.Errorf("expected exactly 3 live subscriptions, got %d", n)
	}
}

func TestDetach(t *testing.T) {
	t.Run("cancels all three tokens once", func(t *testing.T) {
		registry := NewRegistry()
		l := NewListeners(registry, NewNotifier())
		s := newFakeSession("vlc")
		if err := l.Attach("vlc", s); err != nil {
			t.Fatal(err)
		}
		entry, _ := registry.Get("vlc")

		l.Detach("vlc")
		l.Detach("vlc")

		if registry.Contains("vlc") {
			t.Error("entry still registered after detach")
		}
		for _, tok := range []Token{entry.Tokens.Metadata, entry.Tokens.Playback, entry.Tokens.Timeline} {
			if n := s.subs.removals(tok); n != 1 {
				t.Errorf("token %d removed %d times, want 1", tok, n)
			}
		}
	})

	t.Run("unknown id is a no-op", func(t *testing.T) {
		registry := NewRegistry()
		l := NewListeners(registry, NewNotifier())
		l.Detach("never-attached")
		if registry.Len() != 0 {
			t.Errorf("registry changed: %d entries", registry.Len())
		}
	})

	t.Run("cancel errors are logged not returned", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		defer logger.ReplaceLogger(zap.New(core))()

		registry := NewRegistry()
		l := NewListeners(registry, NewNotifier())
		s := newFakeSession("chrome")
		if err := l.Attach("chrome", s); err != nil {
			t.Fatal(err)
		}
		// the session already dropped its handlers, as a closed app would
		s.subs = newSubscriptions()

		l.Detach("chrome")

		if registry.Contains("chrome") {
			t.Error("entry should be removed even when cancel fails")
		}
		if n := logs.FilterMessage("failed to remove metadata listener").Len(); n != 1 {
			t.Errorf("expected a logged metadata cancel failure, got %d", n)
		}
	})
}

func TestAttachFailureRecordsNothing(t *testing.T) {
	registry := NewRegistry()
	l := NewListeners(registry, NewNotifier())
	s := newFakeSession("firefox")
	s.subs.failKind = "timeline"

	if err := l.Attach("firefox", s); err == nil {
		t.Fatal("expected attach error")
	}
	if registry.Contains("firefox") {
		t.Error("failed attach must not create an entry")
	}
	if n := s.subs.total(); n != 0 {
		t.Errorf("partial subscriptions leaked: %d live", n)
	}

	// the platform recovers; the next poll's attach succeeds
	s.subs.failKind = ""
	if err := l.Attach("firefox", s); err != nil {
		t.Fatalf("retry attach: %v", err)
	}
	if !registry.Contains("firefox") {
		t.Error("retry did not register the session")
	}
}

func TestHandlersSignalNotifier(t *testing.T) {
	notifier := NewNotifier()
	l := NewListeners(NewRegistry(), notifier)
	s := newFakeSession("spotify")
	if err := l.Attach("spotify", s); err != nil {
		t.Fatal(err)
	}

	ch, cancel := notifier.Subscribe()
	defer cancel()

	s.subs.fire("playback")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no media changed signal")
	}
}
