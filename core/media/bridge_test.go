package media

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"mediabridge/model"
)

func playerIDs(snaps []model.PlaybackSnapshot) []string {
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.PlayerID
	}
	return ids
}

func poll(t *testing.T, b *Bridge) []model.PlaybackSnapshot {
	t.Helper()
	snaps, err := b.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	b.Wait()
	return snaps
}

func TestPollOrdersCurrentSessionFirst(t *testing.T) {
	p := newFakePlatform()
	a, bs, c := newFakeSession("A"), newFakeSession("B"), newFakeSession("C")
	p.manager.setSessions(bs, a, bs, c)
	b := New(p, Options{})

	snaps := poll(t, b)

	if got, want := playerIDs(snaps), []string{"B", "A", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
	if !snaps[0].IsCurrentSession || snaps[1].IsCurrentSession || snaps[2].IsCurrentSession {
		t.Errorf("unexpected is_current flags: %+v", snaps)
	}
}

func TestPollWithoutCurrentSessionKeepsEnumerationOrder(t *testing.T) {
	p := newFakePlatform()
	p.manager.setSessions(nil, newFakeSession("C"), newFakeSession("A"), newFakeSession("B"))
	b := New(p, Options{})

	if got, want := playerIDs(poll(t, b)), []string{"C", "A", "B"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestReconciliationAcrossPolls(t *testing.T) {
	p := newFakePlatform()
	a, bs, c := newFakeSession("A"), newFakeSession("B"), newFakeSession("C")
	b := New(p, Options{})

	p.manager.setSessions(nil, a, bs)
	poll(t, b)
	aEntry, ok := b.Registry().Get("A")
	if !ok {
		t.Fatal("A not attached after first poll")
	}
	bEntry, _ := b.Registry().Get("B")

	p.manager.setSessions(nil, bs, c)
	poll(t, b)

	if got, want := b.Registry().PlayerIDs(), []string{"B", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("registry = %v, want %v", got, want)
	}
	for _, tok := range []Token{aEntry.Tokens.Metadata, aEntry.Tokens.Playback, aEntry.Tokens.Timeline} {
		if n := a.subs.removals(tok); n != 1 {
			t.Errorf("A token %d cancelled %d times, want 1", tok, n)
		}
	}
	if n := a.subs.total(); n != 0 {
		t.Errorf("A still has %d live subscriptions", n)
	}
	// B was seen in both polls and must keep its first subscriptions
	if got, _ := b.Registry().Get("B"); got.Tokens != bEntry.Tokens {
		t.Errorf("B was re-attached: %+v -> %+v", bEntry.Tokens, got.Tokens)
	}
	if n := bs.subs.total(); n != 3 {
		t.Errorf("B has %d live subscriptions, want 3", n)
	}
}

func TestPollTimelineConversion(t *testing.T) {
	p := newFakePlatform()
	s := newFakeSession("spotify")
	s.timeline = Timeline{Start: 0, End: 1_800_000_000, Position: 900_000_000}
	p.manager.setSessions(s, s)
	b := New(p, Options{})

	snaps := poll(t, b)

	want := &model.TimelineProperties{StartTime: 0, EndTime: 180000, Position: 90000}
	if !reflect.DeepEqual(snaps[0].Timeline, want) {
		t.Errorf("timeline = %+v, want %+v", snaps[0].Timeline, want)
	}
}

func TestPollToleratesMissingOptionalFields(t *testing.T) {
	p := newFakePlatform()
	s := newFakeSession("vlc")
	s.thumbnailErr = ErrNotSupported
	s.playbackErr = ErrNotSupported
	s.timelineErr = ErrNotSupported
	p.manager.setSessions(nil, s)
	b := New(p, Options{})

	snaps := poll(t, b)
	if len(snaps) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snaps))
	}
	got := snaps[0]
	if got.Thumbnail == nil || len(got.Thumbnail) != 0 {
		t.Errorf("thumbnail = %v, want empty non-nil", got.Thumbnail)
	}
	if got.Title != "title of vlc" || got.Artist != "artist of vlc" {
		t.Errorf("title/artist = %q/%q", got.Title, got.Artist)
	}
	if got.PlaybackInfo != nil || got.Timeline != nil {
		t.Errorf("optional fields should be absent: %+v", got)
	}
}

func TestPollDropsOnlyFailingSessions(t *testing.T) {
	p := newFakePlatform()
	ok1, broken, panicky, ok2 := newFakeSession("A"), newFakeSession("B"), newFakeSession("C"), newFakeSession("D")
	broken.propsErr = errors.New("metadata unavailable")
	panicky.panicOnProps = true
	p.manager.setSessions(nil, ok1, broken, panicky, ok2)
	b := New(p, Options{})

	snaps := poll(t, b)

	if got, want := playerIDs(snaps), []string{"A", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("snapshots = %v, want %v", got, want)
	}
	// failing sessions are still present and stay attached
	if got, want := b.Registry().PlayerIDs(), []string{"A", "B", "C", "D"}; !reflect.DeepEqual(got, want) {
		t.Errorf("registry = %v, want %v", got, want)
	}
}

func TestPollFailsWhenEnumerationFails(t *testing.T) {
	p := newFakePlatform()
	p.manager.listErr = errors.New("rpc failure")
	b := New(p, Options{})

	if _, err := b.Poll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	b.Wait()
}

func TestPollRunsAfterCallerCancels(t *testing.T) {
	p := newFakePlatform()
	p.manager.setSessions(nil, newFakeSession("A"))
	b := New(p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snaps, err := b.Poll(ctx)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	b.Wait()
	if len(snaps) != 1 || !b.Registry().Contains("A") {
		t.Errorf("cancelled poll did not complete: %v", playerIDs(snaps))
	}
}

func TestManagerResubscriptionKeepsTwoTokens(t *testing.T) {
	p := newFakePlatform()
	p.manager.setSessions(nil, newFakeSession("A"))
	b := New(p, Options{})

	poll(t, b)
	first := b.ManagerTokens()
	poll(t, b)
	second := b.ManagerTokens()

	if len(second) != 2 {
		t.Fatalf("expected 2 manager tokens, got %d", len(second))
	}
	if n := p.manager.subs.total(); n != 2 {
		t.Errorf("expected 2 live manager subscriptions, got %d", n)
	}
	for name, tok := range first {
		if n := p.manager.subs.removals(tok); n != 1 {
			t.Errorf("first %s token cancelled %d times, want 1", name, n)
		}
		if second[name] == tok {
			t.Errorf("%s token not replaced", name)
		}
	}
}

func TestManagerEventsReachSubscribers(t *testing.T) {
	p := newFakePlatform()
	p.manager.setSessions(nil, newFakeSession("A"))
	b := New(p, Options{})
	poll(t, b)

	ch, cancel := b.Subscribe()
	defer cancel()

	p.manager.subs.fire("sessions")

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("sessions changed did not signal media changed")
	}
}

func TestPlayerInfo(t *testing.T) {
	t.Run("resolved per player", func(t *testing.T) {
		p := newFakePlatform()
		p.infos["spotify"] = model.PlayerInfo{Name: "Spotify", Icon: []byte{1, 2, 3}}
		p.manager.setSessions(nil, newFakeSession("spotify"))
		b := New(p, Options{})

		snaps := poll(t, b)
		if snaps[0].Player == nil || snaps[0].Player.Name != "Spotify" {
			t.Errorf("player = %+v", snaps[0].Player)
		}
	})

	t.Run("failure substitutes empty info", func(t *testing.T) {
		p := newFakePlatform()
		p.infoErr = errors.New("app diagnostics denied")
		p.manager.setSessions(nil, newFakeSession("spotify"))
		b := New(p, Options{})

		snaps := poll(t, b)
		if len(snaps) != 1 {
			t.Fatalf("expected snapshot despite info failure, got %d", len(snaps))
		}
		want := &model.PlayerInfo{Name: "", Icon: []byte{}}
		if !reflect.DeepEqual(snaps[0].Player, want) {
			t.Errorf("player = %+v, want %+v", snaps[0].Player, want)
		}
	})

	t.Run("unknown player id skips lookup", func(t *testing.T) {
		p := newFakePlatform()
		s := newFakeSession("")
		s.idErr = errors.New("no app id")
		p.manager.setSessions(nil, s)
		b := New(p, Options{})

		snaps := poll(t, b)
		if snaps[0].PlayerID != UnknownPlayerID {
			t.Errorf("player id = %q", snaps[0].PlayerID)
		}
		if p.infoCalls != 0 {
			t.Errorf("AppInfo called %d times for unknown player", p.infoCalls)
		}
	})
}

func TestClose(t *testing.T) {
	p := newFakePlatform()
	a, c := newFakeSession("A"), newFakeSession("C")
	p.manager.setSessions(nil, a, c)
	b := New(p, Options{})
	poll(t, b)

	b.Close()

	if n := b.Registry().Len(); n != 0 {
		t.Errorf("registry has %d entries after close", n)
	}
	if n := a.subs.total() + c.subs.total() + p.manager.subs.total(); n != 0 {
		t.Errorf("%d subscriptions left after close", n)
	}
}
