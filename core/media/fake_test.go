package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mediabridge/model"
)

// subscriptions tracks live handlers per kind and how often each token was removed.
type subscriptions struct {
	mu       sync.Mutex
	next     Token
	live     map[string]map[Token]Handler
	removed  map[Token]int
	failKind string
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		live:    make(map[string]map[Token]Handler),
		removed: make(map[Token]int),
	}
}

func (s *subscriptions) add(kind string, h Handler) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKind == kind {
		return 0, fmt.Errorf("subscribe %s: %w", kind, ErrNotSupported)
	}
	s.next++
	if s.live[kind] == nil {
		s.live[kind] = make(map[Token]Handler)
	}
	s.live[kind][s.next] = h
	return s.next, nil
}

func (s *subscriptions) remove(kind string, tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed[tok]++
	if _, ok := s.live[kind][tok]; !ok {
		return ErrUnknownToken
	}
	delete(s.live[kind], tok)
	return nil
}

func (s *subscriptions) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live[kind])
}

func (s *subscriptions) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.live {
		n += len(m)
	}
	return n
}

func (s *subscriptions) removals(tok Token) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removed[tok]
}

func (s *subscriptions) fire(kind string) {
	s.mu.Lock()
	handlers := make([]Handler, 0, len(s.live[kind]))
	for _, h := range s.live[kind] {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

type fakeSession struct {
	id    string
	idErr error

	title, artist string
	propsErr      error
	panicOnProps  bool

	thumbnail      []byte
	thumbnailErr   error
	blockThumbnail bool

	playback    model.PlaybackInfo
	playbackErr error

	timeline    Timeline
	timelineErr error

	actionErr error

	subs *subscriptions

	mu      sync.Mutex
	actions []string
	seekTo  Ticks
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{
		id:        id,
		title:     "title of " + id,
		artist:    "artist of " + id,
		thumbnail: []byte{0xff, 0xd8},
		playback: model.PlaybackInfo{
			Controls: model.ControlPlay | model.ControlPause,
			Status:   model.StatusPlaying,
		},
		timeline: Timeline{Start: 0, End: 1_800_000_000, Position: 900_000_000},
		subs:     newSubscriptions(),
	}
}

func (s *fakeSession) SourceAppID() (string, error) { return s.id, s.idErr }

func (s *fakeSession) MediaProperties(context.Context) (MediaProperties, error) {
	if s.panicOnProps {
		panic("platform exploded")
	}
	if s.propsErr != nil {
		return MediaProperties{}, s.propsErr
	}
	return MediaProperties{Title: s.title, Artist: s.artist}, nil
}

func (s *fakeSession) Thumbnail(ctx context.Context) ([]byte, error) {
	if s.blockThumbnail {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.thumbnail, s.thumbnailErr
}

func (s *fakeSession) PlaybackInfo(context.Context) (model.PlaybackInfo, error) {
	return s.playback, s.playbackErr
}

func (s *fakeSession) Timeline(context.Context) (Timeline, error) {
	return s.timeline, s.timelineErr
}

func (s *fakeSession) OnMediaPropertiesChanged(h Handler) (Token, error) {
	return s.subs.add("metadata", h)
}
func (s *fakeSession) RemoveMediaPropertiesChanged(tok Token) error {
	return s.subs.remove("metadata", tok)
}
func (s *fakeSession) OnPlaybackInfoChanged(h Handler) (Token, error) {
	return s.subs.add("playback", h)
}
func (s *fakeSession) RemovePlaybackInfoChanged(tok Token) error {
	return s.subs.remove("playback", tok)
}
func (s *fakeSession) OnTimelinePropertiesChanged(h Handler) (Token, error) {
	return s.subs.add("timeline", h)
}
func (s *fakeSession) RemoveTimelinePropertiesChanged(tok Token) error {
	return s.subs.remove("timeline", tok)
}

func (s *fakeSession) record(action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return s.actionErr
}

func (s *fakeSession) Play(context.Context) error         { return s.record("play") }
func (s *fakeSession) Pause(context.Context) error        { return s.record("pause") }
func (s *fakeSession) SkipNext(context.Context) error     { return s.record("next") }
func (s *fakeSession) SkipPrevious(context.Context) error { return s.record("prev") }
func (s *fakeSession) ChangePlaybackPosition(_ context.Context, pos Ticks) error {
	s.mu.Lock()
	s.seekTo = pos
	s.mu.Unlock()
	return s.record("position")
}

func (s *fakeSession) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

type fakeManager struct {
	mu       sync.Mutex
	sessions []Session
	current  Session
	listErr  error

	subs *subscriptions
}

func (m *fakeManager) setSessions(current Session, sessions ...Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
	m.current = current
}

func (m *fakeManager) Sessions(context.Context) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]Session(nil), m.sessions...), nil
}

func (m *fakeManager) CurrentSession(context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, nil
}

func (m *fakeManager) OnSessionsChanged(h Handler) (Token, error) {
	return m.subs.add("sessions", h)
}
func (m *fakeManager) RemoveSessionsChanged(tok Token) error {
	return m.subs.remove("sessions", tok)
}
func (m *fakeManager) OnCurrentSessionChanged(h Handler) (Token, error) {
	return m.subs.add("current", h)
}
func (m *fakeManager) RemoveCurrentSessionChanged(tok Token) error {
	return m.subs.remove("current", tok)
}

type fakePlatform struct {
	manager *fakeManager

	mu         sync.Mutex
	requests   int
	requestErr error
	infos      map[string]model.PlayerInfo
	infoErr    error
	infoCalls  int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		manager: &fakeManager{subs: newSubscriptions()},
		infos:   make(map[string]model.PlayerInfo),
	}
}

func (p *fakePlatform) RequestManager(context.Context) (Manager, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	return p.manager, nil
}

func (p *fakePlatform) AppInfo(_ context.Context, appID string) (model.PlayerInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.infoCalls++
	if p.infoErr != nil {
		return model.PlayerInfo{}, p.infoErr
	}
	info, ok := p.infos[appID]
	if !ok {
		return model.PlayerInfo{}, errors.New("app not installed")
	}
	return info, nil
}

func (p *fakePlatform) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}
