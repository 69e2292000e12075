package media

import (
	"context"
	"errors"

	"mediabridge/model"
)

// UnknownPlayerID is reported for sessions whose owning application cannot be resolved.
const UnknownPlayerID = "Unknown"

var (
	// ErrNoManager is returned when the platform could not provide a session manager.
	ErrNoManager = errors.New("media session manager unavailable")
	// ErrUnknownToken is returned by platforms asked to cancel a subscription they never issued.
	ErrUnknownToken = errors.New("unknown subscription token")
	// ErrNotSupported marks a property or command the session does not offer.
	ErrNotSupported = errors.New("not supported by session")
)

// Token identifies one subscription and is required to cancel it.
type Token int64

// Handler is invoked by the platform when a subscribed notification fires.
// It must return quickly and must not call back into the bridge.
type Handler func()

// Ticks is a duration in the platform's 100-nanosecond units.
type Ticks int64

const ticksPerMillisecond = 10_000

// Milliseconds converts ticks to whole milliseconds, truncating.
func (t Ticks) Milliseconds() int64 {
	return int64(t) / ticksPerMillisecond
}

// TicksFromMillis converts milliseconds to platform ticks.
func TicksFromMillis(ms uint64) Ticks {
	return Ticks(ms * ticksPerMillisecond)
}

// MediaProperties is the required part of a session's metadata.
type MediaProperties struct {
	Title  string
	Artist string
}

// Timeline is a session timeline as reported by the platform.
type Timeline struct {
	Start    Ticks
	End      Ticks
	Position Ticks
}

// Properties converts the timeline into the millisecond form sent to widgets.
func (t Timeline) Properties() model.TimelineProperties {
	return model.TimelineProperties{
		StartTime: t.Start.Milliseconds(),
		EndTime:   t.End.Milliseconds(),
		Position:  t.Position.Milliseconds(),
	}
}

// Session is one OS media-playback session. Handles are owned by the platform.
type Session interface {
	SourceAppID() (string, error)

	MediaProperties(ctx context.Context) (MediaProperties, error)
	Thumbnail(ctx context.Context) ([]byte, error)
	PlaybackInfo(ctx context.Context) (model.PlaybackInfo, error)
	Timeline(ctx context.Context) (Timeline, error)

	OnMediaPropertiesChanged(h Handler) (Token, error)
	RemoveMediaPropertiesChanged(tok Token) error
	OnPlaybackInfoChanged(h Handler) (Token, error)
	RemovePlaybackInfoChanged(tok Token) error
	OnTimelinePropertiesChanged(h Handler) (Token, error)
	RemoveTimelinePropertiesChanged(tok Token) error

	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SkipNext(ctx context.Context) error
	SkipPrevious(ctx context.Context) error
	ChangePlaybackPosition(ctx context.Context, position Ticks) error
}

// Manager enumerates sessions and reports manager-level changes.
type Manager interface {
	Sessions(ctx context.Context) ([]Session, error)
	// CurrentSession returns nil when the platform reports no current session.
	CurrentSession(ctx context.Context) (Session, error)

	OnSessionsChanged(h Handler) (Token, error)
	RemoveSessionsChanged(tok Token) error
	OnCurrentSessionChanged(h Handler) (Token, error)
	RemoveCurrentSessionChanged(tok Token) error
}

// Platform is the OS media-session service.
type Platform interface {
	RequestManager(ctx context.Context) (Manager, error)
	// AppInfo resolves an application identifier to its display name and logo.
	AppInfo(ctx context.Context, appID string) (model.PlayerInfo, error)
}

// optional turns a fallible property read into a pointer that is nil when the
// read failed, so callers can treat unsupported fields as absent.
func optional[T any](v T, err error) *T {
	if err != nil {
		return nil
	}
	return &v
}
