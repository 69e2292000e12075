package mpris

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"mediabridge/core/media"
	"mediabridge/core/utils"
	"mediabridge/model"
)

// session is one MPRIS player, addressed by its well-known bus name.
// Change notifications follow the name across owner changes, so a relaunched
// player keeps notifying the listeners attached to its id.
type session struct {
	platform *Platform
	busName  string
	obj      dbus.BusObject
}

func newSession(p *Platform, busName string) *session {
	return &session{
		platform: p,
		busName:  busName,
		obj:      p.conn.Object(busName, objectPath),
	}
}

// SourceAppID is the bus name without the MPRIS prefix, e.g. "spotify".
func (s *session) SourceAppID() (string, error) {
	id := strings.TrimPrefix(s.busName, busPrefix)
	if id == "" || id == s.busName {
		return "", fmt.Errorf("bus name %q is not an MPRIS player", s.busName)
	}
	return id, nil
}

func (s *session) properties(ctx context.Context) (map[string]dbus.Variant, error) {
	var props map[string]dbus.Variant
	if err := s.obj.CallWithContext(ctx, propGetAll, 0, playerIface).Store(&props); err != nil {
		return nil, fmt.Errorf("read player properties of %s: %w", s.busName, err)
	}
	return props, nil
}

func (s *session) property(ctx context.Context, name string) (dbus.Variant, error) {
	var v dbus.Variant
	if err := s.obj.CallWithContext(ctx, propGet, 0, playerIface, name).Store(&v); err != nil {
		return dbus.Variant{}, fmt.Errorf("read %s of %s: %w", name, s.busName, err)
	}
	return v, nil
}

func (s *session) MediaProperties(ctx context.Context) (media.MediaProperties, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return media.MediaProperties{}, err
	}
	return mediaPropertiesOf(props)
}

// Thumbnail loads mpris:artUrl, which is a file:// or http(s) URL.
func (s *session) Thumbnail(ctx context.Context) ([]byte, error) {
	v, err := s.property(ctx, "Metadata")
	if err != nil {
		return nil, err
	}
	md, _ := v.Value().(map[string]dbus.Variant)
	artURL := stringOf(md, "mpris:artUrl")
	if artURL == "" {
		return nil, fmt.Errorf("art url: %w", media.ErrNotSupported)
	}
	return utils.FetchBytes(ctx, artURL, s.platform.cfg.ThumbnailMaxBytes)
}

func (s *session) PlaybackInfo(ctx context.Context) (model.PlaybackInfo, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return model.PlaybackInfo{}, err
	}
	return playbackInfoOf(props)
}

func (s *session) Timeline(ctx context.Context) (media.Timeline, error) {
	props, err := s.properties(ctx)
	if err != nil {
		return media.Timeline{}, err
	}
	return timelineOf(props)
}

func (s *session) status(ctx context.Context) string {
	v, err := s.property(ctx, "PlaybackStatus")
	if err != nil {
		return ""
	}
	status, _ := v.Value().(string)
	return status
}

func (s *session) OnMediaPropertiesChanged(h media.Handler) (media.Token, error) {
	return s.platform.hub.add(kindMetadata, s.busName, h), nil
}

func (s *session) RemoveMediaPropertiesChanged(tok media.Token) error {
	return s.platform.hub.remove(kindMetadata, tok)
}

func (s *session) OnPlaybackInfoChanged(h media.Handler) (media.Token, error) {
	return s.platform.hub.add(kindPlayback, s.busName, h), nil
}

func (s *session) RemovePlaybackInfoChanged(tok media.Token) error {
	return s.platform.hub.remove(kindPlayback, tok)
}

func (s *session) OnTimelinePropertiesChanged(h media.Handler) (media.Token, error) {
	return s.platform.hub.add(kindTimeline, s.busName, h), nil
}

func (s *session) RemoveTimelinePropertiesChanged(tok media.Token) error {
	return s.platform.hub.remove(kindTimeline, tok)
}

func (s *session) call(ctx context.Context, method string, args ...interface{}) error {
	if err := s.obj.CallWithContext(ctx, method, 0, args...).Err; err != nil {
		return fmt.Errorf("%s on %s: %w", method, s.busName, err)
	}
	return nil
}

func (s *session) Play(ctx context.Context) error         { return s.call(ctx, methodPlay) }
func (s *session) Pause(ctx context.Context) error        { return s.call(ctx, methodPause) }
func (s *session) SkipNext(ctx context.Context) error     { return s.call(ctx, methodNext) }
func (s *session) SkipPrevious(ctx context.Context) error { return s.call(ctx, methodPrevious) }

// ChangePlaybackPosition uses SetPosition on the current track, or a
// relative Seek when the player does not expose a track id.
func (s *session) ChangePlaybackPosition(ctx context.Context, position media.Ticks) error {
	target := int64(position) / ticksPerMicrosecond

	props, err := s.properties(ctx)
	if err != nil {
		return err
	}
	if md, ok := metadataOf(props); ok {
		if v, ok := md["mpris:trackid"]; ok {
			if track, ok := v.Value().(dbus.ObjectPath); ok && track.IsValid() {
				return s.call(ctx, methodSetPos, track, target)
			}
		}
	}

	tl, err := timelineOf(props)
	if err != nil {
		return err
	}
	offset := target - int64(tl.Position)/ticksPerMicrosecond
	return s.call(ctx, methodSeek, offset)
}
