package mpris

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"mediabridge/core/media"
	"mediabridge/model"
)

// metadataOf extracts the Metadata dictionary from a player property map.
func metadataOf(props map[string]dbus.Variant) (map[string]dbus.Variant, bool) {
	v, ok := props["Metadata"]
	if !ok {
		return nil, false
	}
	md, ok := v.Value().(map[string]dbus.Variant)
	return md, ok
}

func stringOf(md map[string]dbus.Variant, key string) string {
	v, ok := md[key]
	if !ok {
		return ""
	}
	switch s := v.Value().(type) {
	case string:
		return s
	case dbus.ObjectPath:
		return string(s)
	}
	return ""
}

// artistOf joins xesam:artist, which is a list, falling back to the album
// artist and then the album.
func artistOf(md map[string]dbus.Variant) string {
	for _, key := range []string{"xesam:artist", "xesam:albumArtist"} {
		if v, ok := md[key]; ok {
			switch a := v.Value().(type) {
			case []string:
				if len(a) > 0 {
					return strings.Join(a, ", ")
				}
			case string:
				if a != "" {
					return a
				}
			}
		}
	}
	return stringOf(md, "xesam:album")
}

func mediaPropertiesOf(props map[string]dbus.Variant) (media.MediaProperties, error) {
	md, ok := metadataOf(props)
	if !ok {
		return media.MediaProperties{}, fmt.Errorf("metadata: %w", media.ErrNotSupported)
	}
	return media.MediaProperties{
		Title:  stringOf(md, "xesam:title"),
		Artist: artistOf(md),
	}, nil
}

func boolOf(props map[string]dbus.Variant, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.Value().(bool)
	return b
}

func int64Of(v dbus.Variant) (int64, bool) {
	switch n := v.Value().(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

// playbackInfoOf maps MPRIS capability flags and status onto PlaybackInfo.
func playbackInfoOf(props map[string]dbus.Variant) (model.PlaybackInfo, error) {
	statusVar, ok := props["PlaybackStatus"]
	if !ok {
		return model.PlaybackInfo{}, fmt.Errorf("playback status: %w", media.ErrNotSupported)
	}

	var info model.PlaybackInfo
	switch s, _ := statusVar.Value().(string); s {
	case "Playing":
		info.Status = model.StatusPlaying
	case "Paused":
		info.Status = model.StatusPaused
	case "Stopped":
		info.Status = model.StatusStopped
	default:
		info.Status = model.StatusUnknown
	}

	canPlay, canPause := boolOf(props, "CanPlay"), boolOf(props, "CanPause")
	if canPlay {
		info.Controls |= model.ControlPlay
	}
	if canPause {
		info.Controls |= model.ControlPause
	}
	if canPlay || canPause {
		info.Controls |= model.ControlToggle
	}
	if boolOf(props, "CanControl") {
		info.Controls |= model.ControlStop
	}
	if boolOf(props, "CanGoNext") {
		info.Controls |= model.ControlNext
	}
	if boolOf(props, "CanGoPrevious") {
		info.Controls |= model.ControlPrev
	}
	if _, ok := props["Shuffle"]; ok {
		info.Controls |= model.ControlShuffle
		info.IsShuffle = boolOf(props, "Shuffle")
	}
	if _, ok := props["LoopStatus"]; ok {
		info.Controls |= model.ControlRepeat
	}
	return info, nil
}

// timelineOf builds a timeline from Position and mpris:length, both in
// microseconds.
func timelineOf(props map[string]dbus.Variant) (media.Timeline, error) {
	posVar, ok := props["Position"]
	if !ok {
		return media.Timeline{}, fmt.Errorf("position: %w", media.ErrNotSupported)
	}
	pos, ok := int64Of(posVar)
	if !ok {
		return media.Timeline{}, fmt.Errorf("position has type %s: %w", posVar.Signature(), media.ErrNotSupported)
	}

	var length int64
	if md, ok := metadataOf(props); ok {
		if v, ok := md["mpris:length"]; ok {
			length, _ = int64Of(v)
		}
	}

	return media.Timeline{
		Start:    0,
		End:      media.Ticks(length * ticksPerMicrosecond),
		Position: media.Ticks(pos * ticksPerMicrosecond),
	}, nil
}
