package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// PlaybackSnapshot is the state of one media session at the moment of a poll.
// It is a response value only and is never persisted.
type PlaybackSnapshot struct {
	Title            string              `json:"title"`
	Artist           string              `json:"artist"`
	Thumbnail        Bytes               `json:"thumbnail"`
	PlaybackInfo     *PlaybackInfo       `json:"playback_info"`
	Player           *PlayerInfo         `json:"player"`
	PlayerID         string              `json:"player_id"`
	Timeline         *TimelineProperties `json:"timeline_properties"`
	IsCurrentSession bool                `json:"is_current_session"`
}

// Bytes is image data. It is encoded in JSON as an array of numbers, the
// shape widget front ends read, not as a base64 string.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 2+len(b)*4)
	buf = append(buf, '[')
	for i, v := range b {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, uint64(v), 10)
	}
	return append(buf, ']'), nil
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("bytes must be a number array: %w", err)
	}
	out := make(Bytes, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte value %d out of range", n)
		}
		out[i] = byte(n)
	}
	*b = out
	return nil
}

// PlaybackInfo describes which transport controls a session accepts and what it is doing.
type PlaybackInfo struct {
	Controls  PlaybackControls `json:"controls"`
	Status    PlaybackStatus   `json:"status"`
	IsShuffle bool             `json:"is_shuffle"`
}

// PlayerInfo is the display name and logo of the application owning a session.
type PlayerInfo struct {
	Name string `json:"name"`
	Icon Bytes  `json:"icon"`
}

// TimelineProperties holds the session timeline in milliseconds.
type TimelineProperties struct {
	StartTime int64 `json:"start_time"`
	EndTime   int64 `json:"end_time"`
	Position  int64 `json:"position"`
}

// PlaybackControls is the bitmask of transport controls a session accepts.
type PlaybackControls uint8

const (
	ControlPlay PlaybackControls = 1 << iota
	ControlPause
	ControlStop
	ControlNext
	ControlPrev
	ControlToggle
	ControlShuffle
	ControlRepeat
)

// Has reports whether every bit of c is set.
func (p PlaybackControls) Has(c PlaybackControls) bool {
	return p&c == c
}

type playbackControlsJSON struct {
	PlayEnabled    bool `json:"play_enabled"`
	PauseEnabled   bool `json:"pause_enabled"`
	StopEnabled    bool `json:"stop_enabled"`
	NextEnabled    bool `json:"next_enabled"`
	PrevEnabled    bool `json:"prev_enabled"`
	ToggleEnabled  bool `json:"toggle_enabled"`
	ShuffleEnabled bool `json:"shuffle_enabled"`
	RepeatEnabled  bool `json:"repeat_enabled"`
}

// MarshalJSON writes the bitmask as the object of *_enabled flags the widgets read.
func (p PlaybackControls) MarshalJSON() ([]byte, error) {
	return json.Marshal(playbackControlsJSON{
		PlayEnabled:    p.Has(ControlPlay),
		PauseEnabled:   p.Has(ControlPause),
		StopEnabled:    p.Has(ControlStop),
		NextEnabled:    p.Has(ControlNext),
		PrevEnabled:    p.Has(ControlPrev),
		ToggleEnabled:  p.Has(ControlToggle),
		ShuffleEnabled: p.Has(ControlShuffle),
		RepeatEnabled:  p.Has(ControlRepeat),
	})
}

// UnmarshalJSON reads the *_enabled object back into a bitmask.
func (p *PlaybackControls) UnmarshalJSON(data []byte) error {
	var raw playbackControlsJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var c PlaybackControls
	set := func(flag bool, bit PlaybackControls) {
		if flag {
			c |= bit
		}
	}
	set(raw.PlayEnabled, ControlPlay)
	set(raw.PauseEnabled, ControlPause)
	set(raw.StopEnabled, ControlStop)
	set(raw.NextEnabled, ControlNext)
	set(raw.PrevEnabled, ControlPrev)
	set(raw.ToggleEnabled, ControlToggle)
	set(raw.ShuffleEnabled, ControlShuffle)
	set(raw.RepeatEnabled, ControlRepeat)
	*p = c
	return nil
}

// PlaybackStatus is the playback state of a session.
type PlaybackStatus int

const (
	StatusUnknown PlaybackStatus = iota
	StatusClosed
	StatusOpened
	StatusChanging
	StatusStopped
	StatusPlaying
	StatusPaused
)

var playbackStatusNames = map[PlaybackStatus]string{
	StatusUnknown:  "unknown",
	StatusClosed:   "closed",
	StatusOpened:   "opened",
	StatusChanging: "changing",
	StatusStopped:  "stopped",
	StatusPlaying:  "playing",
	StatusPaused:   "paused",
}

func (s PlaybackStatus) String() string {
	if name, ok := playbackStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s PlaybackStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PlaybackStatus) UnmarshalText(text []byte) error {
	status, err := ParsePlaybackStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// ParsePlaybackStatus converts a lowercase status name back to a PlaybackStatus.
func ParsePlaybackStatus(name string) (PlaybackStatus, error) {
	for status, n := range playbackStatusNames {
		if n == name {
			return status, nil
		}
	}
	return StatusUnknown, fmt.Errorf("unknown playback status %q", name)
}
