package media

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mediabridge/logger"
	"mediabridge/model"
)

// PlayerInfoCache stores resolved player display info between polls.
// GetPlayerInfo returns (nil, nil) on a miss.
type PlayerInfoCache interface {
	GetPlayerInfo(ctx context.Context, playerID string) (*model.PlayerInfo, error)
	SetPlayerInfo(ctx context.Context, playerID string, info model.PlayerInfo) error
}

// Result is the outcome of collecting one session. PlayerID is always set,
// even when Err is not nil.
type Result struct {
	PlayerID string
	Snapshot model.PlaybackSnapshot
	Err      error
}

// Aggregator builds one snapshot per session concurrently.
type Aggregator struct {
	platform     Platform
	listeners    *Listeners
	infoCache    PlayerInfoCache
	fetchTimeout time.Duration
}

// NewAggregator creates an aggregator. infoCache may be nil; fetchTimeout <= 0
// means property reads only end with ctx.
func NewAggregator(p Platform, listeners *Listeners, infoCache PlayerInfoCache, fetchTimeout time.Duration) *Aggregator {
	return &Aggregator{
		platform:     p,
		listeners:    listeners,
		infoCache:    infoCache,
		fetchTimeout: fetchTimeout,
	}
}

// Aggregate collects every session on its own goroutine and returns the
// results in the order the sessions were given. A failing or panicking
// session only affects its own Result.
func (a *Aggregator) Aggregate(ctx context.Context, sessions []Session, currentPlayerID string) []Result {
	results := make([]Result, len(sessions))

	var wg sync.WaitGroup
	for i, session := range sessions {
		wg.Add(1)
		go func(i int, session Session) {
			defer wg.Done()
			results[i] = a.collect(ctx, session, currentPlayerID)
		}(i, session)
	}
	wg.Wait()

	return results
}

// PlayerIDOf resolves the session's owning application, falling back to
// UnknownPlayerID.
func PlayerIDOf(session Session) string {
	id, err := session.SourceAppID()
	if err != nil || id == "" {
		return UnknownPlayerID
	}
	return id
}

func (a *Aggregator) collect(ctx context.Context, session Session, currentPlayerID string) (res Result) {
	res.PlayerID = PlayerIDOf(session)
	defer func() {
		if r := recover(); r != nil {
			res.Snapshot = model.PlaybackSnapshot{}
			res.Err = fmt.Errorf("session task for %s panicked: %v", res.PlayerID, r)
		}
	}()

	if err := a.listeners.Attach(res.PlayerID, session); err != nil {
		logger.Warn("failed to attach session listeners, retrying on next poll",
			logger.String("playerId", res.PlayerID), logger.ErrorField(err))
	}

	var props MediaProperties
	err := a.fetch(ctx, func(fetchCtx context.Context) (err error) {
		props, err = session.MediaProperties(fetchCtx)
		return err
	})
	if err != nil {
		res.Err = fmt.Errorf("read media properties of %s: %w", res.PlayerID, err)
		return res
	}

	snap := model.PlaybackSnapshot{
		Title:            props.Title,
		Artist:           props.Artist,
		Thumbnail:        []byte{},
		PlayerID:         res.PlayerID,
		IsCurrentSession: res.PlayerID == currentPlayerID,
	}

	// Optional reads each get their own deadline; a slow one only loses
	// its own field.
	var thumb *[]byte
	a.fetch(ctx, func(fetchCtx context.Context) error {
		thumb = optional(session.Thumbnail(fetchCtx))
		return nil
	})
	if thumb != nil && *thumb != nil {
		snap.Thumbnail = *thumb
	}
	a.fetch(ctx, func(fetchCtx context.Context) error {
		snap.PlaybackInfo = optional(session.PlaybackInfo(fetchCtx))
		return nil
	})
	a.fetch(ctx, func(fetchCtx context.Context) error {
		if tl := optional(session.Timeline(fetchCtx)); tl != nil {
			tp := tl.Properties()
			snap.Timeline = &tp
		}
		return nil
	})

	info := a.playerInfo(ctx, res.PlayerID)
	snap.Player = &info

	res.Snapshot = snap
	return res
}

// playerInfo resolves the display name and icon of playerID. Any failure
// yields an empty name and icon.
func (a *Aggregator) playerInfo(ctx context.Context, playerID string) model.PlayerInfo {
	empty := model.PlayerInfo{Name: "", Icon: []byte{}}
	if playerID == UnknownPlayerID {
		return empty
	}

	if a.infoCache != nil {
		cached, err := a.infoCache.GetPlayerInfo(ctx, playerID)
		if err != nil {
			logger.Debug("player info cache read failed",
				logger.String("playerId", playerID), logger.ErrorField(err))
		} else if cached != nil {
			return *cached
		}
	}

	fetchCtx, cancel := a.withFetchTimeout(ctx)
	defer cancel()

	info, err := a.platform.AppInfo(fetchCtx, playerID)
	if err != nil {
		logger.Warn("failed to resolve player info",
			logger.String("playerId", playerID), logger.ErrorField(err))
		return empty
	}
	if info.Icon == nil {
		info.Icon = []byte{}
	}

	if a.infoCache != nil {
		if err := a.infoCache.SetPlayerInfo(ctx, playerID, info); err != nil {
			logger.Debug("player info cache write failed",
				logger.String("playerId", playerID), logger.ErrorField(err))
		}
	}
	return info
}

// fetch runs read under a fresh fetch deadline derived from ctx.
func (a *Aggregator) fetch(ctx context.Context, read func(context.Context) error) error {
	fetchCtx, cancel := a.withFetchTimeout(ctx)
	defer cancel()
	return read(fetchCtx)
}

func (a *Aggregator) withFetchTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.fetchTimeout)
}
