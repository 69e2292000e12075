package media

import (
	"fmt"

	"mediabridge/logger"
)

// Listeners attaches and detaches per-session change notifications, recording
// them in a Registry.
type Listeners struct {
	registry *Registry
	notifier *Notifier
}

// NewListeners creates a listener manager backed by registry whose handlers
// signal notifier.
func NewListeners(registry *Registry, notifier *Notifier) *Listeners {
	return &Listeners{registry: registry, notifier: notifier}
}

func (l *Listeners) handler(playerID, kind string) Handler {
	return func() {
		l.notifier.Notify()
		logger.Debug("media session changed",
			logger.String("playerId", playerID),
			logger.String("kind", kind))
	}
}

// Attach subscribes to the session's metadata, playback and timeline
// notifications. It is a no-op when playerID is already attached. When a
// subscribe call fails nothing is recorded, so the next poll retries.
func (l *Listeners) Attach(playerID string, session Session) error {
	if l.registry.Contains(playerID) {
		return nil
	}

	var tokens SessionTokens
	var err error

	if tokens.Metadata, err = session.OnMediaPropertiesChanged(l.handler(playerID, "metadata")); err != nil {
		return fmt.Errorf("subscribe metadata changes for %s: %w", playerID, err)
	}
	if tokens.Playback, err = session.OnPlaybackInfoChanged(l.handler(playerID, "playback")); err != nil {
		l.removeTokens(playerID, session, tokens, true, false, false)
		return fmt.Errorf("subscribe playback changes for %s: %w", playerID, err)
	}
	if tokens.Timeline, err = session.OnTimelinePropertiesChanged(l.handler(playerID, "timeline")); err != nil {
		l.removeTokens(playerID, session, tokens, true, true, false)
		return fmt.Errorf("subscribe timeline changes for %s: %w", playerID, err)
	}

	if !l.registry.InsertIfAbsent(playerID, Entry{Session: session, Tokens: tokens}) {
		// another goroutine attached the same player while we were subscribing
		l.removeTokens(playerID, session, tokens, true, true, true)
		return nil
	}

	logger.Info("attached listeners", logger.String("playerId", playerID))
	return nil
}

// Detach cancels the three subscriptions of playerID and drops its entry.
// Unknown ids are a no-op. Cancel errors are logged and not returned because
// the platform handle may already be gone with the session.
func (l *Listeners) Detach(playerID string) {
	entry, ok := l.registry.Remove(playerID)
	if !ok {
		logger.Debug("no listeners to detach", logger.String("playerId", playerID))
		return
	}

	l.removeTokens(playerID, entry.Session, entry.Tokens, true, true, true)
	logger.Info("detached listeners", logger.String("playerId", playerID))
}

func (l *Listeners) removeTokens(playerID string, session Session, tokens SessionTokens, metadata, playback, timeline bool) {
	if metadata {
		if err := session.RemoveMediaPropertiesChanged(tokens.Metadata); err != nil {
			logger.Warn("failed to remove metadata listener",
				logger.String("playerId", playerID), logger.ErrorField(err))
		}
	}
	if playback {
		if err := session.RemovePlaybackInfoChanged(tokens.Playback); err != nil {
			logger.Warn("failed to remove playback listener",
				logger.String("playerId", playerID), logger.ErrorField(err))
		}
	}
	if timeline {
		if err := session.RemoveTimelinePropertiesChanged(tokens.Timeline); err != nil {
			logger.Warn("failed to remove timeline listener",
				logger.String("playerId", playerID), logger.ErrorField(err))
		}
	}
}
