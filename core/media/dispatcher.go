package media

import (
	"context"
	"fmt"
	"time"

	"mediabridge/logger"
)

// Action is a transport command sent to a session.
type Action string

const (
	ActionPlay     Action = "play"
	ActionPause    Action = "pause"
	ActionNext     Action = "next"
	ActionPrev     Action = "prev"
	ActionPosition Action = "position"
)

// Valid reports whether a is a recognized action.
func (a Action) Valid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionNext, ActionPrev, ActionPosition:
		return true
	}
	return false
}

// Dispatcher issues playback actions against registered sessions without
// waiting for the platform to complete them.
type Dispatcher struct {
	registry *Registry
	tasks    *tasks
	timeout  time.Duration
}

func newDispatcher(registry *Registry, t *tasks, timeout time.Duration) *Dispatcher {
	return &Dispatcher{registry: registry, tasks: t, timeout: timeout}
}

// Dispatch looks up playerID and starts the action in the background. It never
// reports failure to the caller: an unknown player, an unknown action, a
// missing position or a platform error are all logged and otherwise ignored.
func (d *Dispatcher) Dispatch(playerID string, action Action, positionMs *uint64) {
	entry, ok := d.registry.Get(playerID)
	if !ok {
		logger.Info("no media player found", logger.String("playerId", playerID))
		return
	}
	if !action.Valid() {
		logger.Warn("ignoring unknown media action",
			logger.String("playerId", playerID), logger.String("action", string(action)))
		return
	}
	if action == ActionPosition && positionMs == nil {
		logger.Warn("position action without a position", logger.String("playerId", playerID))
		return
	}

	var position Ticks
	if positionMs != nil {
		position = TicksFromMillis(*positionMs)
	}

	session := entry.Session
	d.tasks.Go("media action "+string(action), func() error {
		ctx, cancel := d.context()
		defer cancel()

		if err := run(ctx, session, action, position); err != nil {
			return fmt.Errorf("%s for %s: %w", action, playerID, err)
		}
		logger.Debug("media action done",
			logger.String("playerId", playerID), logger.String("action", string(action)))
		return nil
	})
}

func (d *Dispatcher) context() (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), d.timeout)
}

func run(ctx context.Context, session Session, action Action, position Ticks) error {
	switch action {
	case ActionPlay:
		return session.Play(ctx)
	case ActionPause:
		return session.Pause(ctx)
	case ActionNext:
		return session.SkipNext(ctx)
	case ActionPrev:
		return session.SkipPrevious(ctx)
	case ActionPosition:
		return session.ChangePlaybackPosition(ctx, position)
	}
	return fmt.Errorf("unknown action %q", action)
}
