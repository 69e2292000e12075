package media

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"mediabridge/logger"
	"mediabridge/model"
)

// Options tunes a Bridge. The zero value is usable.
type Options struct {
	InfoCache     PlayerInfoCache
	FetchTimeout  time.Duration
	ActionTimeout time.Duration
}

// Bridge discovers OS media sessions, keeps their change subscriptions in
// sync with what the platform enumerates, and returns per-session snapshots.
type Bridge struct {
	registry   *Registry
	managers   *ManagerStore
	notifier   *Notifier
	listeners  *Listeners
	aggregator *Aggregator
	dispatcher *Dispatcher
	tasks      *tasks

	// polls are serialized so one poll's reconciliation never detaches a
	// session another in-flight poll has just attached
	pollMu sync.Mutex
}

// New creates a bridge over platform p.
func New(p Platform, opts Options) *Bridge {
	registry := NewRegistry()
	notifier := NewNotifier()
	listeners := NewListeners(registry, notifier)
	t := &tasks{}

	return &Bridge{
		registry:   registry,
		managers:   NewManagerStore(p),
		notifier:   notifier,
		listeners:  listeners,
		aggregator: NewAggregator(p, listeners, opts.InfoCache, opts.FetchTimeout),
		dispatcher: newDispatcher(registry, t, opts.ActionTimeout),
		tasks:      t,
	}
}

// Poll returns one snapshot per enumerable session, current session first.
// A session whose required fields cannot be read is left out; the poll only
// fails as a whole when the manager or the session list is unavailable.
// Poll runs to completion even if ctx is cancelled, so the registry is never
// left half-reconciled.
func (b *Bridge) Poll(ctx context.Context) ([]model.PlaybackSnapshot, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	manager, err := b.managers.Get(ctx)
	if err != nil {
		return nil, err
	}

	b.tasks.Go("manager subscriptions", func() error {
		return b.managers.EnsureSubscriptions(context.Background(), b.managerChanged)
	})

	sessions, err := manager.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate media sessions: %w", err)
	}

	currentPlayerID := ""
	current, err := manager.CurrentSession(ctx)
	if err != nil {
		logger.Warn("failed to get current media session", logger.ErrorField(err))
	} else if current != nil {
		currentPlayerID = PlayerIDOf(current)
	}

	results := b.aggregator.Aggregate(ctx, sessions, currentPlayerID)

	snapshots := make([]model.PlaybackSnapshot, 0, len(results))
	observed := make(map[string]struct{}, len(results))
	for _, r := range results {
		observed[r.PlayerID] = struct{}{}
		if r.Err != nil {
			logger.Warn("dropping media session from poll",
				logger.String("playerId", r.PlayerID), logger.ErrorField(r.Err))
			continue
		}
		snapshots = append(snapshots, r.Snapshot)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].IsCurrentSession && !snapshots[j].IsCurrentSession
	})

	Reconcile(b.registry, b.listeners, observed)

	logger.Debug("media poll finished",
		logger.Int("sessions", len(sessions)),
		logger.Int("snapshots", len(snapshots)),
		logger.String("currentPlayerId", currentPlayerID),
		logger.Duration("took", time.Since(start)))

	return snapshots, nil
}

func (b *Bridge) managerChanged() {
	b.notifier.Notify()
	logger.Debug("media sessions changed")
}

// SendAction issues action against playerID in the background. It always
// succeeds from the caller's point of view; see Dispatcher.Dispatch.
func (b *Bridge) SendAction(playerID string, action Action, positionMs *uint64) error {
	b.dispatcher.Dispatch(playerID, action, positionMs)
	return nil
}

// Subscribe returns the "media changed" channel and its cancel function.
func (b *Bridge) Subscribe() (<-chan struct{}, func()) {
	return b.notifier.Subscribe()
}

// Registry exposes the session registry for inspection.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// ManagerTokens returns the manager-level subscriptions currently held.
func (b *Bridge) ManagerTokens() map[string]Token {
	return b.managers.Tokens()
}

// Wait blocks until background work started so far has finished.
func (b *Bridge) Wait() {
	b.tasks.Wait()
}

// Close waits for background work, then drops every session and manager
// subscription.
func (b *Bridge) Close() {
	b.pollMu.Lock()
	defer b.pollMu.Unlock()

	b.tasks.Wait()
	b.managers.Close()
	for _, playerID := range b.registry.PlayerIDs() {
		b.listeners.Detach(playerID)
	}
	logger.Info("media bridge closed")
}
