// Package mpris implements the media platform on top of the MPRIS D-Bus
// interface found on Linux desktops.
package mpris

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"

	"mediabridge/core/media"
	"mediabridge/logger"
	"mediabridge/model"
)

func init() {
	media.Backends.Register("mpris", func(cfg media.BackendConfig) (media.Platform, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// Platform talks to MPRIS players over the session bus.
type Platform struct {
	conn    *dbus.Conn
	cfg     media.BackendConfig
	hub     *signalHub
	icons   *iconResolver
	manager *manager
	cancel  context.CancelFunc
}

// New connects to the session bus and starts routing player signals.
func New(cfg media.BackendConfig) (*Platform, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchInterface(propIface),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchObjectPath(objectPath),
			dbus.WithMatchInterface(playerIface),
			dbus.WithMatchMember("Seeked"),
		},
		{
			dbus.WithMatchInterface(dbusIface),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchOption("arg0namespace", rootIface),
		},
	}
	for _, opts := range matches {
		if err := conn.AddMatchSignal(opts...); err != nil {
			conn.Close()
			return nil, fmt.Errorf("add signal match: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Platform{
		conn:   conn,
		cfg:    cfg,
		hub:    newSignalHub(),
		icons:  newIconResolver(xdgDataDirs(), cfg.IconSize, cfg.ThumbnailMaxBytes),
		cancel: cancel,
	}
	p.manager = &manager{platform: p}

	signals := make(chan *dbus.Signal, 64)
	conn.Signal(signals)
	go p.dispatch(ctx, signals)

	if err := p.icons.watch(ctx); err != nil {
		logger.Warn("icon cache will not follow desktop entry changes", logger.ErrorField(err))
	}

	logger.Info("mpris backend connected", logger.Strings("iconDirs", p.icons.appDirs))
	return p, nil
}

func (p *Platform) dispatch(ctx context.Context, signals <-chan *dbus.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			p.hub.route(sig)
		}
	}
}

// RequestManager returns the bus-wide session manager.
func (p *Platform) RequestManager(ctx context.Context) (media.Manager, error) {
	if !p.conn.Connected() {
		return nil, fmt.Errorf("session bus connection closed")
	}
	return p.manager, nil
}

// AppInfo resolves the player's Identity and the icon of its desktop entry.
func (p *Platform) AppInfo(ctx context.Context, appID string) (model.PlayerInfo, error) {
	obj := p.conn.Object(busPrefix+appID, objectPath)

	var identity dbus.Variant
	if err := obj.CallWithContext(ctx, propGet, 0, rootIface, "Identity").Store(&identity); err != nil {
		return model.PlayerInfo{}, fmt.Errorf("read identity of %s: %w", appID, err)
	}
	info := model.PlayerInfo{Icon: []byte{}}
	info.Name, _ = identity.Value().(string)
	if info.Name == "" {
		info.Name = appID
	}

	entry := appID
	var desktop dbus.Variant
	if err := obj.CallWithContext(ctx, propGet, 0, rootIface, "DesktopEntry").Store(&desktop); err == nil {
		if s, _ := desktop.Value().(string); s != "" {
			entry = s
		}
	}

	icon, err := p.icons.Lookup(entry)
	if err != nil {
		logger.Debug("no icon for player",
			logger.String("playerId", appID), logger.ErrorField(err))
		return info, nil
	}
	info.Icon = icon
	return info, nil
}

// Close stops signal routing and disconnects from the bus.
func (p *Platform) Close() error {
	p.cancel()
	return p.conn.Close()
}

// manager enumerates MPRIS bus names.
type manager struct {
	platform *Platform
}

func (m *manager) Sessions(ctx context.Context) ([]media.Session, error) {
	conn := m.platform.conn

	var names []string
	if err := conn.BusObject().CallWithContext(ctx, listNames, 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, busPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)

	sessions := make([]media.Session, 0, len(players))
	for _, name := range players {
		var owner string
		if err := conn.BusObject().CallWithContext(ctx, getNameOwner, 0, name).Store(&owner); err != nil {
			// the player exited between the two calls
			logger.Debug("skipping vanished player", logger.String("busName", name), logger.ErrorField(err))
			continue
		}
		m.platform.hub.setOwner(name, owner)
		sessions = append(sessions, newSession(m.platform, name))
	}
	return sessions, nil
}

// CurrentSession is the first playing player, or the first player at all.
func (m *manager) CurrentSession(ctx context.Context) (media.Session, error) {
	sessions, err := m.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	for _, s := range sessions {
		if s.(*session).status(ctx) == "Playing" {
			return s, nil
		}
	}
	return sessions[0], nil
}

func (m *manager) OnSessionsChanged(h media.Handler) (media.Token, error) {
	return m.platform.hub.add(kindSessions, "", h), nil
}

func (m *manager) RemoveSessionsChanged(tok media.Token) error {
	return m.platform.hub.remove(kindSessions, tok)
}

func (m *manager) OnCurrentSessionChanged(h media.Handler) (media.Token, error) {
	return m.platform.hub.add(kindCurrent, "", h), nil
}

func (m *manager) RemoveCurrentSessionChanged(tok media.Token) error {
	return m.platform.hub.remove(kindCurrent, tok)
}
