package mpris

import (
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"mediabridge/core/media"
	"mediabridge/logger"
)

type subscription struct {
	kind    string
	busName string // well-known name; empty for manager-level kinds
	handler media.Handler
}

// signalHub maps D-Bus signals onto registered handlers. Player signals
// arrive from unique connection names, so the hub tracks which well-known
// MPRIS names each connection currently owns.
type signalHub struct {
	mu     sync.Mutex
	next   media.Token
	subs   map[media.Token]subscription
	owners map[string]string              // well-known name -> unique name
	names  map[string]map[string]struct{} // unique name -> well-known names
}

func newSignalHub() *signalHub {
	return &signalHub{
		subs:   make(map[media.Token]subscription),
		owners: make(map[string]string),
		names:  make(map[string]map[string]struct{}),
	}
}

func (h *signalHub) add(kind, busName string, handler media.Handler) media.Token {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	h.subs[h.next] = subscription{kind: kind, busName: busName, handler: handler}
	return h.next
}

func (h *signalHub) remove(kind string, tok media.Token) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[tok]
	if !ok || sub.kind != kind {
		return media.ErrUnknownToken
	}
	delete(h.subs, tok)
	return nil
}

func (h *signalHub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// setOwner records that owner now holds busName. An empty owner means the
// name was released.
func (h *signalHub) setOwner(busName, owner string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.owners[busName]; ok {
		if prev == owner {
			return
		}
		delete(h.names[prev], busName)
		if len(h.names[prev]) == 0 {
			delete(h.names, prev)
		}
		delete(h.owners, busName)
	}
	if owner == "" {
		return
	}
	h.owners[busName] = owner
	if h.names[owner] == nil {
		h.names[owner] = make(map[string]struct{})
	}
	h.names[owner][busName] = struct{}{}
}

// namesOf returns the well-known names held by the unique name sender.
func (h *signalHub) namesOf(sender string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.names[sender]))
	for name := range h.names[sender] {
		names = append(names, name)
	}
	return names
}

// fire runs every handler of kind registered for busName. Handlers are
// invoked outside the lock so they may subscribe or cancel.
func (h *signalHub) fire(kind, busName string) {
	h.mu.Lock()
	var handlers []media.Handler
	for _, sub := range h.subs {
		if sub.kind == kind && sub.busName == busName {
			handlers = append(handlers, sub.handler)
		}
	}
	h.mu.Unlock()

	for _, handler := range handlers {
		handler()
	}
}

// route translates one bus signal into handler notifications.
func (h *signalHub) route(sig *dbus.Signal) {
	switch sig.Name {
	case propChanged:
		if len(sig.Body) < 2 {
			return
		}
		iface, _ := sig.Body[0].(string)
		changed, _ := sig.Body[1].(map[string]dbus.Variant)
		if iface != playerIface {
			return
		}
		kinds := changedKinds(changed)
		for _, name := range h.namesOf(sig.Sender) {
			for _, kind := range kinds {
				h.fire(kind, name)
			}
		}
		if _, ok := changed["PlaybackStatus"]; ok {
			h.fire(kindCurrent, "")
		}

	case seekedSignal:
		for _, name := range h.namesOf(sig.Sender) {
			h.fire(kindTimeline, name)
		}

	case nameOwnerChg:
		if len(sig.Body) < 3 {
			return
		}
		name, _ := sig.Body[0].(string)
		if !strings.HasPrefix(name, busPrefix) {
			return
		}
		newOwner, _ := sig.Body[2].(string)
		h.setOwner(name, newOwner)
		logger.Debug("mpris player owner changed",
			logger.String("busName", name), logger.String("owner", newOwner))
		h.fire(kindSessions, "")
		h.fire(kindCurrent, "")
	}
}

// changedKinds lists the notification kinds affected by a player
// PropertiesChanged payload, each at most once.
func changedKinds(changed map[string]dbus.Variant) []string {
	seen := make(map[string]bool, 3)
	var kinds []string
	mark := func(kind string) {
		if !seen[kind] {
			seen[kind] = true
			kinds = append(kinds, kind)
		}
	}
	for prop := range changed {
		switch prop {
		case "Metadata":
			mark(kindMetadata)
			// track length lives in the metadata
			mark(kindTimeline)
		case "PlaybackStatus", "LoopStatus", "Shuffle",
			"CanPlay", "CanPause", "CanGoNext", "CanGoPrevious", "CanControl":
			mark(kindPlayback)
		case "Position", "Rate":
			mark(kindTimeline)
		}
	}
	return kinds
}
