package media

import "mediabridge/logger"

// Reconcile detaches every registered player that was not observed in the
// poll that just finished. It returns the detached ids.
func Reconcile(registry *Registry, listeners *Listeners, observed map[string]struct{}) []string {
	var stale []string
	for _, playerID := range registry.PlayerIDs() {
		if _, ok := observed[playerID]; !ok {
			stale = append(stale, playerID)
		}
	}

	for _, playerID := range stale {
		logger.Info("player vanished, removing listeners", logger.String("playerId", playerID))
		listeners.Detach(playerID)
	}
	return stale
}
