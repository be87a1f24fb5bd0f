package world

// Tick advances players, then agents, then conversations by one tick, ends
// every conversation that finished, and stamps lastViewed.
func (w *World) Tick(now int64) {
	dt := float64(w.cfg.TickDurationMs) / 1000

	for _, p := range w.sortedPlayers() {
		p.TickMovement(dt)
	}

	lc := w.cfg.LifeCycle
	for _, a := range w.sortedAgents() {
		if a.Sleeping() {
			if a.TickSleep(now) {
				w.rememberWaking(a, now)
			}
			continue
		}
		if a.NeedsSleep(now, lc) {
			if cid := a.ConversationID; cid != "" {
				w.leave(&a.Player, cid, now)
			}
			w.leaveInvites(a.ID, now)
			a.FallAsleep(now, lc)
			continue
		}
		a.Homeostasis(now, lc)
		a.TickMovement(dt)
		if w.cfg.Autonomy.Enabled {
			w.think(a, now)
		}
	}

	for _, c := range w.sortedConversations() {
		if c.Tick(now) {
			w.EndConversation(c.ID, now)
		}
	}
	w.lastViewed = now
}
