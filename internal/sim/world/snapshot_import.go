package world

import (
	"fmt"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/persistence/snapshot"
)

// ImportSnapshot builds a world from snap, taking the seed, timings and life
// cycle from the snapshot. The next Save replaces the stored players, agents,
// conversations and descriptions. Messages, memories and archived records are
// kept; they may name ids the snapshot does not have.
func ImportSnapshot(docs docstore.Store, cfg Config, snap snapshot.SnapshotV1) (*World, error) {
	if snap.Header.Version != snapshot.Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	if cfg.ID == "" {
		cfg.ID = snap.Header.WorldID
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: empty world id", ErrInvalidArgs)
	}
	cfg.Seed = snap.Seed
	if snap.TickDurationMs > 0 {
		cfg.TickDurationMs = snap.TickDurationMs
	}
	cfg.Timings = snap.Timings
	cfg.LifeCycle = snap.LifeCycle

	w := newWorld(docs, cfg)
	w.nextID = snap.NextID
	w.lastViewed = snap.LastViewed

	for i := range snap.Players {
		p := clonePlayer(&snap.Players[i])
		w.players[p.ID] = &p
	}
	for i := range snap.Agents {
		a := cloneAgent(&snap.Agents[i])
		a.InitDefaults()
		w.agents[a.ID] = &a
	}
	for i := range snap.Conversations {
		c := cloneConversation(&snap.Conversations[i])
		c.Timings = w.cfg.Timings
		w.conversations[c.ID] = &c
	}
	for _, d := range snap.Descriptions {
		w.descriptions[d.PlayerID] = Description(d)
		w.dirtyDescs[d.PlayerID] = true
	}
	for id := range w.players {
		if w.agents[id] != nil {
			return nil, fmt.Errorf("snapshot: id %s is both player and agent", id)
		}
	}
	w.wipe = liveCollections
	w.BeginStep(w.lastViewed)
	return w, nil
}
