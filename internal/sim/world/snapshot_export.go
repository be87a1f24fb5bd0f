package world

import (
	"agentville.ai/internal/persistence/snapshot"
	"agentville.ai/internal/sim/world/kernel/model"
)

// ExportSnapshot copies the live state. Must be called from the step goroutine.
func (w *World) ExportSnapshot(engineID string, step uint64) snapshot.SnapshotV1 {
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			WorldID:  w.cfg.ID,
			EngineID: engineID,
			Time:     w.lastViewed,
			Step:     step,
		},
		Seed:           w.cfg.Seed,
		NextID:         w.nextID,
		LastViewed:     w.lastViewed,
		TickDurationMs: w.cfg.TickDurationMs,
		Timings:        w.cfg.Timings,
		LifeCycle:      w.cfg.LifeCycle,
	}
	for _, p := range w.sortedPlayers() {
		snap.Players = append(snap.Players, clonePlayer(p))
	}
	for _, a := range w.sortedAgents() {
		snap.Agents = append(snap.Agents, cloneAgent(a))
	}
	for _, c := range w.sortedConversations() {
		snap.Conversations = append(snap.Conversations, cloneConversation(c))
	}
	for _, p := range w.Participants() {
		if d, ok := w.descriptions[p.EntityID()]; ok {
			snap.Descriptions = append(snap.Descriptions, snapshot.DescriptionV1(d))
		}
	}
	return snap
}

func clonePlayer(p *model.Player) model.Player {
	out := *p
	if p.Pathfinding != nil {
		pf := *p.Pathfinding
		pf.Path = append([]model.Vec2(nil), p.Pathfinding.Path...)
		out.Pathfinding = &pf
	}
	return out
}

func cloneAgent(a *model.Agent) model.Agent {
	out := *a
	out.Player = clonePlayer(&a.Player)
	out.ReputationHistory = append([]model.ReputationEvent(nil), a.ReputationHistory...)
	out.ConversationStarts = append([]int64(nil), a.ConversationStarts...)
	if a.CurrentGoal != nil {
		g := *a.CurrentGoal
		out.CurrentGoal = &g
	}
	out.SocialConnections = make(map[string]*model.SocialConnection, len(a.SocialConnections))
	for id, c := range a.SocialConnections {
		cc := *c
		out.SocialConnections[id] = &cc
	}
	return out
}

func cloneConversation(c *model.Conversation) model.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.Invited = append([]string(nil), c.Invited...)
	if c.LastMessage != nil {
		m := *c.LastMessage
		out.LastMessage = &m
	}
	return out
}
