package world

import (
	"fmt"
	"math"
	"strings"

	"agentville.ai/internal/sim/world/kernel/model"
)

// AddPlayer creates an idle player, or an agent when isAgent is set, at a
// random spawn point and records its description.
func (w *World) AddPlayer(name, character, description string, isAgent bool, now int64) (model.Participant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidArgs)
	}
	if strings.TrimSpace(character) == "" {
		return nil, fmt.Errorf("%w: empty character", ErrInvalidArgs)
	}
	id := w.allocator().Allocate()
	pos := w.spawnPoint()

	var p model.Participant
	if isAgent {
		a := model.NewAgent(id, name, character, pos, w.cfg.Speed, now)
		w.agents[id] = a
		p = a
	} else {
		pl := model.NewPlayer(id, name, character, pos, w.cfg.Speed, now)
		w.players[id] = pl
		p = pl
	}
	w.descriptions[id] = Description{
		PlayerID:    id,
		Name:        name,
		Character:   character,
		Description: description,
		IsAgent:     isAgent,
	}
	w.dirtyDescs[id] = true
	return p, nil
}

// spawnPoint draws a point uniformly from the spawn disc.
func (w *World) spawnPoint() model.Vec2 {
	r := w.cfg.SpawnRadius
	if r <= 0 {
		return model.Vec2{}
	}
	theta := w.rng.Float64() * 2 * math.Pi
	d := r * math.Sqrt(w.rng.Float64())
	return model.Vec2{X: d * math.Cos(theta), Y: d * math.Sin(theta)}
}

// RemovePlayer takes id out of its conversation, drops it from the live maps
// and archives its final state. It reports whether id was present.
func (w *World) RemovePlayer(id string, now int64) bool {
	p, ok := w.Participant(id)
	if !ok {
		return false
	}
	if cid := p.ActiveConversation(); cid != "" {
		w.leave(p.Base(), cid, now)
	}
	w.leaveInvites(id, now)
	p.Base().Touch(now)

	if a := w.agents[id]; a != nil {
		delete(w.agents, id)
		w.archived = append(w.archived, archivedEntity{id: id, agent: a})
	} else {
		pl := w.players[id]
		delete(w.players, id)
		w.archived = append(w.archived, archivedEntity{id: id, player: pl})
	}
	return true
}

func (w *World) WalkTo(id string, dest model.Vec2, now int64) error {
	p, ok := w.Participant(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if math.IsNaN(dest.X) || math.IsNaN(dest.Y) || math.IsInf(dest.X, 0) || math.IsInf(dest.Y, 0) {
		return fmt.Errorf("%w: destination must be finite", ErrInvalidArgs)
	}
	return p.Base().WalkTo(dest, now)
}

// AgentWakeUp wakes a sleeping agent early. It reports whether the agent was asleep.
func (w *World) AgentWakeUp(id string, now int64) (bool, error) {
	a, err := w.agent(id)
	if err != nil {
		return false, err
	}
	if !a.Sleeping() {
		return false, nil
	}
	a.WakeUp(now)
	w.rememberWaking(a, now)
	return true, nil
}

func (w *World) agent(id string) (*model.Agent, error) {
	if a := w.agents[id]; a != nil {
		return a, nil
	}
	if w.players[id] != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotAgent, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
}
