package model

import "errors"

type Status string

const (
	StatusIdle     Status = "idle"
	StatusWalking  Status = "walking"
	StatusTalking  Status = "talking"
	StatusThinking Status = "thinking"
	StatusSleeping Status = "sleeping" // agents only
)

// ArriveEpsilon is the distance (world units) under which a path step counts as reached.
const ArriveEpsilon = 0.1

var ErrBusy = errors.New("entity is busy")

type Pathfinding struct {
	Destination Vec2   `json:"destination"`
	Path        []Vec2 `json:"path"`
	CurrentStep int    `json:"current_step"`
}

// Player is a moving, conversing entity. Agent embeds it.
//
// Invariants: ConversationID != "" iff Status == talking; Pathfinding != nil iff Status == walking.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Character string `json:"character"`

	Position Vec2    `json:"position"`
	Facing   Vec2    `json:"facing"`
	Speed    float64 `json:"speed"`

	ConversationID string       `json:"conversation_id,omitempty"`
	Status         Status       `json:"status"`
	LastActivity   int64        `json:"last_activity"`
	Pathfinding    *Pathfinding `json:"pathfinding,omitempty"`
}

func NewPlayer(id, name, character string, pos Vec2, speed float64, now int64) *Player {
	return &Player{
		ID:           id,
		Name:         name,
		Character:    character,
		Position:     pos,
		Facing:       Vec2{X: 0, Y: 1},
		Speed:        speed,
		Status:       StatusIdle,
		LastActivity: now,
	}
}

func (p *Player) EntityID() string           { return p.ID }
func (p *Player) Pos() Vec2                  { return p.Position }
func (p *Player) ActiveConversation() string { return p.ConversationID }
func (p *Player) Base() *Player              { return p }
func (p *Player) IsAgent() bool              { return false }

func (p *Player) Touch(now int64) {
	if now > p.LastActivity {
		p.LastActivity = now
	}
}

// WalkTo starts a straight-line walk. Walking to the current position is a no-op.
func (p *Player) WalkTo(dest Vec2, now int64) error {
	switch p.Status {
	case StatusTalking, StatusSleeping:
		return ErrBusy
	}
	p.Touch(now)
	if p.Position.Dist(dest) < ArriveEpsilon {
		p.Position = dest
		p.stopWalking()
		return nil
	}
	p.Pathfinding = &Pathfinding{
		Destination: dest,
		Path:        []Vec2{p.Position, dest},
		CurrentStep: 1,
	}
	p.Status = StatusWalking
	return nil
}

func (p *Player) stopWalking() {
	p.Pathfinding = nil
	if p.Status == StatusWalking {
		p.Status = StatusIdle
	}
}

// TickMovement advances a walking entity by speed*dt along its path.
// A step within reach this tick is taken exactly; the last step snaps to the destination.
func (p *Player) TickMovement(dt float64) {
	pf := p.Pathfinding
	if p.Status != StatusWalking || pf == nil {
		return
	}
	budget := p.Speed * dt
	for {
		if pf.CurrentStep >= len(pf.Path) {
			p.Position = pf.Destination
			p.stopWalking()
			return
		}
		target := pf.Path[pf.CurrentStep]
		delta := target.Sub(p.Position)
		dist := delta.Len()
		if dist < ArriveEpsilon || dist <= budget+ArriveEpsilon {
			if dist > 0 {
				p.Facing = delta.Normalize()
			}
			p.Position = target
			budget -= dist
			pf.CurrentStep++
			if pf.CurrentStep >= len(pf.Path) {
				p.Position = pf.Destination
				p.stopWalking()
				return
			}
			if budget <= 0 {
				return
			}
			continue
		}
		dir := delta.Normalize()
		p.Position = p.Position.Add(dir.Scale(budget))
		p.Facing = dir
		return
	}
}

// EnterConversation stops any walk and marks the entity as talking.
func (p *Player) EnterConversation(id string, now int64) {
	p.Pathfinding = nil
	p.ConversationID = id
	p.Status = StatusTalking
	p.Touch(now)
}

func (p *Player) ExitConversation(now int64) {
	p.ConversationID = ""
	if p.Status == StatusTalking {
		p.Status = StatusIdle
	}
	p.Touch(now)
}
