package model

import (
	"math"
	"testing"
)

func TestPlayer_WalkToConverges(t *testing.T) {
	cases := []struct {
		name  string
		dest  Vec2
		speed float64
		dt    float64
	}{
		{"axis", Vec2{X: 10, Y: 0}, 0.75, 0.016},
		{"diagonal", Vec2{X: 3, Y: 4}, 1, 0.25},
		{"exact multiple", Vec2{X: 0, Y: 2}, 1, 0.5},
		{"shorter than one step", Vec2{X: 0.3, Y: 0}, 5, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPlayer("1", "p", "f1", Vec2{}, tc.speed, 0)
			if err := p.WalkTo(tc.dest, 0); err != nil {
				t.Fatalf("WalkTo: %v", err)
			}
			if p.Status != StatusWalking || p.Pathfinding == nil {
				t.Fatalf("expected walking with pathfinding, got %s %+v", p.Status, p.Pathfinding)
			}

			limit := int(math.Ceil(tc.dest.Len() / (tc.speed * tc.dt)))
			ticks := 0
			for p.Status == StatusWalking {
				p.TickMovement(tc.dt)
				ticks++
				if ticks > limit {
					t.Fatalf("did not arrive within %d ticks (pos=%+v)", limit, p.Position)
				}
			}
			if !p.Position.Equal(tc.dest) {
				t.Fatalf("position: got %+v want %+v", p.Position, tc.dest)
			}
			if p.Status != StatusIdle || p.Pathfinding != nil {
				t.Fatalf("expected idle without pathfinding, got %s %+v", p.Status, p.Pathfinding)
			}
		})
	}
}

func TestPlayer_FacingIsUnitVector(t *testing.T) {
	p := NewPlayer("1", "p", "f1", Vec2{}, 1, 0)
	_ = p.WalkTo(Vec2{X: 30, Y: 40}, 0)
	p.TickMovement(0.1)
	if got := p.Facing.Len(); math.Abs(got-1) > 1e-9 {
		t.Fatalf("facing length = %v", got)
	}
	if math.Abs(p.Facing.X-0.6) > 1e-9 || math.Abs(p.Facing.Y-0.8) > 1e-9 {
		t.Fatalf("facing = %+v", p.Facing)
	}
}

func TestPlayer_WalkToRejectedWhileTalking(t *testing.T) {
	p := NewPlayer("1", "p", "f1", Vec2{}, 1, 0)
	_ = p.WalkTo(Vec2{X: 5}, 0)
	p.EnterConversation("c1", 10)
	if p.Pathfinding != nil || p.Status != StatusTalking {
		t.Fatalf("entering a conversation should stop walking: %s %+v", p.Status, p.Pathfinding)
	}
	if err := p.WalkTo(Vec2{X: 1}, 20); err != ErrBusy {
		t.Fatalf("WalkTo while talking: got %v want ErrBusy", err)
	}
	p.ExitConversation(30)
	if p.Status != StatusIdle || p.ConversationID != "" {
		t.Fatalf("after exit: %s %q", p.Status, p.ConversationID)
	}
}

func TestPlayer_WalkToSelfIsNoop(t *testing.T) {
	p := NewPlayer("1", "p", "f1", Vec2{X: 2, Y: 2}, 1, 0)
	if err := p.WalkTo(Vec2{X: 2, Y: 2}, 0); err != nil {
		t.Fatalf("WalkTo: %v", err)
	}
	if p.Status != StatusIdle || p.Pathfinding != nil {
		t.Fatalf("expected idle, got %s", p.Status)
	}
}
