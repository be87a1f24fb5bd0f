// Package decision holds the per-agent conversation heuristics. Every function
// takes its random source explicitly so callers can pin outcomes with a seed.
package decision

import (
	"math/rand"
	"time"

	"agentville.ai/internal/sim/world/logic/mathx"
)

const neutral = 50.0

type StartContext struct {
	Proximity         float64 // distance to the candidate, world units
	SharedHistory     bool
	Mood              float64 // 0..100
	TrustLevel        float64 // 0..100, per-peer
	RecentInitiations int     // conversations started in the trailing hour
}

// StartProbability is the deterministic part of ShouldStartConversation.
func StartProbability(c StartContext) float64 {
	p := 0.10
	switch {
	case c.Proximity < 2:
		p += 0.30
	case c.Proximity < 5:
		p += 0.10
	}
	if c.SharedHistory {
		p += 0.20
	}
	p += deviation(c.Mood) * 0.20
	p += deviation(c.TrustLevel) * 0.15
	if c.RecentInitiations > 3 {
		p /= 2
	}
	return mathx.Clamp01(p)
}

func ShouldStartConversation(r *rand.Rand, c StartContext) bool {
	return r.Float64() < StartProbability(c)
}

type LeaveContext struct {
	Length           int           // messages so far
	LastMessageAge   time.Duration // time since the last message
	ParticipantCount int
	Mood             float64
	HasGoals         bool
}

// maxLeave keeps a single evaluation from making an agent churn out instantly.
const maxLeave = 0.8

func LeaveProbability(c LeaveContext) float64 {
	p := 0.10
	switch {
	case c.Length > 15:
		p += 0.30
	case c.Length > 8:
		p += 0.10
	}
	switch {
	case c.LastMessageAge > 5*time.Minute:
		p += 0.40
	case c.LastMessageAge > 2*time.Minute:
		p += 0.20
	}
	if c.ParticipantCount > 3 {
		p += 0.20
	}
	if c.Mood < 40 {
		p += 0.20
	}
	if c.HasGoals {
		p += 0.15
	}
	return mathx.Clamp(p, 0, maxLeave)
}

func ShouldLeaveConversation(r *rand.Rand, c LeaveContext) bool {
	return r.Float64() < LeaveProbability(c)
}

// deviation maps 0..100 onto -1..1 around the neutral midpoint.
func deviation(v float64) float64 {
	return mathx.Clamp((mathx.Clamp100(v)-neutral)/neutral, -1, 1)
}
