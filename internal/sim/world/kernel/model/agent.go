package model

import (
	"math"

	"agentville.ai/internal/sim/world/logic/mathx"
)

const (
	MaxReputationHistory  = 100
	DefaultTrustThreshold = 60.0
	neutralTrust          = 50.0

	hourMs = int64(60 * 60 * 1000)
)

type ReputationEvent struct {
	Timestamp int64   `json:"timestamp"`
	Action    string  `json:"action"`
	Impact    float64 `json:"impact"`
	Context   string  `json:"context,omitempty"`
}

type SocialConnection struct {
	TrustLevel       float64 `json:"trust_level"`
	InteractionCount int     `json:"interaction_count"`
	LastInteraction  int64   `json:"last_interaction"`
}

type Goal struct {
	Type     string `json:"type"`
	Target   string `json:"target,omitempty"`
	Priority int    `json:"priority"`
	Deadline int64  `json:"deadline,omitempty"`
}

// EmotionalState fields are all bounded to [0,100].
type EmotionalState struct {
	Happiness   float64 `json:"happiness"`
	Stress      float64 `json:"stress"`
	Energy      float64 `json:"energy"`
	Sociability float64 `json:"sociability"`
}

// LifeCycle holds the sleep and homeostasis thresholds. Per-tick deltas are
// calibrated against a 16ms tick.
type LifeCycle struct {
	SleepDurationMs int64
	MaxAwakeMs      int64
	LowEnergy       float64
	InactivityMs    int64
}

func DefaultLifeCycle() LifeCycle {
	return LifeCycle{
		SleepDurationMs: 8 * hourMs,
		MaxAwakeMs:      16 * hourMs,
		LowEnergy:       30,
		InactivityMs:    60 * 1000,
	}
}

type Agent struct {
	Player

	TrustScore        float64                      `json:"trust_score"`
	ReputationHistory []ReputationEvent            `json:"reputation_history,omitempty"`
	SocialConnections map[string]*SocialConnection `json:"social_connections,omitempty"`
	CurrentGoal       *Goal                        `json:"current_goal,omitempty"`
	Emotions          EmotionalState               `json:"emotional_state"`

	LastWakeUp                int64   `json:"last_wake_up"`
	SleepUntil                int64   `json:"sleep_until,omitempty"`
	MemoryImportanceThreshold float64 `json:"memory_importance_threshold"`

	// Initiation timestamps within the trailing hour (anti-spam input).
	ConversationStarts []int64 `json:"conversation_starts,omitempty"`
	LastThought        int64   `json:"last_thought,omitempty"`
}

func NewAgent(id, name, character string, pos Vec2, speed float64, now int64) *Agent {
	return &Agent{
		Player:            *NewPlayer(id, name, character, pos, speed, now),
		TrustScore:        neutralTrust,
		SocialConnections: map[string]*SocialConnection{},
		Emotions: EmotionalState{
			Happiness:   50,
			Stress:      20,
			Energy:      80,
			Sociability: 50,
		},
		LastWakeUp:                now,
		MemoryImportanceThreshold: 3,
	}
}

func (a *Agent) IsAgent() bool { return true }

// InitDefaults repairs fields that may be missing from older records.
func (a *Agent) InitDefaults() {
	if a.SocialConnections == nil {
		a.SocialConnections = map[string]*SocialConnection{}
	}
	if a.Status == "" {
		a.Status = StatusIdle
	}
}

// UpdateTrustScore applies delta to the global trust score and couples it into mood.
// Gains lift happiness more than losses depress it, so the update is not its own inverse.
func (a *Agent) UpdateTrustScore(delta float64, action, context string, now int64) {
	a.TrustScore = mathx.Clamp100(a.TrustScore + delta)

	a.ReputationHistory = append(a.ReputationHistory, ReputationEvent{
		Timestamp: now,
		Action:    action,
		Impact:    delta,
		Context:   context,
	})
	if n := len(a.ReputationHistory); n > MaxReputationHistory {
		trimmed := make([]ReputationEvent, MaxReputationHistory)
		copy(trimmed, a.ReputationHistory[n-MaxReputationHistory:])
		a.ReputationHistory = trimmed
	}

	e := &a.Emotions
	if delta > 0 {
		e.Happiness = mathx.Clamp100(e.Happiness + 0.5*delta)
		e.Stress = mathx.Clamp100(e.Stress - 0.3*delta)
	} else {
		e.Stress = mathx.Clamp100(e.Stress + 0.4*math.Abs(delta))
		e.Happiness = mathx.Clamp100(e.Happiness + 0.3*delta)
	}
}

// UpdateSocialConnection adjusts the per-peer trust level. Any interaction,
// positive or not, makes the agent a little more sociable.
func (a *Agent) UpdateSocialConnection(peerID string, trustDelta float64, now int64) *SocialConnection {
	if a.SocialConnections == nil {
		a.SocialConnections = map[string]*SocialConnection{}
	}
	c := a.SocialConnections[peerID]
	if c == nil {
		c = &SocialConnection{TrustLevel: neutralTrust}
		a.SocialConnections[peerID] = c
	}
	c.TrustLevel = mathx.Clamp100(c.TrustLevel + trustDelta)
	c.InteractionCount++
	c.LastInteraction = now
	a.Emotions.Sociability = mathx.Clamp100(a.Emotions.Sociability + 1)
	return c
}

// PeerTrust returns the per-peer trust level, neutral for strangers.
func (a *Agent) PeerTrust(peerID string) float64 {
	if c := a.SocialConnections[peerID]; c != nil {
		return c.TrustLevel
	}
	return neutralTrust
}

func (a *Agent) KnowsPeer(peerID string) bool {
	c := a.SocialConnections[peerID]
	return c != nil && c.InteractionCount > 0
}

// ShouldTrust blends personal history (70%) with global reputation (30%),
// shifted by the current mood.
func (a *Agent) ShouldTrust(peerID string, threshold float64) bool {
	score := 0.7*a.PeerTrust(peerID) + 0.3*a.TrustScore
	score += 0.1 * (a.Emotions.Happiness - a.Emotions.Stress)
	return score >= threshold
}

func (a *Agent) Sleeping() bool { return a.Status == StatusSleeping }

// NeedsSleep reports whether an awake agent is too tired or has been awake too long.
func (a *Agent) NeedsSleep(now int64, lc LifeCycle) bool {
	if a.Sleeping() {
		return false
	}
	return a.Emotions.Energy < lc.LowEnergy || now-a.LastWakeUp > lc.MaxAwakeMs
}

// FallAsleep must only be called once the agent has left any conversation.
func (a *Agent) FallAsleep(now int64, lc LifeCycle) {
	a.Pathfinding = nil
	a.Status = StatusSleeping
	a.SleepUntil = now + lc.SleepDurationMs
	a.Emotions.Energy = mathx.Clamp100(a.Emotions.Energy + 20)
}

// TickSleep wakes the agent once sleep_until has passed. It reports whether the agent woke.
func (a *Agent) TickSleep(now int64) bool {
	if !a.Sleeping() || now < a.SleepUntil {
		return false
	}
	a.WakeUp(now)
	return true
}

func (a *Agent) WakeUp(now int64) {
	a.Status = StatusIdle
	a.SleepUntil = 0
	a.LastWakeUp = now
	a.Emotions.Energy = 100
	a.Emotions.Stress = mathx.Clamp100(a.Emotions.Stress - 20)
}

// Homeostasis applies the small per-tick drift of an awake agent.
func (a *Agent) Homeostasis(now int64, lc LifeCycle) {
	e := &a.Emotions
	e.Energy = mathx.Clamp100(e.Energy + 0.1)
	e.Stress = mathx.Clamp100(e.Stress - 0.05)
	if now-a.LastActivity > lc.InactivityMs {
		e.Sociability = mathx.Clamp100(e.Sociability - 0.1)
	}
}

// RecordConversationStart remembers an initiation and drops entries older than an hour.
func (a *Agent) RecordConversationStart(now int64) {
	a.pruneStarts(now)
	a.ConversationStarts = append(a.ConversationStarts, now)
}

// RecentStarts counts initiations within the trailing hour.
func (a *Agent) RecentStarts(now int64) int {
	a.pruneStarts(now)
	return len(a.ConversationStarts)
}

func (a *Agent) pruneStarts(now int64) {
	keep := a.ConversationStarts[:0]
	for _, ts := range a.ConversationStarts {
		if now-ts <= hourMs {
			keep = append(keep, ts)
		}
	}
	a.ConversationStarts = keep
}
