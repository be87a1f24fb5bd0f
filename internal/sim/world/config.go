package world

import (
	"agentville.ai/internal/sim/tuning"
	"agentville.ai/internal/sim/world/kernel/model"
)

type Config struct {
	ID             string
	Seed           int64
	TickDurationMs int64

	SpawnRadius       float64
	Speed             float64
	NearbyRadius      float64
	MessageTrustDelta float64
	TrustThreshold    float64

	Timings   model.ConversationTimings
	LifeCycle model.LifeCycle
	Autonomy  AutonomyConfig
}

type AutonomyConfig struct {
	Enabled      bool
	ThinkEveryMs int64
	StartRadius  float64
	WanderRadius float64
	WanderChance float64
}

func ConfigFromTuning(id string, seed int64, t tuning.Tuning) Config {
	return Config{
		ID:                id,
		Seed:              seed,
		TickDurationMs:    t.TickDurationMs,
		SpawnRadius:       t.World.SpawnRadius,
		Speed:             t.World.Speed,
		NearbyRadius:      t.World.NearbyRadius,
		MessageTrustDelta: t.World.MessageTrustDelta,
		TrustThreshold:    t.World.TrustThreshold,
		Timings: model.ConversationTimings{
			SpeakingGraceMs:     t.Conversation.SpeakingGraceMs,
			MessageInactivityMs: t.Conversation.MessageInactivityMs,
			TurnInactivityMs:    t.Conversation.TurnInactivityMs,
		},
		LifeCycle: model.LifeCycle{
			SleepDurationMs: t.LifeCycle.SleepDurationMs,
			MaxAwakeMs:      t.LifeCycle.MaxAwakeMs,
			LowEnergy:       t.LifeCycle.LowEnergy,
			InactivityMs:    t.LifeCycle.InactivityMs,
		},
		Autonomy: AutonomyConfig{
			Enabled:      t.Autonomy.Enabled,
			ThinkEveryMs: t.Autonomy.ThinkEveryMs,
			StartRadius:  t.Autonomy.StartRadius,
			WanderRadius: t.Autonomy.WanderRadius,
			WanderChance: t.Autonomy.WanderChance,
		},
	}
}

func (c *Config) applyDefaults() {
	if c.TickDurationMs <= 0 {
		c.TickDurationMs = 16
	}
	if c.Speed <= 0 {
		c.Speed = 4
	}
	if c.MessageTrustDelta <= 0 {
		c.MessageTrustDelta = 0.5
	}
	if c.TrustThreshold <= 0 {
		c.TrustThreshold = model.DefaultTrustThreshold
	}
	if c.Timings == (model.ConversationTimings{}) {
		c.Timings = model.DefaultConversationTimings()
	}
	if c.LifeCycle == (model.LifeCycle{}) {
		c.LifeCycle = model.DefaultLifeCycle()
	}
	if c.Autonomy.ThinkEveryMs <= 0 {
		c.Autonomy.ThinkEveryMs = 2000
	}
}
