package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickDurationMs     int64 `yaml:"tick_duration_ms"`
	StepIntervalMs     int64 `yaml:"step_interval_ms"`
	MaxInputsPerStep   int   `yaml:"max_inputs_per_step"`
	SnapshotEverySteps int   `yaml:"snapshot_every_steps"`

	World        World        `yaml:"world"`
	Conversation Conversation `yaml:"conversation"`
	LifeCycle    LifeCycle    `yaml:"life_cycle"`
	Memory       Memory       `yaml:"memory"`
	Autonomy     Autonomy     `yaml:"autonomy"`
	RateLimits   RateLimits   `yaml:"rate_limits"`

	Characters []Character `yaml:"characters"`
}

type World struct {
	SpawnRadius  float64 `yaml:"spawn_radius"`
	Speed        float64 `yaml:"speed"` // world units per second
	NearbyRadius float64 `yaml:"nearby_radius"`
	// MessageTrustDelta nudges agents' social connection toward whoever speaks to them.
	MessageTrustDelta float64 `yaml:"message_trust_delta"`
	TrustThreshold    float64 `yaml:"trust_threshold"`
}

type Conversation struct {
	SpeakingGraceMs     int64 `yaml:"speaking_grace_ms"`
	MessageInactivityMs int64 `yaml:"message_inactivity_ms"`
	TurnInactivityMs    int64 `yaml:"turn_inactivity_ms"`
}

type LifeCycle struct {
	SleepDurationMs int64   `yaml:"sleep_duration_ms"`
	MaxAwakeMs      int64   `yaml:"max_awake_ms"`
	LowEnergy       float64 `yaml:"low_energy"`
	InactivityMs    int64   `yaml:"inactivity_ms"`
}

type Memory struct {
	MaxPerAgent         int     `yaml:"max_per_agent"`
	MinImportanceToKeep float64 `yaml:"min_importance_to_keep"`
	RetrieveLimit       int     `yaml:"retrieve_limit"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
}

type Autonomy struct {
	Enabled      bool    `yaml:"enabled"`
	ThinkEveryMs int64   `yaml:"think_every_ms"`
	StartRadius  float64 `yaml:"start_radius"`
	WanderRadius float64 `yaml:"wander_radius"`
	WanderChance float64 `yaml:"wander_chance"`
}

type RateLimits struct {
	CommandsPerSecond float64 `yaml:"commands_per_second"`
	CommandBurst      int     `yaml:"command_burst"`
}

// Character seeds a fresh world.
type Character struct {
	Name        string `yaml:"name"`
	Character   string `yaml:"character"`
	Description string `yaml:"description"`
	Agent       bool   `yaml:"agent"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:    "1.0",
		TickDurationMs:     16,
		StepIntervalMs:     16,
		MaxInputsPerStep:   100,
		SnapshotEverySteps: 0,
		World: World{
			SpawnRadius:       20,
			Speed:             4,
			NearbyRadius:      5,
			MessageTrustDelta: 0.5,
			TrustThreshold:    60,
		},
		Conversation: Conversation{
			SpeakingGraceMs:     10_000,
			MessageInactivityMs: 60_000,
			TurnInactivityMs:    30_000,
		},
		LifeCycle: LifeCycle{
			SleepDurationMs: 8 * 60 * 60 * 1000,
			MaxAwakeMs:      16 * 60 * 60 * 1000,
			LowEnergy:       30,
			InactivityMs:    60_000,
		},
		Memory: Memory{
			MaxPerAgent:         500,
			MinImportanceToKeep: 7,
			RetrieveLimit:       5,
			EmbeddingDimensions: 64,
		},
		Autonomy: Autonomy{
			Enabled:      false,
			ThinkEveryMs: 2_000,
			StartRadius:  5,
			WanderRadius: 10,
			WanderChance: 0.1,
		},
		RateLimits: RateLimits{
			CommandsPerSecond: 20,
			CommandBurst:      40,
		},
	}
}

// Load reads path over Defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values left by a partial file.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	d := Defaults()
	if t.TickDurationMs <= 0 {
		t.TickDurationMs = d.TickDurationMs
	}
	if t.StepIntervalMs <= 0 {
		t.StepIntervalMs = t.TickDurationMs
	}
	if t.MaxInputsPerStep <= 0 {
		t.MaxInputsPerStep = d.MaxInputsPerStep
	}
	if t.World.Speed <= 0 {
		t.World.Speed = d.World.Speed
	}
	if t.World.TrustThreshold <= 0 {
		t.World.TrustThreshold = d.World.TrustThreshold
	}
	if t.Conversation.SpeakingGraceMs <= 0 {
		t.Conversation.SpeakingGraceMs = d.Conversation.SpeakingGraceMs
	}
	if t.Conversation.MessageInactivityMs <= 0 {
		t.Conversation.MessageInactivityMs = d.Conversation.MessageInactivityMs
	}
	if t.Conversation.TurnInactivityMs <= 0 {
		t.Conversation.TurnInactivityMs = d.Conversation.TurnInactivityMs
	}
	if t.LifeCycle.SleepDurationMs <= 0 {
		t.LifeCycle.SleepDurationMs = d.LifeCycle.SleepDurationMs
	}
	if t.LifeCycle.MaxAwakeMs <= 0 {
		t.LifeCycle.MaxAwakeMs = d.LifeCycle.MaxAwakeMs
	}
	if t.LifeCycle.InactivityMs <= 0 {
		t.LifeCycle.InactivityMs = d.LifeCycle.InactivityMs
	}
	if t.Memory.MaxPerAgent <= 0 {
		t.Memory.MaxPerAgent = d.Memory.MaxPerAgent
	}
	if t.Memory.RetrieveLimit <= 0 {
		t.Memory.RetrieveLimit = d.Memory.RetrieveLimit
	}
	if t.Memory.EmbeddingDimensions <= 0 {
		t.Memory.EmbeddingDimensions = d.Memory.EmbeddingDimensions
	}
	if t.Autonomy.ThinkEveryMs <= 0 {
		t.Autonomy.ThinkEveryMs = d.Autonomy.ThinkEveryMs
	}
	for i := range t.Characters {
		c := &t.Characters[i]
		c.Name = strings.TrimSpace(c.Name)
		if strings.TrimSpace(c.Character) == "" {
			c.Character = "f1"
		}
	}
}

func (t Tuning) Validate() error {
	if t.TickDurationMs <= 0 {
		return fmt.Errorf("tick_duration_ms must be > 0")
	}
	if t.MaxInputsPerStep <= 0 {
		return fmt.Errorf("max_inputs_per_step must be > 0")
	}
	if t.SnapshotEverySteps < 0 {
		return fmt.Errorf("snapshot_every_steps must be >= 0")
	}
	if t.World.SpawnRadius < 0 || t.World.NearbyRadius < 0 {
		return fmt.Errorf("world radii must be >= 0")
	}
	if t.LifeCycle.LowEnergy < 0 || t.LifeCycle.LowEnergy > 100 {
		return fmt.Errorf("life_cycle.low_energy must be in [0,100]")
	}
	if t.Memory.MinImportanceToKeep < 0 || t.Memory.MinImportanceToKeep > 10 {
		return fmt.Errorf("memory.min_importance_to_keep must be in [0,10]")
	}
	if t.Autonomy.WanderChance < 0 || t.Autonomy.WanderChance > 1 {
		return fmt.Errorf("autonomy.wander_chance must be in [0,1]")
	}
	if t.RateLimits.CommandsPerSecond < 0 || t.RateLimits.CommandBurst < 0 {
		return fmt.Errorf("rate_limits must be >= 0")
	}
	seen := map[string]bool{}
	for i, c := range t.Characters {
		if c.Name == "" {
			return fmt.Errorf("characters[%d] name must not be empty", i)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate character name: %s", c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// TickSeconds is the simulated duration of one tick.
func (t Tuning) TickSeconds() float64 { return float64(t.TickDurationMs) / 1000 }
