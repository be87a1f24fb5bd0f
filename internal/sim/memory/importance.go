package memory

import (
	"math"

	"agentville.ai/internal/sim/world/logic/mathx"
)

// ImportanceInput holds the signals that feed CalculateImportance. The
// relevance signals are expected in [0,1]; EmotionalImpact is signed.
type ImportanceInput struct {
	Description       string
	EmotionalImpact   float64
	SocialRelevance   float64
	Novelty           float64
	PersonalRelevance float64
}

// CalculateImportance is a bounded additive score in [0,10].
func CalculateImportance(in ImportanceInput) float64 {
	score := 1.0
	score += math.Min(float64(len(in.Description))/100, 2)
	score += math.Min(math.Abs(in.EmotionalImpact)*0.5, 3)
	score += 2 * mathx.Clamp01(in.SocialRelevance)
	score += 1.5 * mathx.Clamp01(in.Novelty)
	score += 1.5 * mathx.Clamp01(in.PersonalRelevance)
	return mathx.Clamp(score, 0, MaxImportance)
}
