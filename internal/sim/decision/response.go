package decision

import (
	"math/rand"
	"strings"

	"agentville.ai/internal/sim/world/logic/mathx"
)

type Tone string

const (
	ToneCautious Tone = "cautious"
	ToneNormal   Tone = "normal"
	ToneFriendly Tone = "friendly"
)

type ResponseContext struct {
	SenderName  string
	SenderTrust float64 // 0..100
	Mood        float64 // 0..100, the responder's happiness
	Turns       int     // messages exchanged so far
}

type Response struct {
	Text            string `json:"response"`
	Tone            Tone   `json:"tone"`
	ShouldContinue  bool   `json:"should_continue"`
	EmotionalImpact int    `json:"emotional_impact"`
}

var pools = map[Tone][]string{
	ToneCautious: {
		"I see. I'd rather keep this short.",
		"Hm. Why do you ask?",
		"Maybe. I'm not sure about that.",
		"Okay. Let me think about it.",
	},
	ToneNormal: {
		"That's interesting. Tell me more.",
		"I've been thinking about the same thing.",
		"Sure, that makes sense to me.",
		"Good to hear from you.",
	},
	ToneFriendly: {
		"Oh, I love that! What happened next?",
		"It's always great talking with you.",
		"You always know what to say. Go on!",
		"Ha, that's wonderful. I'm glad you told me.",
	},
}

var embellishments = []string{
	" What a lovely day it is.",
	" I'm in such a good mood today.",
	" Let's do this more often.",
}

var signOffs = []string{
	" Anyway, I should get going.",
	" I'll talk to you later.",
	" Let's pick this up another time.",
}

const (
	longConversationTurns = 10
	lowMood               = 30
	highMood              = 70
)

func ToneFor(trust float64) Tone {
	switch {
	case trust < 30:
		return ToneCautious
	case trust > 70:
		return ToneFriendly
	default:
		return ToneNormal
	}
}

// GenerateResponse never fails; an empty message gets the neutral pool.
func GenerateResponse(r *rand.Rand, message string, c ResponseContext) Response {
	tone := ToneFor(c.SenderTrust)
	if strings.TrimSpace(message) == "" {
		tone = ToneNormal
	}
	pool := pools[tone]
	text := pool[r.Intn(len(pool))]
	if c.SenderName != "" && tone == ToneFriendly {
		text = c.SenderName + "! " + text
	}

	continueChance := 0.6
	switch {
	case c.Mood < lowMood:
		text = firstSentence(text)
		continueChance = 0.3
	case c.Mood > highMood:
		text += embellishments[r.Intn(len(embellishments))]
		continueChance = 0.8
	}
	if c.Turns > longConversationTurns {
		decay := 1 - 0.1*float64(c.Turns-longConversationTurns)
		continueChance *= mathx.Clamp(decay, 0.1, 1)
	}

	cont := r.Float64() < continueChance
	if !cont {
		text += signOffs[r.Intn(len(signOffs))]
	}
	return Response{
		Text:            text,
		Tone:            tone,
		ShouldContinue:  cont,
		EmotionalImpact: emotionalImpact(tone, c.Mood),
	}
}

func emotionalImpact(tone Tone, mood float64) int {
	impact := 0
	switch tone {
	case ToneFriendly:
		impact = 2
	case ToneNormal:
		impact = 1
	case ToneCautious:
		impact = -1
	}
	switch {
	case mood > highMood:
		impact++
	case mood < lowMood:
		impact--
	}
	if impact > 3 {
		return 3
	}
	if impact < -3 {
		return -3
	}
	return impact
}

func firstSentence(s string) string {
	for i, ch := range s {
		if ch == '.' || ch == '!' || ch == '?' {
			return s[:i+1]
		}
	}
	return s
}
