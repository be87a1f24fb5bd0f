package world

import (
	"fmt"
	"strings"

	"agentville.ai/internal/sim/memory"
	"agentville.ai/internal/sim/world/kernel/model"
)

// queueMemory drops requests below the owner's importance threshold.
func (w *World) queueMemory(a *model.Agent, req memory.Request) {
	if req.Importance < a.MemoryImportanceThreshold {
		return
	}
	req.Owner = a.ID
	w.memoryRequests = append(w.memoryRequests, req)
}

func (w *World) nameOf(id string) string {
	if d, ok := w.descriptions[id]; ok && d.Name != "" {
		return d.Name
	}
	if p, ok := w.Participant(id); ok {
		return p.Base().Name
	}
	return "someone"
}

func (w *World) rememberConversation(c *model.Conversation, now int64) {
	if c.NumMessages == 0 {
		return
	}
	for _, pid := range c.Participants {
		a := w.agents[pid]
		if a == nil {
			continue
		}
		var others []string
		for _, o := range c.Participants {
			if o != pid {
				others = append(others, w.nameOf(o))
			}
		}
		if len(others) == 0 {
			continue
		}
		desc := fmt.Sprintf("Talked with %s (%d messages).", strings.Join(others, ", "), c.NumMessages)
		if c.LastMessage != nil {
			desc += fmt.Sprintf(" %s said last: %q", w.nameOf(c.LastMessage.Author), c.LastMessage.Text)
		}
		w.queueMemory(a, memory.Request{
			Description:    desc,
			Kind:           memory.KindConversation,
			ConversationID: c.ID,
			Participants:   append([]string(nil), c.Participants...),
			Now:            now,
			Importance: memory.CalculateImportance(memory.ImportanceInput{
				Description:       desc,
				EmotionalImpact:   (a.Emotions.Happiness - 50) / 10,
				SocialRelevance:   float64(len(others)) / 3,
				Novelty:           1 / float64(1+a.RecentStarts(now)),
				PersonalRelevance: float64(c.NumMessages) / 10,
			}),
		})
	}
}

func (w *World) rememberMeeting(a *model.Agent, peer string, now int64) {
	desc := fmt.Sprintf("Met %s for the first time.", w.nameOf(peer))
	w.queueMemory(a, memory.Request{
		Description: desc,
		Kind:        memory.KindRelationship,
		PeerID:      peer,
		Now:         now,
		Importance: memory.CalculateImportance(memory.ImportanceInput{
			Description:     desc,
			SocialRelevance: 1,
			Novelty:         1,
		}),
	})
}

// rememberTrustShift records a noticeable change in how a feels about peer.
func (w *World) rememberTrustShift(a *model.Agent, peer string, impact int, now int64) {
	verb := "warmed to"
	if impact < 0 {
		verb = "grew wary of"
	}
	desc := fmt.Sprintf("I %s %s (trust now %.0f).", verb, w.nameOf(peer), a.PeerTrust(peer))
	w.queueMemory(a, memory.Request{
		Description: desc,
		Kind:        memory.KindRelationship,
		PeerID:      peer,
		Now:         now,
		Importance: memory.CalculateImportance(memory.ImportanceInput{
			Description:       desc,
			EmotionalImpact:   float64(impact),
			SocialRelevance:   1,
			PersonalRelevance: 0.5,
		}),
	})
}

func (w *World) rememberWaking(a *model.Agent, now int64) {
	desc := fmt.Sprintf("Woke up feeling %s.", mood(a.Emotions))
	w.queueMemory(a, memory.Request{
		Description: desc,
		Kind:        memory.KindReflection,
		Now:         now,
		Importance: memory.CalculateImportance(memory.ImportanceInput{
			Description:       desc,
			EmotionalImpact:   (a.Emotions.Happiness - a.Emotions.Stress) / 20,
			PersonalRelevance: 1,
		}),
	})
}

func mood(e model.EmotionalState) string {
	switch {
	case e.Happiness >= 70:
		return "cheerful"
	case e.Stress >= 60:
		return "tense"
	case e.Happiness < 30:
		return "gloomy"
	default:
		return "rested"
	}
}
