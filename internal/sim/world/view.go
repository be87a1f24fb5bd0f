package world

import "agentville.ai/internal/sim/world/kernel/model"

// View is the read-only projection served to observers.
type View struct {
	WorldID       string             `json:"world_id"`
	Time          int64              `json:"time"`
	NextID        int64              `json:"next_id"`
	Players       []PlayerView       `json:"players"`
	Conversations []ConversationView `json:"conversations"`
	Digest        string             `json:"digest"`
}

type PlayerView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Character      string     `json:"character"`
	Description    string     `json:"description,omitempty"`
	IsAgent        bool       `json:"is_agent"`
	Position       model.Vec2 `json:"position"`
	Status         string     `json:"status"`
	ConversationID string     `json:"conversation_id,omitempty"`

	TrustScore *float64              `json:"trust_score,omitempty"`
	Emotions   *model.EmotionalState `json:"emotions,omitempty"`
}

type ConversationView struct {
	ID             string         `json:"id"`
	Creator        string         `json:"creator"`
	Status         string         `json:"status"`
	Participants   []string       `json:"participants"`
	Invited        []string       `json:"invited,omitempty"`
	CurrentSpeaker string         `json:"current_speaker,omitempty"`
	NumMessages    int            `json:"num_messages"`
	LastMessage    *model.Message `json:"last_message,omitempty"`
}

func (w *World) View() View {
	v := View{
		WorldID:       w.cfg.ID,
		Time:          w.lastViewed,
		NextID:        w.nextID,
		Players:       []PlayerView{},
		Conversations: []ConversationView{},
		Digest:        w.Digest(),
	}
	for _, p := range w.Participants() {
		b := p.Base()
		pv := PlayerView{
			ID:             b.ID,
			Name:           b.Name,
			Character:      b.Character,
			IsAgent:        p.IsAgent(),
			Position:       b.Position,
			Status:         string(b.Status),
			ConversationID: b.ConversationID,
		}
		if d, ok := w.descriptions[b.ID]; ok {
			pv.Description = d.Description
		}
		if a := w.agents[b.ID]; a != nil {
			ts, e := a.TrustScore, a.Emotions
			pv.TrustScore, pv.Emotions = &ts, &e
		}
		v.Players = append(v.Players, pv)
	}
	for _, c := range w.sortedConversations() {
		cc := cloneConversation(c)
		v.Conversations = append(v.Conversations, ConversationView{
			ID:             cc.ID,
			Creator:        cc.Creator,
			Status:         string(cc.Status),
			Participants:   cc.Participants,
			Invited:        cc.Invited,
			CurrentSpeaker: cc.CurrentSpeaker,
			NumMessages:    cc.NumMessages,
			LastMessage:    cc.LastMessage,
		})
	}
	return v
}
