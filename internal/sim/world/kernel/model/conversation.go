package model

import "errors"

type ConversationStatus string

const (
	ConversationWaiting ConversationStatus = "waiting"
	ConversationActive  ConversationStatus = "active"
	ConversationEnded   ConversationStatus = "ended"
)

var (
	ErrNotInvited     = errors.New("not invited to conversation")
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrNotActive      = errors.New("conversation is not active")
	ErrNotYourTurn    = errors.New("another participant is speaking")
	ErrNotSpeaker     = errors.New("not the current speaker")
	ErrEnded          = errors.New("conversation has ended")
)

// ConversationTimings are the turn-taking windows, in milliseconds.
type ConversationTimings struct {
	SpeakingGraceMs     int64 // speaker keeps the floor after a message
	MessageInactivityMs int64 // inactivity window armed by a message
	TurnInactivityMs    int64 // shorter window for the next speaker to pick up
}

func DefaultConversationTimings() ConversationTimings {
	return ConversationTimings{
		SpeakingGraceMs:     10_000,
		MessageInactivityMs: 60_000,
		TurnInactivityMs:    30_000,
	}
}

type Message struct {
	Author      string `json:"author"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	MessageUUID string `json:"message_uuid"`
}

// Conversation is owned by its world. Invariants:
//   - waiting => len(Invited) > 0; active => len(Invited) == 0
//   - CurrentSpeaker, if set, is a participant, and SpeakingUntil is set with it
//   - Participants and Invited are disjoint and duplicate-free
type Conversation struct {
	ID          string   `json:"id"`
	Creator     string   `json:"creator"`
	Created     int64    `json:"created"`
	Ended       int64    `json:"ended,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
	NumMessages int      `json:"num_messages"`

	Participants []string           `json:"participants"`
	Invited      []string           `json:"invited,omitempty"`
	Status       ConversationStatus `json:"status"`

	CurrentSpeaker    string `json:"current_speaker,omitempty"`
	SpeakingUntil     int64  `json:"speaking_until,omitempty"`
	InactivityTimeout int64  `json:"inactivity_timeout,omitempty"`

	Timings ConversationTimings `json:"-"`
}

// NewConversation starts active when exactly one invitee remains after
// deduplication, and waiting for the others otherwise.
func NewConversation(id, creator string, invitees []string, now int64, t ConversationTimings) *Conversation {
	c := &Conversation{
		ID:           id,
		Creator:      creator,
		Created:      now,
		Participants: []string{creator},
		Status:       ConversationWaiting,
		Timings:      t,
	}
	for _, inv := range invitees {
		if inv == "" || inv == creator || contains(c.Invited, inv) {
			continue
		}
		c.Invited = append(c.Invited, inv)
	}
	if len(c.Invited) == 1 {
		c.Participants = append(c.Participants, c.Invited[0])
		c.Invited = nil
		c.activate(now)
	}
	return c
}

func (c *Conversation) IsParticipant(id string) bool { return contains(c.Participants, id) }
func (c *Conversation) IsInvited(id string) bool     { return contains(c.Invited, id) }
func (c *Conversation) IsEnded() bool                { return c.Status == ConversationEnded }

func (c *Conversation) activate(now int64) {
	c.Status = ConversationActive
	c.InactivityTimeout = now + c.Timings.TurnInactivityMs
}

func (c *Conversation) AcceptInvite(peerID string, now int64) error {
	if c.IsEnded() {
		return ErrEnded
	}
	if !c.IsInvited(peerID) {
		return ErrNotInvited
	}
	c.Invited = remove(c.Invited, peerID)
	c.Participants = append(c.Participants, peerID)
	if len(c.Invited) == 0 && c.Status == ConversationWaiting {
		c.activate(now)
	}
	return nil
}

// RejectInvite ends a waiting conversation when nobody is left to talk to the creator.
func (c *Conversation) RejectInvite(peerID string, now int64) error {
	if c.IsEnded() {
		return ErrEnded
	}
	if !c.IsInvited(peerID) {
		return ErrNotInvited
	}
	c.Invited = remove(c.Invited, peerID)
	if len(c.Invited) > 0 {
		return nil
	}
	switch {
	case len(c.Participants) <= 1:
		c.Status = ConversationEnded
	case c.Status == ConversationWaiting:
		c.activate(now)
	}
	return nil
}

// AddMessage enforces strict turn-taking: only the current speaker, or anyone
// when nobody holds the floor, may post.
func (c *Conversation) AddMessage(author, text, uuid string, now int64) (Message, error) {
	if !c.IsParticipant(author) {
		return Message{}, ErrNotParticipant
	}
	if c.Status != ConversationActive {
		return Message{}, ErrNotActive
	}
	if c.CurrentSpeaker != "" && c.CurrentSpeaker != author {
		return Message{}, ErrNotYourTurn
	}
	m := Message{Author: author, Text: text, Timestamp: now, MessageUUID: uuid}
	c.LastMessage = &m
	c.NumMessages++
	c.CurrentSpeaker = author
	c.SpeakingUntil = now + c.Timings.SpeakingGraceMs
	c.InactivityTimeout = now + c.Timings.MessageInactivityMs
	return m, nil
}

func (c *Conversation) FinishSpeaking(peerID string, now int64) error {
	if c.CurrentSpeaker == "" || c.CurrentSpeaker != peerID {
		return ErrNotSpeaker
	}
	c.clearSpeaker()
	c.InactivityTimeout = now + c.Timings.TurnInactivityMs
	return nil
}

func (c *Conversation) clearSpeaker() {
	c.CurrentSpeaker = ""
	c.SpeakingUntil = 0
}

// Leave removes peerID from the conversation. It reports whether the peer was
// a member (participant or invitee). The conversation ends when no participant
// is left, when a participant's departure leaves exactly one, or when one
// participant remains with nobody still invited. Ending drops pending invites.
func (c *Conversation) Leave(peerID string, now int64) bool {
	wasParticipant := c.IsParticipant(peerID)
	wasInvited := c.IsInvited(peerID)
	if !wasParticipant && !wasInvited {
		return false
	}
	c.Participants = remove(c.Participants, peerID)
	c.Invited = remove(c.Invited, peerID)
	if c.CurrentSpeaker == peerID {
		c.clearSpeaker()
	}
	if c.IsEnded() {
		return true
	}
	switch {
	case len(c.Participants) == 0,
		wasParticipant && len(c.Participants) == 1,
		len(c.Participants) == 1 && len(c.Invited) == 0:
		c.Status = ConversationEnded
		c.Invited = nil
	case c.Status == ConversationWaiting && len(c.Invited) == 0:
		c.activate(now)
	}
	return true
}

// Tick lapses an expired speaking turn and ends an inactive conversation.
// It reports whether the conversation has finished.
func (c *Conversation) Tick(now int64) bool {
	if c.Status != ConversationActive {
		return c.IsEnded()
	}
	if c.CurrentSpeaker != "" && now >= c.SpeakingUntil {
		c.clearSpeaker()
	}
	if c.InactivityTimeout != 0 && now >= c.InactivityTimeout {
		c.Status = ConversationEnded
		return true
	}
	return false
}

// Archive stamps the end time. Afterwards the conversation is immutable history.
func (c *Conversation) Archive(now int64) {
	c.Status = ConversationEnded
	c.Ended = now
	c.clearSpeaker()
	c.InactivityTimeout = 0
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func remove(xs []string, v string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
