package world

import (
	"fmt"
	"strings"

	"agentville.ai/internal/sim/world/kernel/model"
)

// StartConversation opens a conversation from creatorID to invitees. With one
// invitee both parties join immediately and the conversation is active; with
// more it waits for every invitee to answer, and invitees join on accept.
func (w *World) StartConversation(creatorID string, invitees []string, now int64) (*model.Conversation, error) {
	creator, ok := w.Participant(creatorID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, creatorID)
	}
	if err := w.free(creator); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var list []string
	for _, id := range invitees {
		if id == "" || seen[id] {
			continue
		}
		if id == creatorID {
			return nil, fmt.Errorf("%w: cannot invite yourself", ErrInvalidArgs)
		}
		p, ok := w.Participant(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
		}
		if err := w.free(p); err != nil {
			return nil, err
		}
		seen[id] = true
		list = append(list, id)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no invitees", ErrInvalidArgs)
	}

	c := model.NewConversation(w.allocator().Allocate(), creatorID, list, now, w.cfg.Timings)
	w.conversations[c.ID] = c
	creator.Base().EnterConversation(c.ID, now)
	if c.Status == model.ConversationActive {
		for _, id := range list {
			p, _ := w.Participant(id)
			p.Base().EnterConversation(c.ID, now)
		}
	}
	if a := w.agents[creatorID]; a != nil {
		a.RecordConversationStart(now)
	}
	return c, nil
}

// free reports why p cannot join a conversation, if it cannot.
func (w *World) free(p model.Participant) error {
	if cid := p.ActiveConversation(); cid != "" {
		return fmt.Errorf("%w: %s is in conversation %s", ErrAlreadyInConversation, p.EntityID(), cid)
	}
	if p.Base().Status == model.StatusSleeping {
		return fmt.Errorf("%w: %s is asleep", model.ErrBusy, p.EntityID())
	}
	return nil
}

// EndConversation releases every participant and archives the conversation.
// It reports whether the conversation was live.
func (w *World) EndConversation(id string, now int64) bool {
	c := w.conversations[id]
	if c == nil {
		return false
	}
	for _, pid := range c.Participants {
		if p, ok := w.Participant(pid); ok && p.ActiveConversation() == id {
			p.Base().ExitConversation(now)
		}
	}
	c.Archive(now)
	delete(w.conversations, id)
	w.ended = append(w.ended, c)
	w.rememberConversation(c, now)
	return true
}

func (w *World) conversationFor(playerID, conversationID string) (model.Participant, *model.Conversation, error) {
	p, ok := w.Participant(playerID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	c := w.conversations[conversationID]
	if c == nil {
		return p, nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return p, c, nil
}

func (w *World) AcceptInvite(playerID, conversationID string, now int64) error {
	p, c, err := w.conversationFor(playerID, conversationID)
	if err != nil {
		return err
	}
	if !c.IsInvited(playerID) {
		return model.ErrNotInvited
	}
	if err := w.free(p); err != nil {
		return err
	}
	if err := c.AcceptInvite(playerID, now); err != nil {
		return err
	}
	p.Base().EnterConversation(c.ID, now)
	w.reputation(c.Creator, 1, "invite_accepted", c.ID, now)
	return nil
}

func (w *World) RejectInvite(playerID, conversationID string, now int64) error {
	p, c, err := w.conversationFor(playerID, conversationID)
	if err != nil {
		return err
	}
	if err := c.RejectInvite(playerID, now); err != nil {
		return err
	}
	p.Base().Touch(now)
	w.reputation(c.Creator, -1, "invite_rejected", c.ID, now)
	if c.IsEnded() {
		w.EndConversation(c.ID, now)
	}
	return nil
}

// LeaveConversation is a no-op when the conversation is already gone and the
// player is not in it.
func (w *World) LeaveConversation(playerID, conversationID string, now int64) error {
	p, c, err := w.conversationFor(playerID, conversationID)
	if c == nil && p != nil && p.ActiveConversation() != conversationID {
		return nil
	}
	if err != nil {
		return err
	}
	if !c.IsParticipant(playerID) && !c.IsInvited(playerID) {
		return model.ErrNotParticipant
	}
	w.leave(p.Base(), c.ID, now)
	return nil
}

// leave removes p from conversation cid and ends it when too few remain.
func (w *World) leave(p *model.Player, cid string, now int64) {
	c := w.conversations[cid]
	if p.ConversationID == cid {
		p.ExitConversation(now)
	}
	if c == nil {
		return
	}
	c.Leave(p.ID, now)
	if c.IsEnded() {
		w.EndConversation(cid, now)
	}
}

// leaveInvites withdraws id from every conversation still waiting on it.
func (w *World) leaveInvites(id string, now int64) {
	for _, c := range w.sortedConversations() {
		if c.IsInvited(id) {
			c.Leave(id, now)
			if c.IsEnded() {
				w.EndConversation(c.ID, now)
			}
		}
	}
}

// SendMessage posts text to the sender's current conversation.
func (w *World) SendMessage(playerID, text, messageUUID string, now int64) (model.Message, error) {
	p, ok := w.Participant(playerID)
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	cid := p.ActiveConversation()
	if cid == "" {
		return model.Message{}, ErrNotInConversation
	}
	c := w.conversations[cid]
	if c == nil {
		return model.Message{}, fmt.Errorf("%w: %s", ErrConversationNotFound, cid)
	}
	text = strings.TrimSpace(text)
	if text == "" || messageUUID == "" {
		return model.Message{}, fmt.Errorf("%w: empty message", ErrInvalidArgs)
	}
	m, err := c.AddMessage(playerID, text, messageUUID, now)
	if err != nil {
		return model.Message{}, err
	}
	p.Base().Touch(now)
	w.messages = append(w.messages, MessageRecord{ConversationID: cid, Message: m})
	w.nudgeListeners(c, playerID, now)
	return m, nil
}

// nudgeListeners moves every other agent participant's social connection
// toward the author of a message.
func (w *World) nudgeListeners(c *model.Conversation, author string, now int64) {
	for _, pid := range c.Participants {
		if pid == author {
			continue
		}
		a := w.agents[pid]
		if a == nil {
			continue
		}
		first := !a.KnowsPeer(author)
		a.UpdateSocialConnection(author, w.cfg.MessageTrustDelta, now)
		a.Touch(now)
		if first {
			w.rememberMeeting(a, author, now)
		}
	}
}

func (w *World) FinishSpeaking(playerID, conversationID string, now int64) error {
	p, c, err := w.conversationFor(playerID, conversationID)
	if err != nil {
		return err
	}
	if err := c.FinishSpeaking(playerID, now); err != nil {
		return err
	}
	p.Base().Touch(now)
	return nil
}

// AgentSendMessage posts as an agent and optionally leaves the conversation afterwards.
func (w *World) AgentSendMessage(agentID, text, messageUUID string, leave bool, now int64) (model.Message, error) {
	a, err := w.agent(agentID)
	if err != nil {
		return model.Message{}, err
	}
	cid := a.ConversationID
	m, err := w.SendMessage(agentID, text, messageUUID, now)
	if err != nil {
		return model.Message{}, err
	}
	if leave {
		w.leave(&a.Player, cid, now)
	}
	return m, nil
}

// reputation adjusts an agent's global trust score; players have none.
func (w *World) reputation(id string, delta float64, action, context string, now int64) {
	if a := w.agents[id]; a != nil {
		a.UpdateTrustScore(delta, action, context, now)
	}
}
