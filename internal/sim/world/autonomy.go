package world

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"agentville.ai/internal/sim/decision"
	"agentville.ai/internal/sim/world/kernel/model"
)

// think runs one autonomous decision for an awake agent, at most once per
// ThinkEveryMs: answer or leave the current conversation, answer pending
// invites, start a conversation with someone nearby, or wander.
func (w *World) think(a *model.Agent, now int64) {
	ac := w.cfg.Autonomy
	if a.LastThought != 0 && now-a.LastThought < ac.ThinkEveryMs {
		return
	}
	a.LastThought = now

	if cid := a.ConversationID; cid != "" {
		if c := w.conversations[cid]; c != nil && c.Status == model.ConversationActive {
			w.converse(a, c, now)
		}
		return
	}
	if w.answerInvites(a, now) {
		return
	}
	if a.Status == model.StatusWalking {
		return
	}
	if peer, dist, ok := w.nearestFree(a, ac.StartRadius); ok {
		ctx := decision.StartContext{
			Proximity:         dist,
			SharedHistory:     a.KnowsPeer(peer.EntityID()),
			Mood:              a.Emotions.Happiness,
			TrustLevel:        a.PeerTrust(peer.EntityID()),
			RecentInitiations: a.RecentStarts(now),
		}
		if decision.ShouldStartConversation(w.rng, ctx) {
			if _, err := w.StartConversation(a.ID, []string{peer.EntityID()}, now); err == nil {
				return
			}
		}
	}
	if ac.WanderRadius > 0 && w.rng.Float64() < ac.WanderChance {
		theta := w.rng.Float64() * 2 * math.Pi
		d := ac.WanderRadius * w.rng.Float64()
		dest := a.Position.Add(model.Vec2{X: d * math.Cos(theta), Y: d * math.Sin(theta)})
		// WalkTo refuses only talking or sleeping players; neither reaches here.
		_ = a.WalkTo(dest, now)
	}
}

// converse replies to the last message from someone else, opens the
// conversation if the agent created it, or considers leaving.
func (w *World) converse(a *model.Agent, c *model.Conversation, now int64) {
	if c.CurrentSpeaker != "" && c.CurrentSpeaker != a.ID {
		return
	}
	last := c.LastMessage
	switch {
	case last != nil && last.Author != a.ID:
		w.reply(a, c, last.Author, last.Text, now)
		return
	case last == nil && c.Creator == a.ID:
		w.reply(a, c, "", "", now)
		return
	}

	since := c.Created
	if last != nil {
		since = last.Timestamp
	}
	ctx := decision.LeaveContext{
		Length:           c.NumMessages,
		LastMessageAge:   time.Duration(now-since) * time.Millisecond,
		ParticipantCount: len(c.Participants),
		Mood:             a.Emotions.Happiness,
		HasGoals:         a.CurrentGoal != nil,
	}
	if decision.ShouldLeaveConversation(w.rng, ctx) {
		w.leave(&a.Player, c.ID, now)
	}
}

func (w *World) reply(a *model.Agent, c *model.Conversation, author, text string, now int64) {
	rc := decision.ResponseContext{
		SenderTrust: a.PeerTrust(author),
		Mood:        a.Emotions.Happiness,
		Turns:       c.NumMessages,
	}
	if author != "" {
		rc.SenderName = w.nameOf(author)
	}
	resp := decision.GenerateResponse(w.rng, text, rc)
	if _, err := w.SendMessage(a.ID, resp.Text, agentMessageUUID(w.cfg.ID, c.ID, c.NumMessages), now); err != nil {
		return
	}
	// SendMessage made a the speaker, so the turn is a's to hand back.
	if err := c.FinishSpeaking(a.ID, now); err != nil {
		return
	}

	if author != "" {
		a.UpdateSocialConnection(author, float64(resp.EmotionalImpact), now)
		w.reputation(author, 0.5*float64(resp.EmotionalImpact), "conversation", c.ID, now)
		if resp.EmotionalImpact >= 2 || resp.EmotionalImpact <= -2 {
			w.rememberTrustShift(a, author, resp.EmotionalImpact, now)
		}
	}
	if !resp.ShouldContinue {
		w.leave(&a.Player, c.ID, now)
	}
}

// answerInvites accepts or rejects every pending invite by how much the agent
// trusts the inviter. It reports whether the agent joined a conversation.
func (w *World) answerInvites(a *model.Agent, now int64) bool {
	for _, c := range w.sortedConversations() {
		if !c.IsInvited(a.ID) {
			continue
		}
		if a.ShouldTrust(c.Creator, w.cfg.TrustThreshold) {
			if w.AcceptInvite(a.ID, c.ID, now) == nil {
				return true
			}
		}
		_ = w.RejectInvite(a.ID, c.ID, now)
	}
	return false
}

// nearestFree finds the closest awake participant within radius that is not
// in a conversation. Ties go to the lower id.
func (w *World) nearestFree(a *model.Agent, radius float64) (model.Participant, float64, bool) {
	var best model.Participant
	bestDist := math.Inf(1)
	for _, p := range w.FindNearbyParticipants(a.Position, radius) {
		if p.EntityID() == a.ID || p.ActiveConversation() != "" || p.Base().Status == model.StatusSleeping {
			continue
		}
		if d := p.Pos().Dist(a.Position); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist, best != nil
}

// agentMessageUUID derives a stable message id so replayed steps produce the same messages.
func agentMessageUUID(worldID, conversationID string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(worldID+"/"+conversationID+"/"+strconv.Itoa(n))).String()
}
