package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"agentville.ai/internal/sim/world/kernel/model"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

// Digest hashes the live world state in id order. Two worlds with the same
// digest replay identically.
func (w *World) Digest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteString(h, &tmp, w.cfg.ID)
	digestWriteI64(h, &tmp, w.cfg.Seed)
	digestWriteI64(h, &tmp, w.nextID)
	digestWriteI64(h, &tmp, w.lastViewed)

	players := w.sortedPlayers()
	digestWriteU64(h, &tmp, uint64(len(players)))
	for _, p := range players {
		digestPlayer(h, &tmp, p)
	}

	agents := w.sortedAgents()
	digestWriteU64(h, &tmp, uint64(len(agents)))
	for _, a := range agents {
		digestAgent(h, &tmp, a)
	}

	convs := w.sortedConversations()
	digestWriteU64(h, &tmp, uint64(len(convs)))
	for _, c := range convs {
		digestConversation(h, &tmp, c)
	}

	return hex.EncodeToString(h.Sum(nil))
}

func digestPlayer(h hashWriter, tmp *[8]byte, p *model.Player) {
	digestWriteString(h, tmp, p.ID)
	digestWriteString(h, tmp, p.Name)
	digestWriteString(h, tmp, p.Character)
	digestWriteVec(h, tmp, p.Position)
	digestWriteVec(h, tmp, p.Facing)
	digestWriteF64(h, tmp, p.Speed)
	digestWriteString(h, tmp, p.ConversationID)
	digestWriteString(h, tmp, string(p.Status))
	digestWriteI64(h, tmp, p.LastActivity)
	if p.Pathfinding == nil {
		h.Write([]byte{0})
		return
	}
	h.Write([]byte{1})
	digestWriteVec(h, tmp, p.Pathfinding.Destination)
	digestWriteU64(h, tmp, uint64(len(p.Pathfinding.Path)))
	for _, v := range p.Pathfinding.Path {
		digestWriteVec(h, tmp, v)
	}
	digestWriteI64(h, tmp, int64(p.Pathfinding.CurrentStep))
}

func digestAgent(h hashWriter, tmp *[8]byte, a *model.Agent) {
	digestPlayer(h, tmp, &a.Player)
	digestWriteF64(h, tmp, a.TrustScore)
	digestWriteU64(h, tmp, uint64(len(a.ReputationHistory)))
	e := a.Emotions
	digestWriteF64(h, tmp, e.Happiness)
	digestWriteF64(h, tmp, e.Stress)
	digestWriteF64(h, tmp, e.Energy)
	digestWriteF64(h, tmp, e.Sociability)
	digestWriteI64(h, tmp, a.LastWakeUp)
	digestWriteI64(h, tmp, a.SleepUntil)
	digestWriteI64(h, tmp, a.LastThought)
	digestWriteU64(h, tmp, uint64(len(a.ConversationStarts)))

	peers := make([]string, 0, len(a.SocialConnections))
	for id := range a.SocialConnections {
		peers = append(peers, id)
	}
	sort.Strings(peers)
	digestWriteU64(h, tmp, uint64(len(peers)))
	for _, id := range peers {
		c := a.SocialConnections[id]
		digestWriteString(h, tmp, id)
		digestWriteF64(h, tmp, c.TrustLevel)
		digestWriteI64(h, tmp, int64(c.InteractionCount))
		digestWriteI64(h, tmp, c.LastInteraction)
	}
}

func digestConversation(h hashWriter, tmp *[8]byte, c *model.Conversation) {
	digestWriteString(h, tmp, c.ID)
	digestWriteString(h, tmp, c.Creator)
	digestWriteI64(h, tmp, c.Created)
	digestWriteString(h, tmp, string(c.Status))
	digestWriteI64(h, tmp, int64(c.NumMessages))
	digestWriteU64(h, tmp, uint64(len(c.Participants)))
	for _, id := range c.Participants {
		digestWriteString(h, tmp, id)
	}
	digestWriteU64(h, tmp, uint64(len(c.Invited)))
	for _, id := range c.Invited {
		digestWriteString(h, tmp, id)
	}
	digestWriteString(h, tmp, c.CurrentSpeaker)
	digestWriteI64(h, tmp, c.SpeakingUntil)
	digestWriteI64(h, tmp, c.InactivityTimeout)
	if c.LastMessage != nil {
		digestWriteString(h, tmp, c.LastMessage.MessageUUID)
	} else {
		digestWriteString(h, tmp, "")
	}
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h hashWriter, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v model.Vec2) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
}

func digestWriteString(h hashWriter, tmp *[8]byte, s string) {
	digestWriteU64(h, tmp, uint64(len(s)))
	h.Write([]byte(s))
}
