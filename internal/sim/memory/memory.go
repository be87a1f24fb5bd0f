// Package memory stores per-agent episodic memories with importance scores and
// embedding-based retrieval.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/sim/world/logic/mathx"
)

type Kind string

const (
	KindRelationship Kind = "relationship"
	KindConversation Kind = "conversation"
	KindReflection   Kind = "reflection"
)

const (
	DefaultMinImportance = 3.0
	MaxImportance        = 10.0

	dayMs          = int64(24 * 60 * 60 * 1000)
	recencyWindow  = 7 * dayMs
	recencyWeight  = 0.5
	importanceGain = 0.3
)

var ErrEmptyDescription = errors.New("memory description is empty")

type Memory struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Description string    `json:"description"`
	Embedding   []float64 `json:"embedding"`
	Importance  float64   `json:"importance"`
	Created     int64     `json:"created"`
	LastAccess  int64     `json:"last_access"`
	Kind        Kind      `json:"kind"`

	PeerID         string   `json:"peer_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Participants   []string `json:"participants,omitempty"`
	RelatedIDs     []string `json:"related_ids,omitempty"`
}

// Request describes a memory to create. The world queues these during a step
// and the engine turns them into Memories after the world is saved.
type Request struct {
	Owner       string  `json:"owner"`
	Description string  `json:"description"`
	Importance  float64 `json:"importance"`
	Kind        Kind    `json:"kind"`
	Now         int64   `json:"now"`

	PeerID         string   `json:"peer_id,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Participants   []string `json:"participants,omitempty"`
	RelatedIDs     []string `json:"related_ids,omitempty"`
}

// Scored is a retrieved memory together with its ranking score.
type Scored struct {
	Memory
	Score float64 `json:"score"`
}

type Store struct {
	docs    docstore.Store
	worldID string
	embed   Embedder

	// NewID mints memory ids; tests may pin it.
	NewID func() string
}

func NewStore(docs docstore.Store, worldID string, embed Embedder) *Store {
	return &Store{
		docs:    docs,
		worldID: worldID,
		embed:   embed,
		NewID:   uuid.NewString,
	}
}

func (s *Store) Create(ctx context.Context, req Request) (string, error) {
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		return "", ErrEmptyDescription
	}
	if req.Owner == "" {
		return "", fmt.Errorf("memory owner is empty")
	}
	vec, err := s.embed.Embed(ctx, desc)
	if err != nil {
		return "", fmt.Errorf("embed memory: %w", err)
	}
	m := Memory{
		ID:             s.NewID(),
		Owner:          req.Owner,
		Description:    desc,
		Embedding:      vec,
		Importance:     mathx.Clamp(req.Importance, 0, MaxImportance),
		Created:        req.Now,
		LastAccess:     req.Now,
		Kind:           req.Kind,
		PeerID:         req.PeerID,
		ConversationID: req.ConversationID,
		Participants:   append([]string(nil), req.Participants...),
		RelatedIDs:     append([]string(nil), req.RelatedIDs...),
	}
	if err := s.put(ctx, m); err != nil {
		return "", err
	}
	return m.ID, nil
}

func (s *Store) put(ctx context.Context, m Memory) error {
	return docstore.PutJSON(ctx, s.docs, docstore.Memories, s.worldID, m.ID, m.Owner, m)
}

// List returns every memory of owner ordered by id.
func (s *Store) List(ctx context.Context, owner string) ([]Memory, error) {
	docs, err := s.docs.List(ctx, docstore.Memories, s.worldID, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Memory, 0, len(docs))
	for _, d := range docs {
		var m Memory
		if err := json.Unmarshal(d.Data, &m); err != nil {
			return nil, fmt.Errorf("memory %s: %w", d.ID, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Retrieve ranks the owner's memories at or above minImportance against query
// and returns the best limit of them. Returned memories have LastAccess set to now.
func (s *Store) Retrieve(ctx context.Context, owner, query string, limit int, minImportance float64, now int64) ([]Scored, error) {
	if limit <= 0 {
		return nil, nil
	}
	all, err := s.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	qv, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var scored []Scored
	for _, m := range all {
		if m.Importance < minImportance {
			continue
		}
		scored = append(scored, Scored{Memory: m, Score: Score(m, qv, now)})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	for i := range scored {
		scored[i].LastAccess = now
		if err := s.put(ctx, scored[i].Memory); err != nil {
			return nil, err
		}
	}
	return scored, nil
}

// Score is cosine similarity plus a recency boost that decays linearly to zero
// over seven days and an importance boost.
func Score(m Memory, query []float64, now int64) float64 {
	score := Cosine(m.Embedding, query)
	age := now - m.LastAccess
	if age < 0 {
		age = 0
	}
	if age < recencyWindow {
		score += recencyWeight * (1 - float64(age)/float64(recencyWindow))
	}
	score += importanceGain * m.Importance / MaxImportance
	return score
}

// Cleanup trims owner's memories toward maxCount, deleting the stalest ones
// first but never a memory with importance >= minImportanceToKeep. It may
// delete fewer than the overflow. It returns the number deleted.
func (s *Store) Cleanup(ctx context.Context, owner string, maxCount int, minImportanceToKeep float64, now int64) (int, error) {
	all, err := s.List(ctx, owner)
	if err != nil {
		return 0, err
	}
	overflow := len(all) - maxCount
	if overflow <= 0 {
		return 0, nil
	}
	keepScore := func(m Memory) float64 {
		ageDays := float64(now-m.Created) / float64(dayMs)
		return m.Importance + ageDays/30
	}
	sort.SliceStable(all, func(i, j int) bool { return keepScore(all[i]) < keepScore(all[j]) })

	deleted := 0
	for _, m := range all {
		if deleted >= overflow {
			break
		}
		if m.Importance >= minImportanceToKeep {
			continue
		}
		if err := s.docs.Delete(ctx, docstore.Memories, s.worldID, m.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func Cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
