package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/sim/memory"
	"agentville.ai/internal/sim/world/kernel/model"
	"agentville.ai/internal/sim/world/logic/ids"
	"agentville.ai/internal/sim/world/logic/mathx"
)

// World is the aggregate root of one simulation instance. It is not safe for
// concurrent use; the engine serializes every step that touches it.
type World struct {
	cfg  Config
	docs docstore.Store

	nextID     int64
	lastViewed int64

	// applied is the last input of appliedBy whose effect is in this state.
	appliedBy      string
	applied        int64
	appliedResults []AppliedResult

	players       map[string]*model.Player
	agents        map[string]*model.Agent
	conversations map[string]*model.Conversation
	descriptions  map[string]Description

	rng *rand.Rand

	// Work accumulated since the last Save.
	archived       []archivedEntity
	ended          []*model.Conversation
	messages       []MessageRecord
	dirtyDescs     map[string]bool
	// wipe lists the collections the next Save clears before writing.
	wipe []string

	memoryRequests []memory.Request
}

// worldRecord is the persisted world document. Save writes it last, so the
// applied-input watermark only moves once the rest of the step is stored.
type worldRecord struct {
	ID             string          `json:"id"`
	NextID         int64           `json:"next_id"`
	LastViewed     int64           `json:"last_viewed"`
	Seed           int64           `json:"seed"`
	AppliedEngine  string          `json:"applied_engine,omitempty"`
	AppliedInput   int64           `json:"applied_input"`
	AppliedResults []AppliedResult `json:"applied_results,omitempty"`
}

// AppliedResult is the encoded outcome of one applied input, kept with the
// world until the next batch so a lost result can be written again.
type AppliedResult struct {
	Number int64           `json:"number"`
	Result json.RawMessage `json:"result"`
}

type Description struct {
	PlayerID    string `json:"player_id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Description string `json:"description"`
	IsAgent     bool   `json:"is_agent"`
}

type MessageRecord struct {
	ConversationID string `json:"conversation_id"`
	model.Message
}

func (m MessageRecord) docID() string { return m.ConversationID + "/" + m.MessageUUID }

type archivedEntity struct {
	id     string
	player *model.Player
	agent  *model.Agent
}

func newWorld(docs docstore.Store, cfg Config) *World {
	cfg.applyDefaults()
	w := &World{
		cfg:           cfg,
		docs:          docs,
		players:       map[string]*model.Player{},
		agents:        map[string]*model.Agent{},
		conversations: map[string]*model.Conversation{},
		descriptions:  map[string]Description{},
		dirtyDescs:    map[string]bool{},
	}
	w.BeginStep(0)
	return w
}

// Create persists a new, empty world. It fails if cfg.ID is empty.
func Create(ctx context.Context, docs docstore.Store, cfg Config, now int64) (*World, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return nil, fmt.Errorf("%w: empty world id", ErrInvalidArgs)
	}
	w := newWorld(docs, cfg)
	w.lastViewed = now
	if err := w.Save(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// Load rebuilds the live maps from the store. A missing world record is ErrWorldNotFound.
func Load(ctx context.Context, docs docstore.Store, cfg Config) (*World, error) {
	var rec worldRecord
	if err := docstore.GetJSON(ctx, docs, docstore.Worlds, cfg.ID, cfg.ID, &rec); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrWorldNotFound, cfg.ID)
		}
		return nil, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = rec.Seed
	}
	w := newWorld(docs, cfg)
	w.nextID = rec.NextID
	w.lastViewed = rec.LastViewed
	w.appliedBy = rec.AppliedEngine
	w.applied = rec.AppliedInput
	w.appliedResults = rec.AppliedResults

	if err := loadAll(ctx, docs, docstore.Players, cfg.ID, func(p *model.Player) {
		w.players[p.ID] = p
	}); err != nil {
		return nil, err
	}
	if err := loadAll(ctx, docs, docstore.Agents, cfg.ID, func(a *model.Agent) {
		a.InitDefaults()
		w.agents[a.ID] = a
	}); err != nil {
		return nil, err
	}
	if err := loadAll(ctx, docs, docstore.Conversations, cfg.ID, func(c *model.Conversation) {
		c.Timings = w.cfg.Timings
		w.conversations[c.ID] = c
	}); err != nil {
		return nil, err
	}
	if err := loadAll(ctx, docs, docstore.Descriptions, cfg.ID, func(d *Description) {
		w.descriptions[d.PlayerID] = *d
	}); err != nil {
		return nil, err
	}
	w.BeginStep(w.lastViewed)
	return w, nil
}

func loadAll[T any](ctx context.Context, docs docstore.Store, collection, worldID string, put func(*T)) error {
	list, err := docs.List(ctx, collection, worldID, "")
	if err != nil {
		return fmt.Errorf("load %s: %w", collection, err)
	}
	for _, d := range list {
		v := new(T)
		if err := json.Unmarshal(d.Data, v); err != nil {
			return fmt.Errorf("load %s/%s: %w", collection, d.ID, err)
		}
		put(v)
	}
	return nil
}

// BeginStep reseeds the world's random source from the seed and the step time,
// so a replayed step draws the same numbers.
func (w *World) BeginStep(now int64) {
	w.rng = rand.New(rand.NewSource(mathx.StepSeed(w.cfg.Seed, now)))
}

func (w *World) ID() string        { return w.cfg.ID }
func (w *World) Seed() int64       { return w.cfg.Seed }
func (w *World) Config() Config    { return w.cfg }
func (w *World) NextID() int64     { return w.nextID }
func (w *World) LastViewed() int64 { return w.lastViewed }
func (w *World) Rand() *rand.Rand  { return w.rng }

// AppliedInput is the number of the last input of engineID applied to this
// world, or 0 when another engine applied inputs last.
func (w *World) AppliedInput(engineID string) int64 {
	if engineID != w.appliedBy {
		return 0
	}
	return w.applied
}

// MarkApplied records that inputs of engineID up to number are applied, with
// the results of the batch that got there. Both are persisted by the next Save.
func (w *World) MarkApplied(engineID string, number int64, results []AppliedResult) {
	if number <= w.AppliedInput(engineID) {
		return
	}
	w.appliedBy = engineID
	w.applied = number
	w.appliedResults = results
}

// AppliedResultFor returns the stored result of input number if it belongs to
// the most recent applied batch.
func (w *World) AppliedResultFor(number int64) (json.RawMessage, bool) {
	for _, r := range w.appliedResults {
		if r.Number == number {
			return r.Result, true
		}
	}
	return nil, false
}

func (w *World) allocator() ids.Allocator { return ids.NewAllocator(&w.nextID) }

func (w *World) Player(id string) *model.Player             { return w.players[id] }
func (w *World) Agent(id string) *model.Agent               { return w.agents[id] }
func (w *World) Conversation(id string) *model.Conversation { return w.conversations[id] }

func (w *World) Description(id string) (Description, bool) {
	d, ok := w.descriptions[id]
	return d, ok
}

// Participant looks id up across players and agents.
func (w *World) Participant(id string) (model.Participant, bool) {
	if p := w.players[id]; p != nil {
		return p, true
	}
	if a := w.agents[id]; a != nil {
		return a, true
	}
	return nil, false
}

// Participants returns every player and agent in id order.
func (w *World) Participants() []model.Participant {
	out := make([]model.Participant, 0, len(w.players)+len(w.agents))
	for _, p := range w.players {
		out = append(out, p)
	}
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return ids.Less(out[i].EntityID(), out[j].EntityID()) })
	return out
}

// FindNearbyParticipants returns participants with distance <= radius, in id order.
func (w *World) FindNearbyParticipants(pos model.Vec2, radius float64) []model.Participant {
	var out []model.Participant
	for _, p := range w.Participants() {
		if p.Pos().Dist(pos) <= radius {
			out = append(out, p)
		}
	}
	return out
}

func (w *World) sortedPlayers() []*model.Player {
	out := make([]*model.Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return ids.Less(out[i].ID, out[j].ID) })
	return out
}

func (w *World) sortedAgents() []*model.Agent {
	out := make([]*model.Agent, 0, len(w.agents))
	for _, a := range w.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return ids.Less(out[i].ID, out[j].ID) })
	return out
}

func (w *World) sortedConversations() []*model.Conversation {
	out := make([]*model.Conversation, 0, len(w.conversations))
	for _, c := range w.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return ids.Less(out[i].ID, out[j].ID) })
	return out
}

func (w *World) Counts() (players, agents, conversations int) {
	return len(w.players), len(w.agents), len(w.conversations)
}

// DrainMemoryRequests hands over the memories queued since the last call.
func (w *World) DrainMemoryRequests() []memory.Request {
	out := w.memoryRequests
	w.memoryRequests = nil
	return out
}
