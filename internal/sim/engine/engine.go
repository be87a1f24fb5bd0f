// Package engine drives one world: it drains the input log in order, ticks the
// world, persists it and reschedules itself while running.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/persistence/snapshot"
	"agentville.ai/internal/protocol"
	"agentville.ai/internal/sim/inputs"
	"agentville.ai/internal/sim/memory"
	"agentville.ai/internal/sim/tuning"
	"agentville.ai/internal/sim/world"
)

var (
	ErrEngineNotFound   = errors.New("engine not found")
	ErrStaleGeneration  = errors.New("engine generation changed during step")
	ErrAlreadyInitiated = errors.New("engine already exists for another world")
)

type Config struct {
	ID      string
	WorldID string
	Seed    int64

	TickDurationMs     int64
	StepIntervalMs     int64
	MaxInputsPerStep   int
	SnapshotEverySteps uint64

	World      world.Config
	Memory     tuning.Memory
	Characters []tuning.Character
}

func ConfigFromTuning(engineID, worldID string, seed int64, t tuning.Tuning) Config {
	every := uint64(0)
	if t.SnapshotEverySteps > 0 {
		every = uint64(t.SnapshotEverySteps)
	}
	return Config{
		ID:                 engineID,
		WorldID:            worldID,
		Seed:               seed,
		TickDurationMs:     t.TickDurationMs,
		StepIntervalMs:     t.StepIntervalMs,
		MaxInputsPerStep:   t.MaxInputsPerStep,
		SnapshotEverySteps: every,
		World:              world.ConfigFromTuning(worldID, seed, t),
		Memory:             t.Memory,
		Characters:         append([]tuning.Character(nil), t.Characters...),
	}
}

func (c *Config) applyDefaults() {
	if c.TickDurationMs <= 0 {
		c.TickDurationMs = 16
	}
	if c.StepIntervalMs <= 0 {
		c.StepIntervalMs = c.TickDurationMs
	}
	if c.MaxInputsPerStep <= 0 {
		c.MaxInputsPerStep = 100
	}
	c.World.ID = c.WorldID
	c.World.Seed = c.Seed
	c.World.TickDurationMs = c.TickDurationMs
}

// Record is the persisted engine document.
type Record struct {
	ID                   string `json:"id"`
	WorldID              string `json:"world_id"`
	Running              bool   `json:"running"`
	CurrentTime          int64  `json:"current_time"`
	LastStepTs           int64  `json:"last_step_ts"`
	ProcessedInputNumber int64  `json:"processed_input_number"`
	GenerationNumber     int64  `json:"generation_number"`
	Steps                uint64 `json:"steps"`
}

// StepLogEntry is one line of the step log.
type StepLogEntry struct {
	EngineID  string `json:"engine_id"`
	WorldID   string `json:"world_id"`
	Step      uint64 `json:"step"`
	Time      int64  `json:"time"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed,omitempty"`
	Watermark int64  `json:"watermark"`
	Running   bool   `json:"running"`
	Digest    string `json:"digest"`
}

type StepLogger interface {
	WriteStep(StepLogEntry) error
}

type Engine struct {
	cfg    Config
	docs   docstore.Store
	inputs inputs.Log
	sched  Scheduler
	logger *log.Logger
	clock  func() time.Time

	memories *memory.Store

	// mu serializes steps.
	mu sync.Mutex

	stepLog  StepLogger
	snapSink chan<- snapshot.SnapshotV1

	viewMu sync.RWMutex
	view   *world.View

	runMu     sync.Mutex
	runCtx    context.Context
	scheduled bool
}

type Option func(*Engine)

func WithScheduler(s Scheduler) Option    { return func(e *Engine) { e.sched = s } }
func WithLogger(l *log.Logger) Option     { return func(e *Engine) { e.logger = l } }
func WithClock(f func() time.Time) Option { return func(e *Engine) { e.clock = f } }

// WithEmbedder replaces the hash embedder used for memories. Embeddings are
// still cached by content hash in the document store.
func WithEmbedder(emb memory.Embedder) Option {
	return func(e *Engine) {
		e.memories = memory.NewStore(e.docs, e.cfg.WorldID, memory.CachedEmbedder{Docs: e.docs, Inner: emb})
	}
}

func New(cfg Config, docs docstore.Store, in inputs.Log, opts ...Option) (*Engine, error) {
	if strings.TrimSpace(cfg.ID) == "" || strings.TrimSpace(cfg.WorldID) == "" {
		return nil, fmt.Errorf("engine: id and world id are required")
	}
	if docs == nil || in == nil {
		return nil, fmt.Errorf("engine: document store and input log are required")
	}
	cfg.applyDefaults()
	e := &Engine{
		cfg:    cfg,
		docs:   docs,
		inputs: in,
		sched:  TimerScheduler{},
		logger: log.New(io.Discard, "", 0),
		clock:  time.Now,
	}
	e.memories = memory.NewStore(docs, cfg.WorldID, memory.CachedEmbedder{
		Docs:  docs,
		Inner: memory.HashEmbedder{Dimensions: cfg.Memory.EmbeddingDimensions},
	})
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

func (e *Engine) ID() string      { return e.cfg.ID }
func (e *Engine) WorldID() string { return e.cfg.WorldID }
func (e *Engine) Config() Config  { return e.cfg }

func (e *Engine) SetStepLogger(l StepLogger) { e.stepLog = l }

// SetSnapshotSink receives a snapshot every SnapshotEverySteps steps. Sends never block the step.
func (e *Engine) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { e.snapSink = ch }

// Init creates the engine record, and a fresh world seeded with the configured
// characters, when they do not exist yet. It is a no-op for an existing engine.
func (e *Engine) Init(ctx context.Context) (Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.loadRecord(ctx)
	switch {
	case err == nil:
		if rec.WorldID != e.cfg.WorldID {
			return rec, fmt.Errorf("%w: %s runs %s", ErrAlreadyInitiated, rec.ID, rec.WorldID)
		}
		return rec, nil
	case !errors.Is(err, ErrEngineNotFound):
		return Record{}, err
	}

	now := e.clock().UnixMilli()
	if _, err := world.Load(ctx, e.docs, e.cfg.World); errors.Is(err, world.ErrWorldNotFound) {
		w, err := world.Create(ctx, e.docs, e.cfg.World, now)
		if err != nil {
			return Record{}, err
		}
		if err := e.seedCharacters(w, now); err != nil {
			return Record{}, err
		}
		if err := w.Save(ctx); err != nil {
			return Record{}, err
		}
		now = w.LastViewed()
	} else if err != nil {
		return Record{}, err
	}

	rec = Record{
		ID:          e.cfg.ID,
		WorldID:     e.cfg.WorldID,
		Running:     true,
		CurrentTime: now,
		LastStepTs:  now,
	}
	if err := e.putRecord(ctx, rec); err != nil {
		return Record{}, err
	}
	e.logger.Printf("engine %s initialized for world %s", rec.ID, rec.WorldID)
	return rec, nil
}

func (e *Engine) seedCharacters(w *world.World, now int64) error {
	for _, c := range e.cfg.Characters {
		if _, err := w.AddPlayer(c.Name, c.Character, c.Description, c.Agent, now); err != nil {
			return fmt.Errorf("seed %s: %w", c.Name, err)
		}
	}
	return nil
}

func (e *Engine) loadRecord(ctx context.Context) (Record, error) {
	var rec Record
	err := docstore.GetJSON(ctx, e.docs, docstore.Engines, e.cfg.WorldID, e.cfg.ID, &rec)
	if errors.Is(err, docstore.ErrNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrEngineNotFound, e.cfg.ID)
	}
	return rec, err
}

func (e *Engine) putRecord(ctx context.Context, rec Record) error {
	return docstore.PutJSON(ctx, e.docs, docstore.Engines, e.cfg.WorldID, rec.ID, "", rec)
}

// Record reads the persisted engine record.
func (e *Engine) Record(ctx context.Context) (Record, error) { return e.loadRecord(ctx) }

// Submit validates a command and appends it to the input log. The command is
// applied by a later step; its number identifies the result.
func (e *Engine) Submit(ctx context.Context, name string, args json.RawMessage) (int64, error) {
	if !protocol.IsCommand(name) {
		return 0, fmt.Errorf("%w: %q", protocol.ErrCommandUnknown, name)
	}
	if err := protocol.ValidateArgs(name, args); err != nil {
		return 0, err
	}
	n, err := e.inputs.Append(ctx, e.cfg.ID, name, args, e.clock().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("append input: %w", err)
	}
	e.kick(0)
	return n, nil
}

// Result returns the outcome of input n, or nil while it is pending.
func (e *Engine) Result(ctx context.Context, n int64) (*inputs.Result, error) {
	in, err := e.inputs.Get(ctx, e.cfg.ID, n)
	if err != nil {
		return nil, err
	}
	return in.Result, nil
}

// WaitResult polls Result until it is set or ctx is done.
func (e *Engine) WaitResult(ctx context.Context, n int64, poll time.Duration) (inputs.Result, error) {
	if poll <= 0 {
		poll = time.Duration(e.cfg.StepIntervalMs) * time.Millisecond
	}
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		r, err := e.Result(ctx, n)
		if err != nil {
			return inputs.Result{}, err
		}
		if r != nil {
			return *r, nil
		}
		select {
		case <-ctx.Done():
			return inputs.Result{}, ctx.Err()
		case <-t.C:
		}
	}
}

// View returns the projection cached by the last step.
func (e *Engine) View() (world.View, bool) {
	e.viewMu.RLock()
	defer e.viewMu.RUnlock()
	if e.view == nil {
		return world.View{}, false
	}
	return *e.view, true
}

// RecallMemories ranks an agent's memories against query.
func (e *Engine) RecallMemories(ctx context.Context, agentID, query string, limit int) ([]memory.Scored, error) {
	if limit <= 0 {
		limit = e.cfg.Memory.RetrieveLimit
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, err := e.loadRecord(ctx)
	if err != nil {
		return nil, err
	}
	return e.memories.Retrieve(ctx, agentID, query, limit, memory.DefaultMinImportance, rec.CurrentTime)
}
