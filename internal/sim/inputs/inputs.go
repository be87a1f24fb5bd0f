// Package inputs is the append-only, per-engine ordered command log. Each
// input carries a result slot that is written exactly once.
package inputs

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
)

var (
	ErrInputNotFound    = errors.New("input not found")
	ErrResultAlreadySet = errors.New("input result already set")
)

type Result struct {
	OK    json.RawMessage `json:"ok,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

func (r Result) Failed() bool { return r.Error != "" }

// OK marshals v as a success result. Values that cannot be marshaled become null.
func OK(v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte("null")
	}
	return Result{OK: b}
}

func Fail(code string, err error) Result {
	return Result{Error: err.Error(), Code: code}
}

type Input struct {
	EngineID   string          `json:"engine_id"`
	Number     int64           `json:"number"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	ReceivedAt int64           `json:"received_at"`
	Result     *Result         `json:"result,omitempty"`
}

// Log is the durable input queue. Numbers start at 1 and strictly increase per engine.
type Log interface {
	Append(ctx context.Context, engineID, name string, args json.RawMessage, receivedAt int64) (int64, error)
	// After returns up to limit inputs with Number > watermark, in order.
	After(ctx context.Context, engineID string, watermark int64, limit int) ([]Input, error)
	SetResult(ctx context.Context, engineID string, number int64, r Result) error
	Get(ctx context.Context, engineID string, number int64) (Input, error)
}

// Memory is an in-process Log.
type Memory struct {
	mu       sync.Mutex
	byEngine map[string][]Input
}

func NewMemory() *Memory {
	return &Memory{byEngine: map[string][]Input{}}
}

func (m *Memory) Append(_ context.Context, engineID, name string, args json.RawMessage, receivedAt int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.byEngine[engineID]
	n := int64(len(log)) + 1
	m.byEngine[engineID] = append(log, Input{
		EngineID:   engineID,
		Number:     n,
		Name:       name,
		Args:       append(json.RawMessage(nil), args...),
		ReceivedAt: receivedAt,
	})
	return n, nil
}

func (m *Memory) After(_ context.Context, engineID string, watermark int64, limit int) ([]Input, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.byEngine[engineID]
	i := sort.Search(len(log), func(i int) bool { return log[i].Number > watermark })
	var out []Input
	for ; i < len(log); i++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, log[i].clone())
	}
	return out, nil
}

func (m *Memory) SetResult(_ context.Context, engineID string, number int64, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.byEngine[engineID]
	if number < 1 || number > int64(len(log)) {
		return ErrInputNotFound
	}
	in := &log[number-1]
	if in.Result != nil {
		return ErrResultAlreadySet
	}
	in.Result = &r
	return nil
}

func (m *Memory) Get(_ context.Context, engineID string, number int64) (Input, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log := m.byEngine[engineID]
	if number < 1 || number > int64(len(log)) {
		return Input{}, ErrInputNotFound
	}
	return log[number-1].clone(), nil
}

func (in Input) clone() Input {
	out := in
	if in.Result != nil {
		r := *in.Result
		out.Result = &r
	}
	return out
}
