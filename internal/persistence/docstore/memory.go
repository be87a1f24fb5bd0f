package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

type memKey struct {
	collection, worldID, id string
}

// Memory is an in-process Store used by tests and -disable_db runs.
type Memory struct {
	mu   sync.RWMutex
	docs map[memKey]Doc
}

func NewMemory() *Memory {
	return &Memory{docs: map[memKey]Doc{}}
}

func (m *Memory) Get(_ context.Context, collection, worldID, id string) (Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[memKey{collection, worldID, id}]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return cloneDoc(d), nil
}

func (m *Memory) Put(_ context.Context, d Doc) error {
	if err := validKey(d.Collection, d.ID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[memKey{d.Collection, d.WorldID, d.ID}] = cloneDoc(d)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, worldID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, memKey{collection, worldID, id})
	return nil
}

func (m *Memory) List(_ context.Context, collection, worldID, owner string) ([]Doc, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Doc
	for k, d := range m.docs {
		if k.collection != collection || k.worldID != worldID {
			continue
		}
		if owner != "" && d.Owner != owner {
			continue
		}
		out = append(out, cloneDoc(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteWorld(_ context.Context, worldID string, collections ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, c := range collections {
		want[c] = true
	}
	for k := range m.docs {
		if k.worldID != worldID {
			continue
		}
		if len(want) > 0 && !want[k.collection] {
			continue
		}
		delete(m.docs, k)
	}
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func cloneDoc(d Doc) Doc {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
