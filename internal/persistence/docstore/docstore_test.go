package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"agentville.ai/internal/sim/inputs"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "agentville.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": openTestSQLite(t),
	}
}

type rec struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		if err := PutJSON(ctx, s, Players, "w1", "3", "", rec{Name: "ada", Score: 1.5}); err != nil {
			t.Fatalf("%s put: %v", name, err)
		}
		if err := PutJSON(ctx, s, Players, "w1", "3", "", rec{Name: "ada", Score: 2}); err != nil {
			t.Fatalf("%s upsert: %v", name, err)
		}
		var got rec
		if err := GetJSON(ctx, s, Players, "w1", "3", &got); err != nil {
			t.Fatalf("%s get: %v", name, err)
		}
		if got.Name != "ada" || got.Score != 2 {
			t.Fatalf("%s: got %+v", name, got)
		}
		if _, err := s.Get(ctx, Players, "w2", "3"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: other world leaked: %v", name, err)
		}
		if err := s.Delete(ctx, Players, "w1", "3"); err != nil {
			t.Fatalf("%s delete: %v", name, err)
		}
		if err := s.Delete(ctx, Players, "w1", "3"); err != nil {
			t.Fatalf("%s delete twice: %v", name, err)
		}
		if _, err := s.Get(ctx, Players, "w1", "3"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected not found after delete, got %v", name, err)
		}
	}
}

func TestStore_ListByOwner(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		_ = PutJSON(ctx, s, Memories, "w1", "b", "agent-1", rec{Name: "b"})
		_ = PutJSON(ctx, s, Memories, "w1", "a", "agent-1", rec{Name: "a"})
		_ = PutJSON(ctx, s, Memories, "w1", "c", "agent-2", rec{Name: "c"})
		_ = PutJSON(ctx, s, Messages, "w1", "m", "agent-1", rec{Name: "m"})

		docs, err := s.List(ctx, Memories, "w1", "agent-1")
		if err != nil {
			t.Fatalf("%s list: %v", name, err)
		}
		if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
			t.Fatalf("%s: owner list %+v", name, docs)
		}
		all, _ := s.List(ctx, Memories, "w1", "")
		if len(all) != 3 {
			t.Fatalf("%s: expected 3 memories, got %d", name, len(all))
		}
	}
}

func TestStore_DeleteWorld(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		_ = PutJSON(ctx, s, Players, "w1", "1", "", rec{})
		_ = PutJSON(ctx, s, ArchivedPlayers, "w1", "2", "", rec{})
		_ = PutJSON(ctx, s, Engines, "w1", "e", "", rec{})
		_ = PutJSON(ctx, s, Players, "w2", "1", "", rec{})

		if err := s.DeleteWorld(ctx, "w1", Players, ArchivedPlayers); err != nil {
			t.Fatalf("%s delete world: %v", name, err)
		}
		if docs, _ := s.List(ctx, Players, "w1", ""); len(docs) != 0 {
			t.Fatalf("%s: players survived", name)
		}
		if docs, _ := s.List(ctx, ArchivedPlayers, "w1", ""); len(docs) != 0 {
			t.Fatalf("%s: archive survived", name)
		}
		if _, err := s.Get(ctx, Engines, "w1", "e"); err != nil {
			t.Fatalf("%s: unlisted collection was dropped: %v", name, err)
		}
		if _, err := s.Get(ctx, Players, "w2", "1"); err != nil {
			t.Fatalf("%s: other world was dropped: %v", name, err)
		}

		if err := s.DeleteWorld(ctx, "w1"); err != nil {
			t.Fatalf("%s delete all: %v", name, err)
		}
		if _, err := s.Get(ctx, Engines, "w1", "e"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected everything gone, got %v", name, err)
		}
	}
}

func TestStore_RejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range storesUnderTest(t) {
		if err := s.Put(ctx, Doc{Collection: Players, WorldID: "w1", Data: json.RawMessage(`{}`)}); err == nil {
			t.Fatalf("%s: empty id accepted", name)
		}
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "agentville.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_ = PutJSON(ctx, s, Worlds, "w1", "w1", "", rec{Name: "town"})
	n, err := s.Inputs().Append(ctx, "e1", "join", json.RawMessage(`{"name":"ada"}`), 10)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	var got rec
	if err := GetJSON(ctx, s, Worlds, "w1", "w1", &got); err != nil || got.Name != "town" {
		t.Fatalf("world after reopen: %+v err=%v", got, err)
	}
	in, err := s.Inputs().Get(ctx, "e1", n)
	if err != nil {
		t.Fatalf("input after reopen: %v", err)
	}
	if in.Name != "join" || string(in.Args) != `{"name":"ada"}` || in.ReceivedAt != 10 {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestInputLog_OrderAndResults(t *testing.T) {
	ctx := context.Background()
	log := openTestSQLite(t).Inputs()

	for i := 1; i <= 5; i++ {
		n, err := log.Append(ctx, "e1", "walkTo", nil, int64(i))
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if n != int64(i) {
			t.Fatalf("number=%d want %d", n, i)
		}
	}
	if n, _ := log.Append(ctx, "e2", "stop", nil, 0); n != 1 {
		t.Fatalf("numbering must be per engine, got %d", n)
	}

	batch, err := log.After(ctx, "e1", 2, 2)
	if err != nil {
		t.Fatalf("after: %v", err)
	}
	if len(batch) != 2 || batch[0].Number != 3 || batch[1].Number != 4 {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if string(batch[0].Args) != `{}` {
		t.Fatalf("nil args should be stored as an empty object, got %s", batch[0].Args)
	}

	if err := log.SetResult(ctx, "e1", 3, inputs.OK(map[string]string{"id": "9"})); err != nil {
		t.Fatalf("set result: %v", err)
	}
	if err := log.SetResult(ctx, "e1", 3, inputs.Result{Error: "late"}); !errors.Is(err, inputs.ErrResultAlreadySet) {
		t.Fatalf("second result: %v", err)
	}
	if err := log.SetResult(ctx, "e1", 42, inputs.Result{Error: "x"}); !errors.Is(err, inputs.ErrInputNotFound) {
		t.Fatalf("missing input: %v", err)
	}
	in, _ := log.Get(ctx, "e1", 3)
	if in.Result == nil || string(in.Result.OK) != `{"id":"9"}` {
		t.Fatalf("stored result %+v", in.Result)
	}

	rest, _ := log.After(ctx, "e1", 0, 0)
	if len(rest) != 5 {
		t.Fatalf("unlimited after returned %d inputs", len(rest))
	}
}
