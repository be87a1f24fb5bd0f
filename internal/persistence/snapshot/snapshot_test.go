package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"agentville.ai/internal/sim/world/kernel/model"
)

func TestWriteReadSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := PathFor(dir, 42)

	a := model.NewAgent("1", "Lucky", "f1", model.Vec2{X: 1, Y: 2}, 4, 1000)
	a.UpdateSocialConnection("2", 5, 1000)
	a.UpdateTrustScore(-3, "rude", "ignored a greeting", 1000)
	p := model.NewPlayer("2", "Me", "f3", model.Vec2{X: 3, Y: 4}, 4, 1000)
	c := model.NewConversation("3", "1", []string{"2"}, 1000, model.DefaultConversationTimings())
	if _, err := c.AddMessage("1", "hi", "u1", 1100); err != nil {
		t.Fatalf("add message: %v", err)
	}

	in := SnapshotV1{
		Header:         Header{WorldID: "w1", EngineID: "e1", Time: 1100, Step: 42},
		Seed:           7,
		NextID:         4,
		TickDurationMs: 16,
		Timings:        model.DefaultConversationTimings(),
		LifeCycle:      model.DefaultLifeCycle(),
		Players:        []model.Player{*p},
		Agents:         []model.Agent{*a},
		Conversations:  []model.Conversation{*c},
		Descriptions:   []DescriptionV1{{PlayerID: "1", Name: "Lucky", Description: "cheerful", IsAgent: true}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if h.Version != Version || h.WorldID != "w1" || h.Step != 42 {
		t.Fatalf("header %+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.NextID != 4 || out.Seed != 7 || len(out.Agents) != 1 || len(out.Players) != 1 || len(out.Conversations) != 1 {
		t.Fatalf("snapshot %+v", out)
	}
	ga := out.Agents[0]
	if ga.TrustScore != 47 || ga.PeerTrust("2") != 55 || len(ga.ReputationHistory) != 1 {
		t.Fatalf("agent state lost: %+v", ga)
	}
	gc := out.Conversations[0]
	if gc.CurrentSpeaker != "1" || gc.NumMessages != 1 || gc.LastMessage == nil || gc.LastMessage.Text != "hi" {
		t.Fatalf("conversation state lost: %+v", gc)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
