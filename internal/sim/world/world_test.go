package world

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/persistence/snapshot"
	"agentville.ai/internal/sim/memory"
	"agentville.ai/internal/sim/world/kernel/model"
)

func testConfig() Config {
	return Config{ID: "w1", Seed: 42, TickDurationMs: 16}
}

func newTestWorld(t *testing.T, docs docstore.Store, cfg Config) *World {
	t.Helper()
	w, err := Create(context.Background(), docs, cfg, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return w
}

func mustAdd(t *testing.T, w *World, name string, isAgent bool, pos model.Vec2) string {
	t.Helper()
	p, err := w.AddPlayer(name, "f1", name+" description", isAgent, 0)
	if err != nil {
		t.Fatalf("add %s: %v", name, err)
	}
	p.Base().Position = pos
	return p.EntityID()
}

func TestEndToEndConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", true, model.Vec2{})
	b := mustAdd(t, w, "B", true, model.Vec2{X: 1})

	c, err := w.StartConversation(a, []string{b}, 10)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if c.Status != model.ConversationActive {
		t.Fatalf("status=%s want active", c.Status)
	}
	if w.Agent(a).ConversationID != c.ID || w.Agent(b).ConversationID != c.ID {
		t.Fatalf("both participants should be in %s", c.ID)
	}

	if _, err := w.SendMessage(a, "hi", "u1", 20); err != nil {
		t.Fatalf("A hi: %v", err)
	}
	if c.NumMessages != 1 || c.CurrentSpeaker != a {
		t.Fatalf("num=%d speaker=%q", c.NumMessages, c.CurrentSpeaker)
	}
	if _, err := w.SendMessage(b, "hey", "u2", 21); !errors.Is(err, model.ErrNotYourTurn) {
		t.Fatalf("B out of turn: err=%v", err)
	}
	if err := w.FinishSpeaking(a, c.ID, 22); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if c.CurrentSpeaker != "" {
		t.Fatalf("speaker not cleared: %q", c.CurrentSpeaker)
	}
	if _, err := w.SendMessage(b, "hello", "u3", 23); err != nil {
		t.Fatalf("B hello: %v", err)
	}
	if c.NumMessages != 2 {
		t.Fatalf("num=%d want 2", c.NumMessages)
	}
}

func TestAllocatorIDsAreDistinct(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	before := w.NextID()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := w.allocator().Allocate()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
	if w.NextID() != before+50 {
		t.Fatalf("next=%d want %d", w.NextID(), before+50)
	}
}

func TestConversationClosesWhenOneOfTwoLeaves(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	w := newTestWorld(t, docs, testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", true, model.Vec2{X: 1})

	c, err := w.StartConversation(a, []string{b}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.LeaveConversation(b, c.ID, 5); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if c.Status != model.ConversationEnded || c.Ended != 5 {
		t.Fatalf("status=%s ended=%d", c.Status, c.Ended)
	}
	if w.Player(a).ConversationID != "" || w.Agent(b).ConversationID != "" {
		t.Fatalf("conversation ids not cleared")
	}
	if w.Player(a).Status != model.StatusIdle {
		t.Fatalf("status=%s want idle", w.Player(a).Status)
	}
	if w.Conversation(c.ID) != nil {
		t.Fatalf("ended conversation still live")
	}
	// Leaving again is a no-op.
	if err := w.LeaveConversation(b, c.ID, 6); err != nil {
		t.Fatalf("second leave: %v", err)
	}

	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := docs.Get(ctx, docstore.ArchivedConversations, "w1", c.ID); err != nil {
		t.Fatalf("archived conversation: %v", err)
	}
	if _, err := docs.Get(ctx, docstore.Conversations, "w1", c.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("live conversation should be gone, err=%v", err)
	}
}

func TestStartConversationGuards(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c := mustAdd(t, w, "C", true, model.Vec2{})

	if _, err := w.StartConversation(a, []string{a}, 0); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("self invite: err=%v", err)
	}
	if _, err := w.StartConversation(a, []string{"404"}, 0); !errors.Is(err, ErrPlayerNotFound) {
		t.Fatalf("unknown invitee: err=%v", err)
	}
	if _, err := w.StartConversation(a, []string{b}, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := w.StartConversation(c, []string{b}, 0); !errors.Is(err, ErrAlreadyInConversation) {
		t.Fatalf("busy invitee: err=%v", err)
	}
	w.Agent(c).FallAsleep(0, w.Config().LifeCycle)
	d := mustAdd(t, w, "D", false, model.Vec2{})
	if _, err := w.StartConversation(d, []string{c}, 0); !errors.Is(err, model.ErrBusy) {
		t.Fatalf("sleeping invitee: err=%v", err)
	}
}

func TestMultiInviteeConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	host := mustAdd(t, w, "Host", true, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c := mustAdd(t, w, "C", false, model.Vec2{})

	conv, err := w.StartConversation(host, []string{b, c, b}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if conv.Status != model.ConversationWaiting || len(conv.Invited) != 2 {
		t.Fatalf("status=%s invited=%v", conv.Status, conv.Invited)
	}
	if w.Player(b).ConversationID != "" {
		t.Fatalf("invitee joined before accepting")
	}
	if err := w.AcceptInvite(b, conv.ID, 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if w.Player(b).ConversationID != conv.ID {
		t.Fatalf("accepting invitee not in conversation")
	}
	if err := w.RejectInvite(c, conv.ID, 2); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if conv.Status != model.ConversationActive || len(conv.Participants) != 2 {
		t.Fatalf("status=%s participants=%v", conv.Status, conv.Participants)
	}
	// One accept and one reject leave the host's reputation where it started.
	if got := w.Agent(host).TrustScore; got != 50 {
		t.Fatalf("trust=%v want 50", got)
	}
	if n := len(w.Agent(host).ReputationHistory); n != 2 {
		t.Fatalf("history=%d want 2", n)
	}
	if err := w.RejectInvite(c, conv.ID, 3); !errors.Is(err, model.ErrNotInvited) {
		t.Fatalf("second reject: err=%v", err)
	}
}

func TestLeaveBeforeRemainingInviteeAnswersEndsConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	host := mustAdd(t, w, "Host", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c := mustAdd(t, w, "C", false, model.Vec2{})

	conv, err := w.StartConversation(host, []string{b, c}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.AcceptInvite(b, conv.ID, 1); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := w.LeaveConversation(b, conv.ID, 2); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if w.Conversation(conv.ID) != nil {
		t.Fatalf("conversation still live after host was left alone")
	}
	if got := w.Player(host).ConversationID; got != "" {
		t.Fatalf("host still in %q", got)
	}
	if err := w.AcceptInvite(c, conv.ID, 3); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("late accept: err=%v", err)
	}
}

func TestRejectByOnlyInviteeEndsConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	host := mustAdd(t, w, "Host", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c := mustAdd(t, w, "C", false, model.Vec2{})

	conv, err := w.StartConversation(host, []string{b, c}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.RejectInvite(b, conv.ID, 1); err != nil {
		t.Fatalf("reject b: %v", err)
	}
	if err := w.RejectInvite(c, conv.ID, 2); err != nil {
		t.Fatalf("reject c: %v", err)
	}
	if w.Conversation(conv.ID) != nil || w.Player(host).ConversationID != "" {
		t.Fatalf("conversation should have ended and released the host")
	}
}

func TestRemovePlayerEndsConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c, err := w.StartConversation(a, []string{b}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !w.RemovePlayer(b, 1) {
		t.Fatalf("remove reported absent")
	}
	if w.RemovePlayer(b, 2) {
		t.Fatalf("second remove should be a no-op")
	}
	if w.Conversation(c.ID) != nil || w.Player(a).ConversationID != "" {
		t.Fatalf("conversation not closed")
	}
	if _, ok := w.Participant(b); ok {
		t.Fatalf("removed player still live")
	}
}

func TestFindNearbyParticipantsIsInclusive(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", true, model.Vec2{X: 3, Y: 4})
	mustAdd(t, w, "C", false, model.Vec2{X: 5.01})

	got := w.FindNearbyParticipants(model.Vec2{}, 5)
	if len(got) != 2 || got[0].EntityID() != a || got[1].EntityID() != b {
		ids := []string{}
		for _, p := range got {
			ids = append(ids, p.EntityID())
		}
		t.Fatalf("nearby=%v want [%s %s]", ids, a, b)
	}
}

func TestWalkToConverges(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	dest := model.Vec2{X: 3, Y: 4}
	if err := w.WalkTo(a, dest, 0); err != nil {
		t.Fatalf("walk: %v", err)
	}
	// 5 units at speed 4 and 16ms ticks: ceil(5/0.064) = 79 ticks.
	now := int64(0)
	for i := 0; i < 79; i++ {
		now += 16
		w.Tick(now)
	}
	p := w.Player(a)
	if !p.Position.Equal(dest) || p.Status != model.StatusIdle || p.Pathfinding != nil {
		t.Fatalf("pos=%v status=%s path=%v", p.Position, p.Status, p.Pathfinding)
	}
}

func TestSleepCycleThroughTick(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	id := mustAdd(t, w, "A", true, model.Vec2{})
	a := w.Agent(id)
	a.Emotions.Energy = 10

	w.Tick(16)
	if !a.Sleeping() {
		t.Fatalf("status=%s want sleeping", a.Status)
	}
	w.Tick(a.SleepUntil - 1)
	if !a.Sleeping() {
		t.Fatalf("woke early")
	}
	w.DrainMemoryRequests()
	w.Tick(a.SleepUntil)
	if a.Status != model.StatusIdle || a.Emotions.Energy != 100 {
		t.Fatalf("status=%s energy=%v", a.Status, a.Emotions.Energy)
	}
	reqs := w.DrainMemoryRequests()
	if len(reqs) != 1 || reqs[0].Kind != memory.KindReflection || reqs[0].Owner != id {
		t.Fatalf("wake memory requests=%+v", reqs)
	}
}

func TestSleepLeavesConversation(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", true, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c, err := w.StartConversation(b, []string{a}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Agent(a).Emotions.Energy = 0
	w.Tick(16)
	if !w.Agent(a).Sleeping() || w.Agent(a).ConversationID != "" {
		t.Fatalf("agent should sleep outside any conversation")
	}
	if w.Conversation(c.ID) != nil || w.Player(b).ConversationID != "" {
		t.Fatalf("conversation should have ended")
	}
}

func TestConversationTimesOutThroughTick(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	c, err := w.StartConversation(a, []string{b}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	w.Tick(c.InactivityTimeout - 1)
	if w.Conversation(c.ID) == nil {
		t.Fatalf("ended too early")
	}
	w.Tick(c.InactivityTimeout)
	if w.Conversation(c.ID) != nil || w.Player(a).ConversationID != "" {
		t.Fatalf("inactive conversation should end")
	}
	if w.LastViewed() != c.Ended {
		t.Fatalf("last viewed=%d ended=%d", w.LastViewed(), c.Ended)
	}
}

func TestMessagesNudgeAgentsAndQueueMeetings(t *testing.T) {
	ctx := context.Background()
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	p := mustAdd(t, w, "P", false, model.Vec2{})
	a := mustAdd(t, w, "A", true, model.Vec2{})
	c, err := w.StartConversation(p, []string{a}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := w.SendMessage(p, "hi", "m1", 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := w.Agent(a).PeerTrust(p); got != 50.5 {
		t.Fatalf("peer trust=%v want 50.5", got)
	}
	reqs := w.DrainMemoryRequests()
	if len(reqs) != 1 || reqs[0].Kind != memory.KindRelationship || reqs[0].PeerID != p || reqs[0].Owner != a {
		t.Fatalf("requests=%+v", reqs)
	}
	if _, err := w.SendMessage(p, "again", "m2", 2); err != nil {
		t.Fatalf("send again: %v", err)
	}
	if reqs := w.DrainMemoryRequests(); len(reqs) != 0 {
		t.Fatalf("second message queued %d memories", len(reqs))
	}

	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	msgs, err := w.Messages(ctx, c.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "hi" || msgs[1].Text != "again" {
		t.Fatalf("messages=%+v", msgs)
	}
}

func TestAgentWakeUp(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", true, model.Vec2{})
	p := mustAdd(t, w, "P", false, model.Vec2{})

	if _, err := w.AgentWakeUp(p, 0); !errors.Is(err, ErrNotAgent) {
		t.Fatalf("player wake: err=%v", err)
	}
	if woke, err := w.AgentWakeUp(a, 0); err != nil || woke {
		t.Fatalf("awake agent: woke=%v err=%v", woke, err)
	}
	w.Agent(a).FallAsleep(0, w.Config().LifeCycle)
	if woke, err := w.AgentWakeUp(a, 10); err != nil || !woke {
		t.Fatalf("sleeping agent: woke=%v err=%v", woke, err)
	}
	if w.Agent(a).Sleeping() {
		t.Fatalf("still asleep")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	w := newTestWorld(t, docs, testConfig())
	a := mustAdd(t, w, "A", true, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{X: 1})
	c, err := w.StartConversation(b, []string{a}, 5)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := w.SendMessage(b, "hi", "m1", 6); err != nil {
		t.Fatalf("send: %v", err)
	}
	w.Tick(16)
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := Load(ctx, docs, testConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Digest() != w.Digest() {
		t.Fatalf("digest mismatch after load")
	}
	lc := got.Conversation(c.ID)
	if lc == nil || lc.Timings != w.Config().Timings {
		t.Fatalf("conversation timings not restored: %+v", lc)
	}
	if d, ok := got.Description(a); !ok || d.Name != "A" || !d.IsAgent {
		t.Fatalf("description=%+v ok=%v", d, ok)
	}
}

func TestLoadMissingWorld(t *testing.T) {
	_, err := Load(context.Background(), docstore.NewMemory(), testConfig())
	if !errors.Is(err, ErrWorldNotFound) {
		t.Fatalf("err=%v want ErrWorldNotFound", err)
	}
}

func TestRestartWipesWorldButNotEngines(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	w := newTestWorld(t, docs, testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	mustAdd(t, w, "B", false, model.Vec2{})
	w.RemovePlayer(a, 1)
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := docstore.PutJSON(ctx, docs, docstore.Engines, "w1", "e1", "", map[string]bool{"running": true}); err != nil {
		t.Fatalf("put engine: %v", err)
	}

	w.Restart(100)
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save after restart: %v", err)
	}
	for _, coll := range []string{docstore.Players, docstore.ArchivedPlayers, docstore.Descriptions} {
		list, err := docs.List(ctx, coll, "w1", "")
		if err != nil {
			t.Fatalf("list %s: %v", coll, err)
		}
		if len(list) != 0 {
			t.Fatalf("%s has %d docs after restart", coll, len(list))
		}
	}
	if _, err := docs.Get(ctx, docstore.Engines, "w1", "e1"); err != nil {
		t.Fatalf("engine record lost: %v", err)
	}
	got, err := Load(ctx, docs, testConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.NextID() != 0 || got.LastViewed() != 100 {
		t.Fatalf("next=%d last=%d", got.NextID(), got.LastViewed())
	}
}

// flakyStore fails every Put into one collection.
type flakyStore struct {
	docstore.Store
	failCollection string
}

func (s *flakyStore) Put(ctx context.Context, d docstore.Doc) error {
	if d.Collection == s.failCollection {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, d)
}

func TestSaveContinuesPastEntityErrors(t *testing.T) {
	ctx := context.Background()
	inner := docstore.NewMemory()
	store := &flakyStore{Store: inner}
	w := newTestWorld(t, store, testConfig())
	p := mustAdd(t, w, "P", false, model.Vec2{})
	a := mustAdd(t, w, "A", true, model.Vec2{})

	store.failCollection = docstore.Players
	if err := w.Save(ctx); err == nil {
		t.Fatalf("expected joined error")
	}
	if _, err := inner.Get(ctx, docstore.Agents, "w1", a); err != nil {
		t.Fatalf("agent should be saved despite player failure: %v", err)
	}

	// An archive that fails is retried on the next save.
	store.failCollection = docstore.ArchivedPlayers
	w.RemovePlayer(p, 1)
	if err := w.Save(ctx); err == nil {
		t.Fatalf("expected archive error")
	}
	store.failCollection = ""
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := inner.Get(ctx, docstore.ArchivedPlayers, "w1", p); err != nil {
		t.Fatalf("archived player missing after retry: %v", err)
	}
}

func TestSnapshotRoundTripPreservesDigest(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	a := mustAdd(t, w, "A", true, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{X: 2})
	if _, err := w.StartConversation(b, []string{a}, 0); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := w.SendMessage(b, "hi", "m1", 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := w.WalkTo(a, model.Vec2{X: 9}, 2); err == nil {
		t.Fatalf("talking agent should not walk")
	}
	w.Tick(16)

	path := filepath.Join(t.TempDir(), "snap.zst")
	if err := snapshot.WriteSnapshot(path, w.ExportSnapshot("e1", 7)); err != nil {
		t.Fatalf("write: %v", err)
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Header.Step != 7 || snap.Header.EngineID != "e1" {
		t.Fatalf("header=%+v", snap.Header)
	}
	got, err := ImportSnapshot(docstore.NewMemory(), Config{}, snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got.ID() != "w1" || got.Digest() != w.Digest() {
		t.Fatalf("digest mismatch after snapshot round trip")
	}
}

func TestAutonomousAgentReplies(t *testing.T) {
	run := func() (*World, string, string) {
		cfg := testConfig()
		cfg.Autonomy = AutonomyConfig{Enabled: true, ThinkEveryMs: 100, StartRadius: 5}
		w := newTestWorld(t, docstore.NewMemory(), cfg)
		p := mustAdd(t, w, "P", false, model.Vec2{})
		a := mustAdd(t, w, "A", true, model.Vec2{X: 1})
		c, err := w.StartConversation(p, []string{a}, 0)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if _, err := w.SendMessage(p, "How are you?", "m1", 1); err != nil {
			t.Fatalf("send: %v", err)
		}
		if err := w.FinishSpeaking(p, c.ID, 2); err != nil {
			t.Fatalf("finish: %v", err)
		}
		w.BeginStep(16)
		w.Tick(16)
		return w, a, c.ID
	}

	w, a, cid := run()
	var reply *MessageRecord
	for i := range w.messages {
		if w.messages[i].Author == a {
			reply = &w.messages[i]
		}
	}
	if reply == nil || reply.ConversationID != cid || reply.Text == "" {
		t.Fatalf("agent did not reply: %+v", w.messages)
	}
	if reply.MessageUUID != agentMessageUUID("w1", cid, 1) {
		t.Fatalf("reply uuid=%s not derived from the conversation", reply.MessageUUID)
	}
	if c := w.Conversation(cid); c != nil && c.CurrentSpeaker == a {
		t.Fatalf("agent kept the turn after replying")
	}

	again, _, _ := run()
	if again.Digest() != w.Digest() {
		t.Fatalf("same seed and inputs produced different worlds")
	}
}

func TestViewListsParticipantsInIDOrder(t *testing.T) {
	w := newTestWorld(t, docstore.NewMemory(), testConfig())
	for _, n := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"} {
		mustAdd(t, w, n, n == "B", model.Vec2{})
	}
	v := w.View()
	if len(v.Players) != 11 || v.Players[10].ID != "10" || v.Players[2].ID != "2" {
		t.Fatalf("players not in numeric id order: %+v", v.Players)
	}
	if v.Players[1].TrustScore == nil || v.Players[0].TrustScore != nil {
		t.Fatalf("trust score should only be set for agents")
	}
	if v.Digest != w.Digest() {
		t.Fatalf("view digest mismatch")
	}
}

func TestImportReplacesLiveStateAndKeepsHistory(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	w := newTestWorld(t, docs, testConfig())
	a := mustAdd(t, w, "A", false, model.Vec2{})
	b := mustAdd(t, w, "B", false, model.Vec2{})
	gone := mustAdd(t, w, "Gone", false, model.Vec2{})
	conv, err := w.StartConversation(a, []string{b}, 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := w.SendMessage(a, "hi", "m1", 1); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := w.LeaveConversation(b, conv.ID, 2); err != nil {
		t.Fatalf("leave: %v", err)
	}
	w.RemovePlayer(gone, 3)
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	snap := w.ExportSnapshot("e1", 1)

	late := mustAdd(t, w, "Late", false, model.Vec2{})
	if err := w.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}

	imported, err := ImportSnapshot(docs, testConfig(), snap)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if err := imported.Save(ctx); err != nil {
		t.Fatalf("save import: %v", err)
	}
	if _, err := docs.Get(ctx, docstore.Players, "w1", late); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("player outside the snapshot survived import: err=%v", err)
	}
	if _, err := docs.Get(ctx, docstore.ArchivedConversations, "w1", conv.ID); err != nil {
		t.Fatalf("archived conversation lost: %v", err)
	}
	if _, err := docs.Get(ctx, docstore.ArchivedPlayers, "w1", gone); err != nil {
		t.Fatalf("archived player lost: %v", err)
	}
	msgs, err := imported.Messages(ctx, conv.ID)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("messages=%v err=%v", msgs, err)
	}
}

func TestIdleAgentWandersWithinRadius(t *testing.T) {
	cfg := testConfig()
	cfg.Autonomy = AutonomyConfig{Enabled: true, ThinkEveryMs: 100, WanderRadius: 10, WanderChance: 1}
	w := newTestWorld(t, docstore.NewMemory(), cfg)
	a := mustAdd(t, w, "A", true, model.Vec2{X: 3, Y: 3})
	start := w.Agent(a).Position

	w.BeginStep(16)
	w.Tick(16)
	ag := w.Agent(a)
	if ag.LastThought != 16 {
		t.Fatalf("agent did not think: last=%d", ag.LastThought)
	}
	if ag.Status != model.StatusWalking || ag.Pathfinding == nil {
		t.Fatalf("idle agent did not wander: status=%s", ag.Status)
	}
	if d := start.Dist(ag.Pathfinding.Destination); d > 10 {
		t.Fatalf("wandered %v, beyond radius", d)
	}
}
