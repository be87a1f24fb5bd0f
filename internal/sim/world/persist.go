package world

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"agentville.ai/internal/persistence/docstore"
	"agentville.ai/internal/sim/world/kernel/model"
)

// liveCollections hold the state a snapshot carries. An import replaces them
// and keeps the history collections.
var liveCollections = []string{
	docstore.Players,
	docstore.Agents,
	docstore.Conversations,
	docstore.Descriptions,
}

// worldCollections are dropped by a restart. Engines survive it.
var worldCollections = []string{
	docstore.Players,
	docstore.Agents,
	docstore.Conversations,
	docstore.Descriptions,
	docstore.Messages,
	docstore.Memories,
	docstore.ArchivedPlayers,
	docstore.ArchivedAgents,
	docstore.ArchivedConversations,
}

// Save upserts every live entity, moves removed entities and ended
// conversations into the archive and appends new messages. Each document is
// written independently; failures are joined and the failed archive/message
// work is kept for the next Save. The world record goes last and is skipped
// when anything before it failed.
func (w *World) Save(ctx context.Context) error {
	id := w.cfg.ID
	if len(w.wipe) > 0 {
		if err := w.docs.DeleteWorld(ctx, id, w.wipe...); err != nil {
			return fmt.Errorf("reset %s: %w", id, err)
		}
		w.wipe = nil
	}

	var errs []error
	put := func(collection, docID, owner string, v any) bool {
		if err := docstore.PutJSON(ctx, w.docs, collection, id, docID, owner, v); err != nil {
			errs = append(errs, err)
			return false
		}
		return true
	}
	del := func(collection, docID string) bool {
		if err := w.docs.Delete(ctx, collection, id, docID); err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: delete: %w", collection, docID, err))
			return false
		}
		return true
	}

	var keepArchived []archivedEntity
	for _, e := range w.archived {
		var ok bool
		if e.agent != nil {
			ok = put(docstore.ArchivedAgents, e.id, "", e.agent) && del(docstore.Agents, e.id)
		} else {
			ok = put(docstore.ArchivedPlayers, e.id, "", e.player) && del(docstore.Players, e.id)
		}
		if !ok {
			keepArchived = append(keepArchived, e)
		}
	}
	w.archived = keepArchived

	var keepEnded []*model.Conversation
	for _, c := range w.ended {
		if !(put(docstore.ArchivedConversations, c.ID, "", c) && del(docstore.Conversations, c.ID)) {
			keepEnded = append(keepEnded, c)
		}
	}
	w.ended = keepEnded

	for _, p := range w.sortedPlayers() {
		put(docstore.Players, p.ID, "", p)
	}
	for _, a := range w.sortedAgents() {
		put(docstore.Agents, a.ID, "", a)
	}
	for _, c := range w.sortedConversations() {
		put(docstore.Conversations, c.ID, "", c)
	}

	var keepMessages []MessageRecord
	for _, m := range w.messages {
		if !put(docstore.Messages, m.docID(), m.ConversationID, m) {
			keepMessages = append(keepMessages, m)
		}
	}
	w.messages = keepMessages

	for pid := range w.dirtyDescs {
		d, ok := w.descriptions[pid]
		if !ok || put(docstore.Descriptions, pid, "", d) {
			delete(w.dirtyDescs, pid)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	put(docstore.Worlds, id, "", worldRecord{
		ID:             id,
		NextID:         w.nextID,
		LastViewed:     w.lastViewed,
		Seed:           w.cfg.Seed,
		AppliedEngine:  w.appliedBy,
		AppliedInput:   w.applied,
		AppliedResults: w.appliedResults,
	})
	return errors.Join(errs...)
}

// Restart empties the world and resets its id counter. The next Save deletes
// every live and archived record of the world before writing. It cannot be
// undone. The applied-input watermark is kept; engine inputs are not replayed.
func (w *World) Restart(now int64) {
	w.players = map[string]*model.Player{}
	w.agents = map[string]*model.Agent{}
	w.conversations = map[string]*model.Conversation{}
	w.descriptions = map[string]Description{}
	w.dirtyDescs = map[string]bool{}
	w.archived = nil
	w.ended = nil
	w.messages = nil
	w.memoryRequests = nil
	w.nextID = 0
	w.lastViewed = now
	w.wipe = worldCollections
	w.BeginStep(now)
}

// Messages lists the persisted messages of a conversation in timestamp order.
func (w *World) Messages(ctx context.Context, conversationID string) ([]MessageRecord, error) {
	docs, err := w.docs.List(ctx, docstore.Messages, w.cfg.ID, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]MessageRecord, 0, len(docs))
	for _, d := range docs {
		var m MessageRecord
		if err := json.Unmarshal(d.Data, &m); err != nil {
			return nil, fmt.Errorf("message %s: %w", d.ID, err)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
