// Package docstore is the key-indexed document store behind worlds, engines
// and memories. Documents are JSON, addressed by (collection, world, id) and
// optionally indexed by an owner key.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	Worlds                = "worlds"
	Players               = "players"
	Agents                = "agents"
	Conversations         = "conversations"
	Descriptions          = "descriptions"
	Messages              = "messages"
	Memories              = "memories"
	Embeddings            = "embeddings"
	ArchivedPlayers       = "archived_players"
	ArchivedAgents        = "archived_agents"
	ArchivedConversations = "archived_conversations"
	Engines               = "engines"
)

var ErrNotFound = errors.New("document not found")

type Doc struct {
	Collection string
	WorldID    string
	ID         string
	// Owner is a secondary lookup key: memory owner, message conversation.
	Owner string
	Data  json.RawMessage
}

type Store interface {
	Get(ctx context.Context, collection, worldID, id string) (Doc, error)
	Put(ctx context.Context, d Doc) error
	// Delete of an absent document is not an error.
	Delete(ctx context.Context, collection, worldID, id string) error
	// List returns documents ordered by id. An empty owner matches every document.
	List(ctx context.Context, collection, worldID, owner string) ([]Doc, error)
	// DeleteWorld drops the named collections for a world; no collections means all of them.
	DeleteWorld(ctx context.Context, worldID string, collections ...string) error
}

func PutJSON(ctx context.Context, s Store, collection, worldID, id, owner string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s/%s: marshal: %w", collection, id, err)
	}
	return s.Put(ctx, Doc{Collection: collection, WorldID: worldID, ID: id, Owner: owner, Data: b})
}

func GetJSON(ctx context.Context, s Store, collection, worldID, id string, v any) error {
	d, err := s.Get(ctx, collection, worldID, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("%s/%s: decode: %w", collection, id, err)
	}
	return nil
}

func validKey(collection, id string) error {
	if collection == "" || id == "" {
		return fmt.Errorf("empty document key (collection=%q id=%q)", collection, id)
	}
	return nil
}
