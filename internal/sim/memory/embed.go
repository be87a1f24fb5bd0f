package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"agentville.ai/internal/persistence/docstore"
)

// Embedder maps text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

const DefaultDimensions = 64

// HashEmbedder is a deterministic feature-hashed bag of words, L2 normalized.
// Text without words embeds to the zero vector.
type HashEmbedder struct {
	Dimensions int
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	dims := h.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	vec := make([]float64, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New64a()
		_, _ = f.Write([]byte(w))
		sum := f.Sum64()
		idx := int(sum % uint64(dims))
		if sum&(1<<63) != 0 {
			vec[idx] -= 1
		} else {
			vec[idx] += 1
		}
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

// cacheWorld scopes cached embeddings; they depend only on content, not on a world.
const cacheWorld = ""

type cachedEmbedding struct {
	TextHash  string    `json:"text_hash"`
	Embedding []float64 `json:"embedding"`
}

func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// FetchEmbedding returns the embedding of text, consulting and filling the
// content-hash cache in docs. A failed cache write does not fail the lookup.
func FetchEmbedding(ctx context.Context, docs docstore.Store, inner Embedder, text string) ([]float64, error) {
	key := TextHash(text)
	var hit cachedEmbedding
	err := docstore.GetJSON(ctx, docs, docstore.Embeddings, cacheWorld, key, &hit)
	switch {
	case err == nil && len(hit.Embedding) > 0:
		return hit.Embedding, nil
	case err != nil && !errors.Is(err, docstore.ErrNotFound):
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	vec, err := inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	_ = docstore.PutJSON(ctx, docs, docstore.Embeddings, cacheWorld, key, "", cachedEmbedding{TextHash: key, Embedding: vec})
	return vec, nil
}

// CachedEmbedder binds FetchEmbedding to a store handle.
type CachedEmbedder struct {
	Docs  docstore.Store
	Inner Embedder
}

func (c CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return FetchEmbedding(ctx, c.Docs, c.Inner, text)
}

