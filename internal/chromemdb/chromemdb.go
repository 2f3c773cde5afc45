package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"pdf-chat/internal/models"
)

const chunkIDKey = "chunk_id"

// VectorDBManager keeps one session's chunks in an in-memory chromem collection.
type VectorDBManager struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewVectorDBManager creates an in-memory database holding a single collection.
// embed is only used when a document or query arrives without a precomputed vector.
func NewVectorDBManager(collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	db := chromem.NewDB()
	c, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	return &VectorDBManager{db: db, collection: c}, nil
}

// Add stores chunks with their embeddings. Chunk ids follow the slice order.
func (m *VectorDBManager) Add(ctx context.Context, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, content := range chunks {
		id := strconv.Itoa(i)
		docs[i] = chromem.Document{
			ID:        id,
			Content:   content,
			Metadata:  map[string]string{chunkIDKey: id},
			Embedding: vectors[i],
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Str("collection", m.collection.Name).Int("documents", len(docs)).Msg("Added documents")
	return nil
}

// Search returns up to k chunks ordered by descending cosine similarity to vector.
func (m *VectorDBManager) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if len(vector) == 0 {
		return nil, errors.New("query embedding is empty")
	}
	k = min(k, m.collection.Count())
	if k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		id, err := strconv.Atoi(r.Metadata[chunkIDKey])
		if err != nil {
			return nil, fmt.Errorf("document %s has no chunk id: %w", r.ID, err)
		}
		chunks = append(chunks, models.Chunk{ChunkID: id, Content: r.Content, Similarity: r.Similarity})
	}
	return chunks, nil
}

// Count returns the number of stored chunks.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Close drops the collection.
func (m *VectorDBManager) Close(_ context.Context) error {
	if err := m.db.DeleteCollection(m.collection.Name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
