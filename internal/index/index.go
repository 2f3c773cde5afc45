package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"pdf-chat/internal/chromemdb"
	"pdf-chat/internal/config"
	"pdf-chat/internal/db"
	"pdf-chat/internal/models"
)

// ErrNoContent is returned when there is nothing to index.
var ErrNoContent = errors.New("no content to index")

// Index answers similarity queries over one processed document set.
type Index interface {
	TopK(ctx context.Context, query string, k int) ([]models.Chunk, error)
	Len() int
	Close(ctx context.Context) error
}

// Store is the vector storage behind an index.
type Store interface {
	Add(ctx context.Context, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error)
	Count() int
	Close(ctx context.Context) error
}

// StoreFactory creates an empty store for a new index.
type StoreFactory func(ctx context.Context) (Store, error)

// ChromemStores keeps every index in its own in-memory chromem database.
func ChromemStores(embedder embeddings.Embedder) StoreFactory {
	return func(_ context.Context) (Store, error) {
		return chromemdb.NewVectorDBManager(uuid.NewString(), embedder.EmbedQuery)
	}
}

// PostgresStores keeps every index in its own pgvector table.
func PostgresStores(bunDB *bun.DB) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		return db.NewStore(ctx, bunDB)
	}
}

// NewStoreFactory picks the backend named by cfg. The returned closer
// releases the database connection, if any.
func NewStoreFactory(ctx context.Context, cfg *config.Config, embedder embeddings.Embedder) (StoreFactory, func() error, error) {
	switch cfg.Retriever.Backend {
	case config.BackendPgvector:
		bunDB, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		return PostgresStores(bunDB), bunDB.Close, nil
	case config.BackendChromem, "":
		return ChromemStores(embedder), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown retriever backend: %s", cfg.Retriever.Backend)
	}
}

// Builder turns chunks into a searchable index.
type Builder struct {
	embedder embeddings.Embedder
	newStore StoreFactory
}

func NewBuilder(embedder embeddings.Embedder, newStore StoreFactory) *Builder {
	return &Builder{embedder: embedder, newStore: newStore}
}

// Build embeds every chunk and loads them into a fresh store.
func (b *Builder) Build(ctx context.Context, chunks []string) (Index, error) {
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	store, err := b.newStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	if err := store.Add(ctx, chunks, vectors); err != nil {
		if cerr := store.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn().Err(cerr).Msg("Failed to release vector store")
		}
		return nil, err
	}
	log.Info().Int("chunks", len(chunks)).Int("dimensions", len(vectors[0])).Msg("Built index")
	return &VectorIndex{store: store, embedder: b.embedder}, nil
}

// VectorIndex embeds queries and searches its store.
type VectorIndex struct {
	store    Store
	embedder embeddings.Embedder
}

func (x *VectorIndex) TopK(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	vector, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return x.store.Search(ctx, vector, k)
}

func (x *VectorIndex) Len() int {
	return x.store.Count()
}

func (x *VectorIndex) Close(ctx context.Context) error {
	return x.store.Close(ctx)
}
