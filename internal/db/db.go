package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"pdf-chat/internal/config"
	"pdf-chat/internal/models"
)

// Chunk is one row of a session table.
type Chunk struct {
	bun.BaseModel `bun:"alias:c"`
	ID            int64           `bun:"id,pk,autoincrement"`
	ChunkID       int             `bun:"chunk_id,notnull"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Similarity    float32         `bun:"similarity,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPq:
		return sql.Open("postgres", cfg.DSN)
	case config.DriverPgdriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if cfg.Password != "" {
			opts = append(opts, pgdriver.WithPassword(cfg.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// Open connects to Postgres and makes sure the vector extension is available.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable pgvector: %w", err)
	}
	return db, nil
}

// Store keeps one index worth of chunks in its own table.
type Store struct {
	db    *bun.DB
	table string
	count int
}

// NewStore creates a fresh chunk table.
func NewStore(ctx context.Context, db *bun.DB) (*Store, error) {
	s := &Store{db: db, table: tableName(uuid.NewString())}
	_, err := db.NewCreateTable().
		Model((*Chunk)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	log.Debug().Str("table", s.table).Msg("Created chunk table")
	return s, nil
}

func tableName(id string) string {
	var b strings.Builder
	b.WriteString("chunks_")
	for _, r := range strings.ToLower(id) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Add inserts chunks with their embeddings. Chunk ids follow the slice order.
func (s *Store) Add(ctx context.Context, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]Chunk, len(chunks))
	for i, content := range chunks {
		rows[i] = Chunk{ChunkID: i, Content: content, Embedding: pgvector.NewVector(vectors[i])}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		ModelTableExpr("?", bun.Ident(s.table)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	s.count += len(rows)
	return nil
}

// Search returns up to k chunks ordered by cosine distance to vector.
func (s *Store) Search(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if k <= 0 || s.count == 0 {
		return nil, nil
	}
	var rows []Chunk
	if err := s.searchQuery(vector, k, &rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	chunks := make([]models.Chunk, len(rows))
	for i, r := range rows {
		chunks[i] = models.Chunk{ChunkID: r.ChunkID, Content: r.Content, Similarity: r.Similarity}
	}
	return chunks, nil
}

func (s *Store) searchQuery(vector []float32, k int, dest *[]Chunk) *bun.SelectQuery {
	v := pgvector.NewVector(vector)
	return s.db.NewSelect().
		Model(dest).
		ModelTableExpr("? AS c", bun.Ident(s.table)).
		Column("chunk_id", "content").
		ColumnExpr("1 - (embedding <=> ?) AS similarity", v).
		OrderExpr("embedding <=> ?", v).
		Limit(k)
}

func (s *Store) Count() int {
	return s.count
}

// Close drops the table.
func (s *Store) Close(ctx context.Context) error {
	_, err := s.db.NewDropTable().
		Model((*Chunk)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.table, err)
	}
	return nil
}
