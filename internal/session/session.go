package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/textsplitter"

	"pdf-chat/internal/index"
	"pdf-chat/internal/models"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/rag"
)

type State int

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IndexBuilder turns chunks into a searchable index.
type IndexBuilder interface {
	Build(ctx context.Context, chunks []string) (index.Index, error)
}

// Pipeline holds the components shared by every session.
type Pipeline struct {
	Splitter textsplitter.TextSplitter
	Builder  IndexBuilder
	Model    llms.Model
	Engine   rag.Options
}

// ProcessResult summarizes a successful process action.
type ProcessResult struct {
	Documents  int
	Characters int
	Chunks     []string
}

// Session is one user's conversation. Its methods are serialized.
type Session struct {
	ID string

	mu       sync.Mutex
	pipeline *Pipeline
	state    State
	index    index.Index
	engine   *rag.Engine
	history  []models.Turn

	// turns before memoryFrom belong to an earlier document set
	memoryFrom int
	chunks     []string

	// unix nanoseconds, read by the manager without taking mu
	lastUsed atomic.Int64
}

func New(id string, pipeline *Pipeline) *Session {
	s := &Session{ID: id, pipeline: pipeline}
	s.touch(time.Now())
	return s
}

// Process extracts, chunks and indexes files, replacing any previous index.
// On failure the session is left as it was.
func (s *Session) Process(ctx context.Context, files []parser.File) (*ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, err := parser.ExtractText(files)
	if err != nil {
		return nil, err
	}
	chunks, err := s.pipeline.Splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}
	idx, err := s.pipeline.Builder.Build(ctx, chunks)
	if err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.Close(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("session", s.ID).Msg("Failed to close previous index")
		}
	}
	s.index = idx
	s.engine = rag.NewEngine(s.pipeline.Model, idx, s.pipeline.Engine)
	s.state = Ready
	s.memoryFrom = len(s.history)
	s.chunks = chunks

	log.Info().Str("session", s.ID).Int("documents", len(files)).Int("chunks", len(chunks)).Msg("Processed documents")
	return &ProcessResult{Documents: len(files), Characters: len([]rune(text)), Chunks: chunks}, nil
}

// Ask answers question and records the turn. Before any document was processed
// it returns models.NotInitializedMessage and records nothing.
func (s *Session) Ask(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Ready {
		return models.NotInitializedMessage, nil
	}
	res, err := s.engine.Ask(ctx, question, s.history[s.memoryFrom:])
	if err != nil {
		return "", err
	}
	s.history = append(s.history, models.Turn{Question: question, Answer: res.Content})
	log.Debug().Str("session", s.ID).Int("turns", len(s.history)).Int("sources", len(res.Source)).Msg("Answered question")
	return res.Content, nil
}

// History returns a copy of every turn, including those before the last process.
func (s *Session) History() []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Turn(nil), s.history...)
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Chunks returns the chunks of the current index.
func (s *Session) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

// Close releases the index. The history is kept.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index == nil {
		return nil
	}
	err := s.index.Close(ctx)
	s.index, s.engine, s.chunks = nil, nil, nil
	s.state = Uninitialized
	return err
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}
