package main

import (
	"context"
	"fmt"

	"pdf-chat/internal/config"
	"pdf-chat/internal/embedding"
	"pdf-chat/internal/index"
	"pdf-chat/internal/llmservice"
	"pdf-chat/internal/parser"
	"pdf-chat/internal/rag"
	"pdf-chat/internal/session"
)

// newPipeline wires the providers named in cfg. The returned closer releases
// the vector store backend.
func newPipeline(ctx context.Context, cfg *config.Config) (*session.Pipeline, func() error, error) {
	embedder, err := embedding.NewEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return nil, nil, err
	}
	model, err := llmservice.NewModel(ctx, cfg.LLM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize language model: %w", err)
	}
	stores, closeStores, err := index.NewStoreFactory(ctx, cfg, embedder)
	if err != nil {
		return nil, nil, err
	}

	return &session.Pipeline{
		Splitter: parser.NewSplitter(cfg.Chunker),
		Builder:  index.NewBuilder(embedder, stores),
		Model:    model,
		Engine: rag.Options{
			TopK:                 cfg.Retriever.TopK,
			Temperature:          cfg.LLM.Temperature,
			ConvertSystemToHuman: cfg.LLM.ConvertSystemToHuman(),
		},
	}, closeStores, nil
}
