package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"pdf-chat/internal/llmservice"
	"pdf-chat/internal/models"
)

const (
	DefaultTemperature = 0.2
	DefaultTopK        = 4
)

// Retriever finds the chunks most similar to a query.
type Retriever interface {
	TopK(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

type Options struct {
	TopK        int
	Temperature float64

	// ConvertSystemToHuman sends the system prompt inside the human message
	// for models without a system role.
	ConvertSystemToHuman bool
}

// Response is a generated answer and the chunks it was grounded on.
type Response struct {
	Question string // standalone question used for retrieval
	Content  string
	Source   []models.Chunk
}

type Engine struct {
	llm       llms.Model
	retriever Retriever
	opts      Options

	condense prompts.PromptTemplate
	answer   prompts.PromptTemplate
}

func NewEngine(llm llms.Model, retriever Retriever, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Temperature == 0 {
		opts.Temperature = DefaultTemperature
	}
	return &Engine{
		llm:       llm,
		retriever: retriever,
		opts:      opts,
		condense:  prompts.NewPromptTemplate(models.CondenseQuestionTemplate, []string{"chat_history", "question"}),
		answer:    prompts.NewPromptTemplate(models.AnswerTemplate, []string{"context", "chat_history", "question"}),
	}
}

// Ask answers question using retrieved context and the prior turns in history.
// The answer is returned exactly as the model produced it.
func (e *Engine) Ask(ctx context.Context, question string, history []models.Turn) (*Response, error) {
	chatHistory, err := formatHistory(history)
	if err != nil {
		return nil, err
	}

	standalone := question
	if len(history) > 0 {
		standalone, err = e.condenseQuestion(ctx, question, chatHistory)
		if err != nil {
			return nil, err
		}
	}

	chunks, err := e.retriever.TopK(ctx, standalone, e.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	log.Debug().Str("question", standalone).Int("chunks", len(chunks)).Msg("Retrieved context")

	prompt, err := e.answer.Format(map[string]any{
		"context":      joinChunks(chunks),
		"chat_history": chatHistory,
		"question":     standalone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}

	content, err := llmservice.GenerateText(ctx, e.llm, e.messages(prompt), llms.WithTemperature(e.opts.Temperature))
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &Response{Question: standalone, Content: content, Source: chunks}, nil
}

func (e *Engine) condenseQuestion(ctx context.Context, question, chatHistory string) (string, error) {
	prompt, err := e.condense.Format(map[string]any{
		"chat_history": chatHistory,
		"question":     question,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	msgs := []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)}
	standalone, err := llmservice.GenerateText(ctx, e.llm, msgs, llms.WithTemperature(e.opts.Temperature))
	if err != nil {
		return "", fmt.Errorf("failed to condense question: %w", err)
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		return question, nil
	}
	return standalone, nil
}

func (e *Engine) messages(prompt string) []llms.MessageContent {
	if e.opts.ConvertSystemToHuman {
		return []llms.MessageContent{
			llms.TextParts(schema.ChatMessageTypeHuman, models.SystemPrompt+"\n\n"+prompt),
		}
	}
	return []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, models.SystemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, prompt),
	}
}

func formatHistory(history []models.Turn) (string, error) {
	if len(history) == 0 {
		return "", nil
	}
	msgs := make([]schema.ChatMessage, 0, 2*len(history))
	for _, t := range history {
		msgs = append(msgs,
			schema.HumanChatMessage{Content: t.Question},
			schema.AIChatMessage{Content: t.Answer},
		)
	}
	s, err := schema.GetBufferString(msgs, models.HumanPrefix, models.AIPrefix)
	if err != nil {
		return "", fmt.Errorf("failed to format chat history: %w", err)
	}
	return s, nil
}

func joinChunks(chunks []models.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, models.ContextSeparator)
}
