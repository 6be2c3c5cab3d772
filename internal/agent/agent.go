// Package agent answers chat questions from previously crawled content.
package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/crawlchat/crawlchat/internal/crawl"
)

const (
	searchLimit     = 4
	summaryMaxChars = 300

	systemPrompt = "You are a helpful assistant that answers questions based on the provided context"
	noHitsReply  = "I couldn't find any relevant information to answer your question."
)

// ChatCompleter produces a completion for a system and user message pair.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Agent retrieves the closest documents for a question and asks the chat
// model to answer from them.
type Agent struct {
	embedder crawl.Embedder
	index    crawl.VectorIndex
	chat     ChatCompleter
	logger   *zap.Logger
}

// New creates an Agent.
func New(
	embedder crawl.Embedder,
	index crawl.VectorIndex,
	chat ChatCompleter,
	logger *zap.Logger,
) *Agent {
	return &Agent{embedder: embedder, index: index, chat: chat, logger: logger}
}

// Answer embeds the query, searches the session's documents, and builds an
// answer grounded in the retrieved sources.
func (a *Agent) Answer(ctx context.Context, query, sessionID string) (string, error) {
	vectors, err := a.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}

	hits, err := a.index.Search(ctx, vectors[0], sessionID, searchLimit)
	if err != nil {
		return "", fmt.Errorf("search index: %w", err)
	}
	if len(hits) == 0 {
		return noHitsReply, nil
	}

	contexts := make([]string, 0, len(hits))
	for _, hit := range hits {
		contexts = append(contexts, a.summarize(ctx, hit))
	}

	prompt := fmt.Sprintf(
		"Based on these Sources, answer question:\n%s\n\nQ: %s\n\nA:",
		strings.Join(contexts, "\n"), query,
	)
	answer, err := a.chat.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return answer, nil
}

// summarize condenses one retrieved document through the chat model, falling
// back to a simple truncation when the model call fails.
func (a *Agent) summarize(ctx context.Context, hit crawl.SearchHit) string {
	summary, err := a.chat.Complete(ctx,
		"You are a helpful assistant that summarizes text",
		fmt.Sprintf("Summarize the following content:\n%s", hit.Content),
	)
	if err != nil {
		a.logger.Warn("summarization failed, truncating content",
			zap.String("url", hit.URL),
			zap.Error(err),
		)
		return truncate(hit.Content, summaryMaxChars)
	}
	return summary
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
