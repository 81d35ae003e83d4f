package ai

import (
	"context"
	"fmt"
	"strings"

	"startup-analysis-pipeline/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*NoopAI)(nil)

// NoopAI answers every analysis prompt with a canned summary. Used by the
// demo binary and anywhere a live provider is not configured.
type NoopAI struct{}

func NewNoopAI() *NoopAI { return &NoopAI{} }

func (n *NoopAI) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := n.ChatWithUsage(ctx, model, messages)
	return reply, err
}

func (n *NoopAI) ChatWithUsage(_ context.Context, _ string, messages []adapter.Message) (string, adapter.Usage, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	if i := strings.IndexByte(last, '\n'); i > 0 {
		last = last[:i]
	}
	return fmt.Sprintf("noop analysis: %s", last), adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, nil
}

func (n *NoopAI) CountTokens(_ context.Context, _ string, messages []adapter.Message) (int, error) {
	total := 0
	for _, m := range messages {
		total += len(strings.Fields(m.Content))
	}
	return total, nil
}
