package adapter

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIServiceAdapter is the port the worker uses for dimension analysis calls.
// Implementations translate provider failures into domain.Transient where the
// failure is retryable (timeouts, rate limits, 5xx).
type AIServiceAdapter interface {
	Chat(ctx context.Context, model string, messages []Message) (string, error)
	ChatWithUsage(ctx context.Context, model string, messages []Message) (string, Usage, error)
	CountTokens(ctx context.Context, model string, messages []Message) (int, error)
}
