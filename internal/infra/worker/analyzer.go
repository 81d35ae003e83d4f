package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/domain/ports/repository"
	"startup-analysis-pipeline/internal/usecase"
)

// ProgressFunc is called after every finished dimension. The queue forwards
// it to the broadcaster unchanged; the worker is not a progress authority.
type ProgressFunc func(current, total int, completed []string)

// Analyzer executes one job attempt: for each selected dimension it retrieves
// grounding context, calls the AI collaborator and upserts the result. A
// retried attempt resumes past dimensions that already have results, so
// at-least-once execution stays idempotent at the write layer.
type Analyzer struct {
	ai          adapter.AIServiceAdapter
	store       *usecase.ContextStore
	results     repository.ResultRepository
	catalog     usecase.Catalog
	model       string
	topK        int
	tokenBudget int
	log         *zerolog.Logger
}

func NewAnalyzer(
	ai adapter.AIServiceAdapter,
	store *usecase.ContextStore,
	results repository.ResultRepository,
	catalog usecase.Catalog,
	model string,
	topK, tokenBudget int,
	logger *zerolog.Logger,
) *Analyzer {
	l := logger.With().Str("component", "Analyzer").Logger()
	return &Analyzer{
		ai: ai, store: store, results: results, catalog: catalog,
		model: model, topK: topK, tokenBudget: tokenBudget, log: &l,
	}
}

func (a *Analyzer) Run(ctx context.Context, attempt *model.JobAttempt, report ProgressFunc) error {
	if attempt.Payload.SessionID == "" {
		return domain.ErrSessionRequired
	}
	dims := a.catalog.Select(attempt.Payload)
	if len(dims) == 0 {
		return domain.ErrNoDimensions
	}
	total := attempt.TotalDimensions
	if total == 0 {
		total = len(dims)
	}

	completed, err := a.results.CompletedDimensions(ctx, attempt.JobKey)
	if err != nil {
		return fmt.Errorf("load completed dimensions: %w", err)
	}
	done := make(map[string]bool, len(completed))
	for _, d := range completed {
		done[d] = true
	}

	for _, dim := range dims {
		if done[dim] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return domain.Transient(err)
		}
		summary, tokens, err := a.analyzeDimension(ctx, attempt, dim)
		if err != nil {
			return fmt.Errorf("dimension %q: %w", dim, err)
		}
		res := model.DimensionResult{
			JobKey:    attempt.JobKey,
			SessionID: attempt.Payload.SessionID,
			Dimension: dim,
			Summary:   summary,
			Tokens:    tokens,
			CreatedAt: time.Now(),
		}
		if err := a.results.SaveDimension(ctx, nil, &res); err != nil {
			return fmt.Errorf("save dimension %q: %w", dim, err)
		}
		completed = append(completed, dim)
		report(len(completed), total, append([]string(nil), completed...))
	}
	return nil
}

func (a *Analyzer) analyzeDimension(ctx context.Context, attempt *model.JobAttempt, dim string) (string, int, error) {
	query := dim + " " + head(attempt.Payload.Profile, 200)
	hits, err := a.store.Retrieve(ctx, attempt.Payload.SessionID, query, a.topK)
	if err != nil {
		return "", 0, err
	}

	msgs := a.buildPrompt(ctx, attempt, dim, hits)
	reply, usage, err := a.ai.ChatWithUsage(ctx, a.model, msgs)
	if err != nil {
		return "", 0, err
	}
	a.log.Debug().Str("job_key", attempt.JobKey).Str("dimension", dim).
		Int("context_chunks", len(hits)).Int("tokens", usage.TotalTokens).Msg("dimension analyzed")
	return reply, usage.TotalTokens, nil
}

// buildPrompt assembles the dimension prompt, trimming retrieved chunks from
// the tail until the whole message list fits the token budget.
func (a *Analyzer) buildPrompt(ctx context.Context, attempt *model.JobAttempt, dim string, hits []model.ScoredChunk) []adapter.Message {
	for {
		msgs := promptMessages(attempt, dim, hits)
		if len(hits) == 0 || a.tokenBudget <= 0 {
			return msgs
		}
		n, err := a.ai.CountTokens(ctx, a.model, msgs)
		if err != nil || n <= a.tokenBudget {
			return msgs
		}
		hits = hits[:len(hits)-1]
	}
}

func promptMessages(attempt *model.JobAttempt, dim string, hits []model.ScoredChunk) []adapter.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess the %s dimension of this startup.\n\n", dim)
	if attempt.Payload.Profile != "" {
		fmt.Fprintf(&b, "Business profile:\n%s\n\n", head(attempt.Payload.Profile, 2000))
	}
	if len(hits) > 0 {
		b.WriteString("Relevant context:\n")
		for _, h := range hits {
			fmt.Fprintf(&b, "- %s\n", h.Chunk.Text)
		}
	}
	return []adapter.Message{
		{Role: "system", Content: "You are a venture analyst. Answer with a concise assessment grounded in the provided context."},
		{Role: "user", Content: b.String()},
	}
}

// head returns the first n runes of s.
func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
