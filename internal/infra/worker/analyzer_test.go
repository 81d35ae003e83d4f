//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/infra/adapters/ai"
	"startup-analysis-pipeline/internal/infra/adapters/embedding"
	"startup-analysis-pipeline/internal/infra/memstore"
	"startup-analysis-pipeline/internal/infra/worker"
	"startup-analysis-pipeline/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

var testCatalog = usecase.Catalog{
	All:      []string{"market", "team", "traction"},
	Critical: []string{"market"},
}

func newAnalyzer(results *memstore.ResultRepo) *worker.Analyzer {
	store := usecase.NewContextStore(memstore.NewChunkRepo(), embedding.NewLocalEmbedder(32), 0, 0, 0, testLogger())
	return worker.NewAnalyzer(ai.NewNoopAI(), store, results, testCatalog, "noop", 3, 2000, testLogger())
}

func attemptFor(jobKey string) *model.JobAttempt {
	return &model.JobAttempt{
		ID: "a1", JobKey: jobKey, Attempt: 1,
		Status:          model.JobStatusActive,
		Payload:         model.AnalysisPayload{SessionID: "sess-1", Mode: model.ModeFull},
		TotalDimensions: len(testCatalog.All),
	}
}

func TestAnalyzer_RunReportsEveryDimension(t *testing.T) {
	results := memstore.NewResultRepo()
	a := newAnalyzer(results)

	var reports [][2]int
	err := a.Run(context.Background(), attemptFor("job-1"), func(current, total int, _ []string) {
		reports = append(reports, [2]int{current, total})
	})
	if err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	want := [][2]int{{1, 3}, {2, 3}, {3, 3}}
	if len(reports) != len(want) {
		t.Fatalf("expected %d reports, got %v", len(want), reports)
	}
	for i := range want {
		if reports[i] != want[i] {
			t.Fatalf("report %d: got %v, want %v", i, reports[i], want[i])
		}
	}

	saved, err := results.CompletedDimensions(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("CompletedDimensions: unexpected error: %v", err)
	}
	if len(saved) != 3 {
		t.Fatalf("expected 3 persisted dimensions, got %v", saved)
	}
}

// recordingAI captures every prompt it is handed.
type recordingAI struct {
	mu   sync.Mutex
	msgs []adapter.Message
}

func (r *recordingAI) Chat(_ context.Context, _ string, messages []adapter.Message) (string, error) {
	r.keep(messages)
	return "assessment", nil
}

func (r *recordingAI) ChatWithUsage(_ context.Context, _ string, messages []adapter.Message) (string, adapter.Usage, error) {
	r.keep(messages)
	return "assessment", adapter.Usage{TotalTokens: 1}, nil
}

func (r *recordingAI) CountTokens(context.Context, string, []adapter.Message) (int, error) {
	return 1, nil
}

func (r *recordingAI) keep(messages []adapter.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, messages...)
}

func TestAnalyzer_PromptTruncatesProfileOnRuneBoundary(t *testing.T) {
	rec := &recordingAI{}
	store := usecase.NewContextStore(memstore.NewChunkRepo(), embedding.NewLocalEmbedder(32), 0, 0, 0, testLogger())
	a := worker.NewAnalyzer(rec, store, memstore.NewResultRepo(), testCatalog, "noop", 3, 0, testLogger())

	attempt := attemptFor("job-utf8")
	attempt.Payload.Profile = strings.Repeat("ä", 2500)
	if err := a.Run(context.Background(), attempt, func(int, int, []string) {}); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.msgs) == 0 {
		t.Fatal("expected prompts to be captured")
	}
	for i, m := range rec.msgs {
		if !utf8.ValidString(m.Content) {
			t.Fatalf("message %d carries invalid UTF-8", i)
		}
	}
}

func TestAnalyzer_RunResumesFromPersistedResults(t *testing.T) {
	ctx := context.Background()
	results := memstore.NewResultRepo()
	a := newAnalyzer(results)

	// A previous attempt already finished the first dimension.
	if err := results.SaveDimension(ctx, nil, &model.DimensionResult{
		JobKey: "job-1", SessionID: "sess-1", Dimension: "market", Summary: "done",
	}); err != nil {
		t.Fatalf("SaveDimension: unexpected error: %v", err)
	}

	var reports [][2]int
	if err := a.Run(ctx, attemptFor("job-1"), func(current, total int, _ []string) {
		reports = append(reports, [2]int{current, total})
	}); err != nil {
		t.Fatalf("Run: unexpected error: %v", err)
	}
	// Only the two remaining dimensions run; progress continues from 1.
	want := [][2]int{{2, 3}, {3, 3}}
	if len(reports) != len(want) || reports[0] != want[0] || reports[1] != want[1] {
		t.Fatalf("resume reports: got %v, want %v", reports, want)
	}
}

func TestAnalyzer_RunRejectsBadAttempts(t *testing.T) {
	a := newAnalyzer(memstore.NewResultRepo())
	noop := func(int, int, []string) {}

	att := attemptFor("job-1")
	att.Payload.SessionID = ""
	if err := a.Run(context.Background(), att, noop); !errors.Is(err, domain.ErrSessionRequired) {
		t.Fatalf("missing session: expected ErrSessionRequired, got %v", err)
	}

	att = attemptFor("job-2")
	att.Payload.Dimensions = []string{"unknown"}
	if err := a.Run(context.Background(), att, noop); !errors.Is(err, domain.ErrNoDimensions) {
		t.Fatalf("empty selection: expected ErrNoDimensions, got %v", err)
	}
}

func TestAnalyzer_CancelledContextIsTransient(t *testing.T) {
	a := newAnalyzer(memstore.NewResultRepo())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := a.Run(ctx, attemptFor("job-1"), func(int, int, []string) {})
	if err == nil || !domain.IsTransient(err) {
		t.Fatalf("cancelled run must be transient, got %v", err)
	}
}
