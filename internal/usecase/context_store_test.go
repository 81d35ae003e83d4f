//go:build !integration

package usecase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/infra/adapters/embedding"
	"startup-analysis-pipeline/internal/infra/memstore"
	"startup-analysis-pipeline/internal/usecase"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestStore(maxChars, overlap, cap int) (*usecase.ContextStore, *memstore.ChunkRepo) {
	repo := memstore.NewChunkRepo()
	store := usecase.NewContextStore(repo, embedding.NewLocalEmbedder(64), maxChars, overlap, cap, testLogger())
	return store, repo
}

func TestContextStore_IndexAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(120, 30, 0)

	n, err := store.Index(ctx, "s1", strings.Repeat("alpha beta gamma. ", 30), "profile")
	if err != nil {
		t.Fatalf("Index: unexpected error: %v", err)
	}
	if n < 2 {
		t.Fatalf("expected multiple chunks, got %d", n)
	}
	chunks, err := repo.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("ListBySession: unexpected error: %v", err)
	}
	for i, c := range chunks {
		if c.Seq != i {
			t.Fatalf("chunk %d has seq %d", i, c.Seq)
		}
		if c.ID != model.ChunkID("s1", i) {
			t.Fatalf("chunk %d ID: %q", i, c.ID)
		}
		if c.SourceURL != "profile" {
			t.Fatalf("chunk %d source: %q", i, c.SourceURL)
		}
		if len(c.Embedding) != 64 {
			t.Fatalf("chunk %d embedding dimension: %d", i, len(c.Embedding))
		}
	}

	// A second Index call continues the sequence.
	if _, err := store.Index(ctx, "s1", "one more short paragraph", "scraped"); err != nil {
		t.Fatalf("Index: unexpected error: %v", err)
	}
	chunks, _ = repo.ListBySession(ctx, "s1")
	if last := chunks[len(chunks)-1]; last.Seq != len(chunks)-1 {
		t.Fatalf("appended chunk seq %d, want %d", last.Seq, len(chunks)-1)
	}
}

func TestContextStore_IndexRequiresSession(t *testing.T) {
	store, _ := newTestStore(0, 0, 0)
	if _, err := store.Index(context.Background(), "", "text", ""); err != domain.ErrSessionRequired {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
	if _, err := store.Retrieve(context.Background(), "", "query", 3); err != domain.ErrSessionRequired {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}

func TestContextStore_SessionCapDropsOverflow(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(100, 20, 3)

	// Enough text for well over three chunks.
	if _, err := store.Index(ctx, "s1", strings.Repeat("crowded market segment. ", 60), ""); err != nil {
		t.Fatalf("Index: unexpected error: %v", err)
	}
	n, err := repo.CountBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("CountBySession: unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected cap of 3 chunks, got %d", n)
	}

	// Further indexing is a silent no-op, not an error.
	added, err := store.Index(ctx, "s1", "more text", "")
	if err != nil {
		t.Fatalf("Index at cap: unexpected error: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 chunks added at cap, got %d", added)
	}
}

func TestContextStore_RetrieveRanksAndBounds(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(0, 0, 0)

	docs := []string{
		"the founding team has deep robotics experience",
		"monthly recurring revenue doubled this quarter",
		"the warehouse automation market is expanding rapidly",
		"competition includes two well funded incumbents",
	}
	for _, d := range docs {
		if _, err := store.Index(ctx, "s1", d, ""); err != nil {
			t.Fatalf("Index: unexpected error: %v", err)
		}
	}

	hits, err := store.Retrieve(ctx, "s1", "founding team experience", 2)
	if err != nil {
		t.Fatalf("Retrieve: unexpected error: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Score < hits[1].Score {
		t.Fatalf("hits not sorted by score: %v then %v", hits[0].Score, hits[1].Score)
	}
	if !strings.Contains(hits[0].Chunk.Text, "founding team") {
		t.Fatalf("best hit should be the team chunk, got %q", hits[0].Chunk.Text)
	}

	// k larger than the corpus returns everything.
	all, err := store.Retrieve(ctx, "s1", "anything", 50)
	if err != nil {
		t.Fatalf("Retrieve: unexpected error: %v", err)
	}
	if len(all) != len(docs) {
		t.Fatalf("expected %d hits, got %d", len(docs), len(all))
	}

	// k <= 0 short-circuits.
	none, err := store.Retrieve(ctx, "s1", "anything", 0)
	if err != nil || none != nil {
		t.Fatalf("expected nil result for k=0, got %v (%v)", none, err)
	}
}

func TestContextStore_RetrieveBreaksTiesByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(0, 0, 0)

	// Identical text embeds identically, so the three copies score equal
	// against any query and must come back in the order they were indexed.
	for i := 0; i < 3; i++ {
		if _, err := store.Index(ctx, "s1", "warehouse robotics pilot deployment", ""); err != nil {
			t.Fatalf("Index: unexpected error: %v", err)
		}
	}

	hits, err := store.Retrieve(ctx, "s1", "robotics", 3)
	if err != nil {
		t.Fatalf("Retrieve: unexpected error: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	for i, h := range hits {
		if h.Score != hits[0].Score {
			t.Fatalf("fixture broken: scores differ (%v vs %v)", h.Score, hits[0].Score)
		}
		if want := model.ChunkID("s1", i); h.Chunk.ID != want {
			t.Fatalf("hit %d: got chunk %s, want %s", i, h.Chunk.ID, want)
		}
	}
}

func TestContextStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(0, 0, 0)

	if _, err := store.Index(ctx, "s1", "session one talks about pricing", ""); err != nil {
		t.Fatalf("Index: unexpected error: %v", err)
	}
	if _, err := store.Index(ctx, "s2", "session two talks about hiring", ""); err != nil {
		t.Fatalf("Index: unexpected error: %v", err)
	}

	hits, err := store.Retrieve(ctx, "s2", "pricing", 10)
	if err != nil {
		t.Fatalf("Retrieve: unexpected error: %v", err)
	}
	for _, h := range hits {
		if h.Chunk.SessionID != "s2" {
			t.Fatalf("retrieved chunk from foreign session: %+v", h.Chunk)
		}
	}
}
