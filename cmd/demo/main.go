// End-to-end smoke run against the in-memory stores: submits one analysis,
// drives the queue by hand and prints every progress event. Needs no
// Postgres, Redis or AI credentials.
package main

import (
	"context"
	"log"
	"time"

	"startup-analysis-pipeline/internal/domain/model"
	aiAdapters "startup-analysis-pipeline/internal/infra/adapters/ai"
	"startup-analysis-pipeline/internal/infra/adapters/embedding"
	"startup-analysis-pipeline/internal/infra/adapters/notify"
	"startup-analysis-pipeline/internal/infra/broadcast"
	"startup-analysis-pipeline/internal/infra/logging"
	"startup-analysis-pipeline/internal/infra/memstore"
	"startup-analysis-pipeline/internal/infra/metrics"
	"startup-analysis-pipeline/internal/infra/worker"
	"startup-analysis-pipeline/internal/usecase"

	"startup-analysis-pipeline/internal/config"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	metrics.MustRegister()

	// 1. In-memory stores and in-process broadcast hub
	tm := memstore.NewTxManager()
	jobRepo := memstore.NewJobRepo()
	chunkRepo := memstore.NewChunkRepo()
	resRepo := memstore.NewResultRepo()
	hub := broadcast.NewHub()

	// 2. Local embeddings and the canned AI adapter
	embedder := embedding.NewLocalEmbedder(0)
	ai := aiAdapters.NewNoopAI()
	catalog := usecase.Catalog{
		All:      []string{"market", "team", "traction", "product"},
		Critical: []string{"market", "team"},
	}

	// 3. Use cases and the queue
	store := usecase.NewContextStore(chunkRepo, embedder, 0, 0, 0, logger)
	submitUC := usecase.NewSubmitUseCase(jobRepo, tm, store, catalog, logger)
	statusUC := usecase.NewStatusUseCase(jobRepo, resRepo, logger)
	analyzer := worker.NewAnalyzer(ai, store, resRepo, catalog, "noop", 3, 2000, logger)
	processor := worker.NewProcessor(jobRepo, analyzer, hub, notify.NewNoopNotifier(), nil,
		worker.Options{}, logger)

	// 4. Watch progress for the job we are about to submit
	jobKey := "demo-job"
	cancelSub := hub.Subscribe(jobKey, func(ev model.ProgressEvent) {
		log.Printf("event: type=%s current=%d/%d completed=%v", ev.Type, ev.Current, ev.Total, ev.CompletedCategories)
	})
	defer cancelSub()

	// 5. Submit
	attemptID, err := submitUC.Submit(ctx, model.JobRequest{
		JobKey: jobKey,
		Payload: model.AnalysisPayload{
			SessionID: "demo-session",
			Mode:      model.ModeFull,
			Profile:   "Acme Robotics builds warehouse picking robots. Seed stage, 8 people, $40k MRR.",
			ScrapedText: "Acme Robotics announced a pilot with two regional logistics providers.\n\n" +
				"The founding team previously shipped industrial automation products at scale.",
		},
		SubmittedAt: time.Now(),
	})
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	log.Printf("submitted attempt %s", attemptID)

	// A duplicate submission coalesces onto the active attempt.
	again, err := submitUC.Submit(ctx, model.JobRequest{
		JobKey:  jobKey,
		Payload: model.AnalysisPayload{SessionID: "demo-session"},
	})
	if err != nil {
		log.Fatalf("duplicate submit: %v", err)
	}
	log.Printf("duplicate submit coalesced onto attempt %s", again)

	// 6. Drive the queue until the attempt is terminal
	for {
		processor.ProcessOne(ctx)
		attempt, err := jobRepo.FindLatest(ctx, jobKey)
		if err != nil {
			log.Fatalf("find latest: %v", err)
		}
		if attempt.Terminal() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	// 7. Final snapshot
	snap, err := statusUC.Snapshot(ctx, jobKey)
	if err != nil {
		log.Fatalf("snapshot: %v", err)
	}
	log.Printf("final: status=%s %d/%d completed=%v", snap.Status, snap.Current, snap.Total, snap.Completed)
}
