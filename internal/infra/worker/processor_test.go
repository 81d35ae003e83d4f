//go:build !integration

package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/infra/adapters/notify"
	"startup-analysis-pipeline/internal/infra/broadcast"
	"startup-analysis-pipeline/internal/infra/memstore"
	"startup-analysis-pipeline/internal/infra/worker"
)

// fakeRunner scripts the outcome of each run and can emit arbitrary progress.
type fakeRunner struct {
	mu      sync.Mutex
	reports [][2]int
	errs    []error // popped per run; empty means success
	runs    int
}

func (f *fakeRunner) Run(_ context.Context, _ *model.JobAttempt, report worker.ProgressFunc) error {
	f.mu.Lock()
	f.runs++
	reports := f.reports
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	for _, r := range reports {
		report(r[0], r[1], nil)
	}
	return err
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

type eventSink struct {
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (s *eventSink) record(ev model.ProgressEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *eventSink) all() []model.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProgressEvent(nil), s.events...)
}

func enqueue(t *testing.T, jobs *memstore.JobRepo, jobKey string, total int) {
	t.Helper()
	err := jobs.Enqueue(context.Background(), nil, &model.JobAttempt{
		ID: "attempt-" + jobKey, JobKey: jobKey, Attempt: 1,
		Status:          model.JobStatusQueued,
		Payload:         model.AnalysisPayload{SessionID: "s"},
		TotalDimensions: total,
		NextRunAt:       time.Now().Add(-time.Second),
		CreatedAt:       time.Now(),
	})
	if err != nil {
		t.Fatalf("Enqueue: unexpected error: %v", err)
	}
}

func newProcessor(jobs *memstore.JobRepo, runner worker.JobRunner, hub *broadcast.Hub) *worker.Processor {
	return worker.NewProcessor(jobs, runner, hub, notify.NewNoopNotifier(), nil, worker.Options{
		PollInterval: time.Millisecond,
		MaxAttempts:  3,
		BackoffBase:  time.Millisecond,
		BackoffMax:   2 * time.Millisecond,
	}, testLogger())
}

func TestProcessor_CompletedJobPublishesComplete(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()
	runner := &fakeRunner{reports: [][2]int{{1, 2}, {2, 2}}}
	p := newProcessor(jobs, runner, hub)

	sink := &eventSink{}
	cancel := hub.Subscribe("job-1", sink.record)
	defer cancel()

	enqueue(t, jobs, "job-1", 2)
	p.ProcessOne(ctx)

	attempt, err := jobs.FindLatest(ctx, "job-1")
	if err != nil {
		t.Fatalf("FindLatest: unexpected error: %v", err)
	}
	if attempt.Status != model.JobStatusCompleted {
		t.Fatalf("status: %s", attempt.Status)
	}
	if attempt.FinishedAt == nil {
		t.Fatalf("completed attempt must have FinishedAt")
	}

	events := sink.all()
	if len(events) != 3 {
		t.Fatalf("expected progress(1), progress(2), complete; got %+v", events)
	}
	if events[0].Type != model.EventProgress || events[0].Current != 1 ||
		events[1].Type != model.EventProgress || events[1].Current != 2 {
		t.Fatalf("progress events: %+v", events[:2])
	}
	last := events[2]
	if last.Type != model.EventComplete || last.Current != 2 || last.Total != 2 {
		t.Fatalf("complete event: %+v", last)
	}
}

func TestProcessor_DeduplicatesRepeatedProgress(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()
	// The runner re-reports 3 twice; subscribers must see it once.
	runner := &fakeRunner{reports: [][2]int{{3, 10}, {3, 10}, {7, 10}, {10, 10}}}
	p := newProcessor(jobs, runner, hub)

	sink := &eventSink{}
	cancel := hub.Subscribe("job-1", sink.record)
	defer cancel()

	enqueue(t, jobs, "job-1", 10)
	p.ProcessOne(ctx)

	var progress []int
	for _, ev := range sink.all() {
		if ev.Type == model.EventProgress {
			progress = append(progress, ev.Current)
		}
	}
	want := []int{3, 7, 10}
	if len(progress) != len(want) {
		t.Fatalf("progress currents: got %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress currents: got %v, want %v", progress, want)
		}
	}
}

func TestProcessor_TransientFailureRequeuesWithBackoff(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()
	runner := &fakeRunner{errs: []error{domain.Transient(errors.New("rate limited"))}}
	p := newProcessor(jobs, runner, hub)

	enqueue(t, jobs, "job-1", 2)
	p.ProcessOne(ctx)

	attempt, _ := jobs.FindLatest(ctx, "job-1")
	if attempt.Status != model.JobStatusQueued {
		t.Fatalf("expected requeue, got %s", attempt.Status)
	}
	if attempt.Attempt != 2 {
		t.Fatalf("attempt counter: %d", attempt.Attempt)
	}
	if attempt.LastError == "" {
		t.Fatalf("requeued attempt must record the error")
	}
	if !attempt.NextRunAt.After(time.Now().Add(-time.Millisecond)) {
		t.Fatalf("NextRunAt not pushed into the future: %v", attempt.NextRunAt)
	}
}

func TestProcessor_ExhaustedRetriesFailWithoutComplete(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()
	runner := &fakeRunner{errs: []error{
		domain.Transient(errors.New("blip 1")),
		domain.Transient(errors.New("blip 2")),
		domain.Transient(errors.New("blip 3")),
	}}
	p := newProcessor(jobs, runner, hub)

	sink := &eventSink{}
	cancel := hub.Subscribe("job-1", sink.record)
	defer cancel()

	enqueue(t, jobs, "job-1", 2)
	for i := 0; i < 10 && runner.runCount() < 3; i++ {
		p.ProcessOne(ctx)
		time.Sleep(3 * time.Millisecond) // let the backoff elapse
	}

	attempt, _ := jobs.FindLatest(ctx, "job-1")
	if attempt.Status != model.JobStatusFailed {
		t.Fatalf("expected failed after max attempts, got %s (attempt %d)", attempt.Status, attempt.Attempt)
	}
	if runner.runCount() != 3 {
		t.Fatalf("expected exactly 3 runs, got %d", runner.runCount())
	}
	for _, ev := range sink.all() {
		if ev.Type == model.EventComplete {
			t.Fatalf("failed job must not emit a complete event")
		}
	}
}

func TestProcessor_PermanentFailureDoesNotRetry(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()
	runner := &fakeRunner{errs: []error{errors.New("bad payload, never retry")}}
	p := newProcessor(jobs, runner, hub)

	enqueue(t, jobs, "job-1", 2)
	p.ProcessOne(ctx)
	p.ProcessOne(ctx) // nothing left to claim

	attempt, _ := jobs.FindLatest(ctx, "job-1")
	if attempt.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", attempt.Status)
	}
	if runner.runCount() != 1 {
		t.Fatalf("permanent failure must not rerun, got %d runs", runner.runCount())
	}
}

func TestProcessor_OneActiveWorkerPerKey(t *testing.T) {
	ctx := context.Background()
	jobs := memstore.NewJobRepo()
	hub := broadcast.NewHub()

	// A runner that blocks until released, to hold the key active.
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingRunner{started: started, release: release}
	p := newProcessor(jobs, blocking, hub)

	enqueue(t, jobs, "job-1", 2)

	go p.ProcessOne(ctx)
	<-started

	// While job-1 is active, claiming again must find nothing for that key.
	if _, err := jobs.FetchDueAndMarkActive(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second claim for an active key must miss, got %v", err)
	}
	close(release)
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingRunner) Run(_ context.Context, _ *model.JobAttempt, _ worker.ProgressFunc) error {
	close(b.started)
	<-b.release
	return nil
}
