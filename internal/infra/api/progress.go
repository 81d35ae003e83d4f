package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/infra/logging"
	"startup-analysis-pipeline/internal/infra/metrics"
)

// handleEvents streams job progress over SSE. Events arrive through the
// broadcaster; a periodic snapshot poll covers missed events and degraded
// transports. Each connection keeps a watermark so progress only ever moves
// forward, and the stream ends after the complete event or a failed attempt.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	jobKey := chi.URLParam(r, "jobKey")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncStreamSubscribers()
	defer metrics.DecStreamSubscribers()

	l := logging.With(r.Context(), s.log)
	l.Debug().Str("job_key", jobKey).Msg("progress stream opened")
	defer l.Debug().Str("job_key", jobKey).Msg("progress stream closed")

	// Slow consumers drop broadcast events; the snapshot poll catches them up.
	events := make(chan model.ProgressEvent, 16)
	cancel := s.bus.Subscribe(jobKey, func(ev model.ProgressEvent) {
		select {
		case events <- ev:
		default:
		}
	})
	defer cancel()

	sw := &sseWriter{w: w, f: flusher}
	if err := sw.send(model.ProgressEvent{Type: model.EventConnected, JobKey: jobKey}); err != nil {
		return
	}

	lastCurrent := -1
	ctx := r.Context()

	// Immediate poll so late joiners see the job's state without waiting
	// for the first tick.
	if done := s.pollOnce(ctx, sw, jobKey, &lastCurrent); done {
		return
	}

	poll := time.NewTicker(s.stream.PollInterval)
	defer poll.Stop()
	keepalive := time.NewTicker(s.stream.KeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			switch ev.Type {
			case model.EventProgress:
				if ev.Current <= lastCurrent {
					continue
				}
				lastCurrent = ev.Current
				if err := sw.send(ev); err != nil {
					return
				}
			case model.EventComplete:
				_ = sw.send(ev)
				return
			}
		case <-poll.C:
			if done := s.pollOnce(ctx, sw, jobKey, &lastCurrent); done {
				return
			}
		case <-keepalive.C:
			if err := sw.send(model.ProgressEvent{Type: model.EventKeepalive}); err != nil {
				return
			}
		}
	}
}

// pollOnce reconciles the stream with the stored snapshot. It reports true
// when the stream should end.
func (s *Server) pollOnce(ctx context.Context, sw *sseWriter, jobKey string, lastCurrent *int) bool {
	snap, err := s.statusUC.Snapshot(ctx, jobKey)
	if err != nil {
		// A job submitted moments ago may not be visible yet.
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Str("job_key", jobKey).Msg("snapshot poll failed")
		}
		return false
	}
	if snap.Current > *lastCurrent {
		*lastCurrent = snap.Current
		ev := model.ProgressEvent{
			Type:                model.EventProgress,
			JobKey:              jobKey,
			Current:             snap.Current,
			Total:               snap.Total,
			CompletedCategories: snap.Completed,
		}
		if err := sw.send(ev); err != nil {
			return true
		}
	}
	switch snap.Status {
	case model.JobStatusCompleted:
		_ = sw.send(model.ProgressEvent{
			Type:    model.EventComplete,
			JobKey:  jobKey,
			Current: snap.Total,
			Total:   snap.Total,
		})
		return true
	case model.JobStatusFailed:
		// Failed attempts never produce a complete event; the client sees
		// the stream close and falls back to the status endpoint.
		return true
	}
	return false
}

type sseWriter struct {
	w http.ResponseWriter
	f http.Flusher
}

func (s *sseWriter) send(ev model.ProgressEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
