package redis

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/infra/metrics"
)

var _ adapter.ProgressBroadcaster = (*Broadcaster)(nil)

// Broadcaster carries progress events over redis pub/sub so every pipeline
// instance fans out to its own viewers. Transport failures degrade to no-ops:
// the SSE poller keeps clients correct, only latency suffers.
type Broadcaster struct {
	client *Client
	log    *zerolog.Logger

	mu   sync.Mutex
	subs map[string]*subscription // one redis subscription per jobKey
}

type subscription struct {
	cancel   context.CancelFunc
	mu       sync.Mutex
	handlers map[int]func(model.ProgressEvent)
	nextID   int
}

func NewBroadcaster(client *Client, logger *zerolog.Logger) *Broadcaster {
	l := logger.With().Str("component", "RedisBroadcaster").Logger()
	return &Broadcaster{client: client, log: &l, subs: map[string]*subscription{}}
}

func channelFor(jobKey string) string { return "progress:" + jobKey }

func (b *Broadcaster) Publish(ctx context.Context, jobKey string, ev model.ProgressEvent) {
	ev.JobKey = jobKey
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Error().Err(err).Msg("marshal progress event")
		return
	}
	if err := b.client.cli.Publish(ctx, channelFor(jobKey), payload).Err(); err != nil {
		metrics.IncBroadcastDegraded()
		b.log.Warn().Err(err).Str("job_key", jobKey).Msg("publish degraded to no-op")
		return
	}
	metrics.IncEventPublished(string(ev.Type))
}

func (b *Broadcaster) Subscribe(jobKey string, fn func(model.ProgressEvent)) (cancel func()) {
	b.mu.Lock()
	sub, ok := b.subs[jobKey]
	if !ok {
		ctx, stop := context.WithCancel(context.Background())
		sub = &subscription{cancel: stop, handlers: map[int]func(model.ProgressEvent){}}
		b.subs[jobKey] = sub
		go b.pump(ctx, jobKey, sub)
	}
	b.mu.Unlock()

	sub.mu.Lock()
	id := sub.nextID
	sub.nextID++
	sub.handlers[id] = fn
	sub.mu.Unlock()

	return func() {
		sub.mu.Lock()
		delete(sub.handlers, id)
		empty := len(sub.handlers) == 0
		sub.mu.Unlock()
		if empty {
			b.mu.Lock()
			if cur, ok := b.subs[jobKey]; ok && cur == sub {
				delete(b.subs, jobKey)
			}
			b.mu.Unlock()
			sub.cancel()
		}
	}
}

// pump relays one redis channel to all local handlers for that jobKey.
func (b *Broadcaster) pump(ctx context.Context, jobKey string, sub *subscription) {
	ps := b.client.cli.Subscribe(ctx, channelFor(jobKey))
	defer func() { _ = ps.Close() }()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				metrics.IncBroadcastDegraded()
				b.log.Warn().Str("job_key", jobKey).Msg("subscription channel closed; relying on polling")
				return
			}
			var ev model.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn().Err(err).Str("job_key", jobKey).Msg("drop malformed progress event")
				continue
			}
			sub.mu.Lock()
			handlers := make([]func(model.ProgressEvent), 0, len(sub.handlers))
			for _, h := range sub.handlers {
				handlers = append(handlers, h)
			}
			sub.mu.Unlock()
			for _, h := range handlers {
				h(ev)
			}
		}
	}
}
