package adapter

import (
	"context"

	"startup-analysis-pipeline/internal/domain/model"
)

// ProgressBroadcaster is the keyed pub/sub transport for progress events.
// Publishing with zero subscribers is a no-op; events are not queued for
// latecomers (the endpoint's polling fallback covers that gap). If the
// backing transport is unavailable both operations degrade to no-ops.
type ProgressBroadcaster interface {
	Publish(ctx context.Context, jobKey string, ev model.ProgressEvent)
	// Subscribe attaches fn to the jobKey channel and returns a cancel
	// function. Cancelling one subscription never affects the others.
	Subscribe(jobKey string, fn func(model.ProgressEvent)) (cancel func())
}
