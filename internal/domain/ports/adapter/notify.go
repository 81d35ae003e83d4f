package adapter

import "context"

// OpsNotifier pushes terminal job states to an operations channel.
// Failures are logged by implementations, never returned to the queue.
type OpsNotifier interface {
	NotifyJobTerminal(ctx context.Context, jobKey, status, lastError string)
}
