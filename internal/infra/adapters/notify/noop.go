package notify

import (
	"context"

	"startup-analysis-pipeline/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*NoopNotifier)(nil)

type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier { return &NoopNotifier{} }

func (NoopNotifier) NotifyJobTerminal(context.Context, string, string, string) {}
