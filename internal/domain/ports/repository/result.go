package repository

import (
	"context"

	"startup-analysis-pipeline/internal/domain/model"
)

// ResultRepository is the durable side of "how far did this job get". The
// worker upserts dimension results here and the progress endpoint's polling
// fallback reads completion state back out.
type ResultRepository interface {
	SaveDimension(ctx context.Context, tx Tx, res *model.DimensionResult) error
	// CompletedDimensions returns dimension names in completion order.
	CompletedDimensions(ctx context.Context, jobKey string) ([]string, error)
}
