package driven

import (
	"context"

	"github.com/ericfisherdev/reviewbot/internal/domain/model"
)

// AnalysisClient defines the driven port for the external analysis service.
// One call produces one outcome; failures (transport errors, non-2xx
// responses, missing configuration) are normalized into the result rather
// than returned as errors.
type AnalysisClient interface {
	Run(ctx context.Context, payload any, flowID string) model.AnalysisResult
}
