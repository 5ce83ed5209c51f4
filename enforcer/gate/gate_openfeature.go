package gate

import (
	"context"
	"log/slog"

	"github.com/open-feature/go-sdk/openfeature"
)

// OpenFeature evaluates gates as boolean flags against whichever provider
// was registered with the openfeature SDK. Evaluation errors count as off.
type OpenFeature struct {
	client *openfeature.Client
	logger *slog.Logger
}

func NewOpenFeature(domain string, logger *slog.Logger) *OpenFeature {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenFeature{
		client: openfeature.NewClient(domain),
		logger: logger.With("system", "gate"),
	}
}

func (g *OpenFeature) IsActive(ctx context.Context, name string) bool {
	val, err := g.client.BooleanValue(ctx, name, false, openfeature.NewEvaluationContext("", nil))
	if err != nil {
		g.logger.Warn("feature gate evaluation failed", "gate", name, "err", err)
		return false
	}
	return val
}
