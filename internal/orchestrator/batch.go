package orchestrator

import (
	"context"

	"github.com/benvon/smart-coach/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessBatch groups requests by type and processes every request of every
// group concurrently. Responses are returned in input order.
func (o *Orchestrator) ProcessBatch(ctx context.Context, reqs []*models.CoachingRequest) []*models.OrchestrationResponse {
	out := make([]*models.OrchestrationResponse, len(reqs))

	var order []models.RequestType
	groups := make(map[models.RequestType][]int)
	for i, req := range reqs {
		var t models.RequestType
		if req != nil {
			t = req.Type
		}
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], i)
	}

	var g errgroup.Group
	if o.batchConcurrency > 0 {
		g.SetLimit(o.batchConcurrency)
	}
	for _, t := range order {
		for _, i := range groups[t] {
			g.Go(func() error {
				out[i] = o.ProcessRequest(ctx, reqs[i])
				return nil
			})
		}
	}
	_ = g.Wait()

	o.logger.Info("batch_processed",
		zap.Int("requests", len(reqs)),
		zap.Int("groups", len(order)),
	)
	return out
}
