package sync

import (
	"context"
	"fmt"
	"log"
)

// BatchReport tallies one batch of mutations against the portal.
type BatchReport struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Apply runs op over every item in order. An item failure is logged and
// recorded but never stops the batch; the remaining items still run. Only
// context cancellation aborts early, returning the tally so far alongside the
// context error.
func Apply[T any](ctx context.Context, stage string, items []T, describe func(T) string, op func(context.Context, T) error) (BatchReport, error) {
	var report BatchReport
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := op(ctx, item); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Errorf("%s %s: %w", stage, describe(item), err))
			log.Printf("sync: %s %s failed: %v", stage, describe(item), err)
			continue
		}
		report.Succeeded++
	}
	return report, nil
}
