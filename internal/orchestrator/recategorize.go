package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Recategorize re-runs the categorizer over every token and overwrites the
// classification of tokens whose result changed. A token the current table
// cannot match keeps its existing classification.
func (o *Orchestrator) Recategorize(ctx context.Context) (*RecategorizeResult, error) {
	if o.categorizer == nil {
		return nil, fmt.Errorf("recategorize: no categorizer configured")
	}

	tokens, err := o.tokenStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	result := &RecategorizeResult{Scanned: len(tokens)}
	for _, t := range tokens {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := o.categorizer.Categorize(t.Name, t.Symbol)
		if !res.Matched() {
			o.metrics.RecordCategorized("unmatched")
			continue
		}
		o.metrics.RecordCategorized("matched")
		result.Matched++

		next := res.Classification()
		if next.Equal(t.Classification()) {
			continue
		}

		if err := o.tokenStore.UpdateClassification(ctx, t.Address, next); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("recategorize %s: %v", t.Address, err))
			o.logger.Warn("update classification failed", zap.String("address", t.Address), zap.Error(err))
			continue
		}
		result.Updated++
	}
	return result, nil
}
