package application

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-veriai/internal/domain"
	"github.com/ahrav/go-veriai/internal/ports"
)

// DefaultBatchConcurrency bounds concurrent verifications in VerifyBatch.
const DefaultBatchConcurrency = 4

// BatchItem is the outcome of verifying one text in a batch.
type BatchItem struct {
	Index  int
	Text   string
	Result *domain.VerificationResult
	Err    error
}

// VerifyBatch verifies each text independently with at most concurrency
// calls in flight. Every text gets its own single verification; one failure
// does not stop the others. Items are returned in input order. The only
// error returned is ctx's, when it ends before every text was started.
func VerifyBatch(ctx context.Context, verifier ports.Verifier, texts []string, concurrency int) ([]BatchItem, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	items := make([]BatchItem, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, text := range texts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			result, err := verifier.Verify(gctx, text)
			// Each goroutine writes only its own slot.
			items[i] = BatchItem{Index: i, Text: text, Result: result, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		for i := range items {
			if items[i].Result == nil && items[i].Err == nil {
				items[i] = BatchItem{Index: i, Text: texts[i], Err: domain.NewVerificationError("", err)}
			}
		}
		return items, err
	}
	return items, nil
}
