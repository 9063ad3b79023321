package rules

import (
	"context"
	"log/slog"

	"github.com/lukewarren/ledgerflow/internal/model"
	"github.com/lukewarren/ledgerflow/internal/service"
)

// DefaultChunkSize bounds how many transactions a bulk run holds in
// memory at once.
const DefaultChunkSize = 200

// Progress is pushed to the caller's callback after each processed
// chunk.
type Progress struct {
	Processed int
	Total     int
	Matched   int
	Failed    int
}

// ProgressFunc receives progress updates during a bulk run.
type ProgressFunc func(Progress)

// TransactionFailure records one transaction the run could not process.
type TransactionFailure struct {
	TransactionID string
	Reason        string
}

// RunSummary is the aggregate result of a bulk run. Succeeded counts
// transactions processed without failure, whether or not a rule
// matched them.
type RunSummary struct {
	Failures  []TransactionFailure
	Processed int
	Matched   int
	Succeeded int
	Failed    int
}

// BulkRunner applies the rule engine across large transaction sets in
// fixed-size chunks. Failures on one transaction never halt the batch:
// they are recorded in the summary and the run continues. Cancellation
// is cooperative and checked between transactions, never mid-apply, so
// an atomic action batch is never interrupted; on cancellation,
// already-applied work stays applied.
type BulkRunner struct {
	store     service.Storage
	engine    *Engine
	chunkSize int
}

// NewBulkRunner creates a bulk runner with the default chunk size.
func NewBulkRunner(store service.Storage, engine *Engine) *BulkRunner {
	return &BulkRunner{
		store:     store,
		engine:    engine,
		chunkSize: DefaultChunkSize,
	}
}

// WithChunkSize overrides the chunk size. Values below 1 are ignored.
func (r *BulkRunner) WithChunkSize(size int) *BulkRunner {
	if size > 0 {
		r.chunkSize = size
	}
	return r
}

// Run applies the rule list to every transaction the filter selects.
func (r *BulkRunner) Run(ctx context.Context, ruleList []model.Rule, filter service.TransactionFilter, progress ProgressFunc) (*RunSummary, error) {
	total, err := r.store.CountTransactions(ctx, filter)
	if err != nil {
		return nil, &StoreError{Op: "count transactions", Err: err}
	}

	slog.Info("starting bulk rule run",
		"rules", len(ruleList),
		"transactions", total,
		"chunk_size", r.chunkSize)

	summary := &RunSummary{}
	offset := 0

	for {
		select {
		case <-ctx.Done():
			slog.Info("bulk run canceled",
				"processed", summary.Processed, "total", total)
			return summary, ctx.Err()
		default:
		}

		filter.Offset = offset
		filter.Limit = r.chunkSize
		chunk, err := r.store.GetTransactions(ctx, filter)
		if err != nil {
			return summary, &StoreError{Op: "fetch transactions", Err: err}
		}
		if len(chunk) == 0 {
			break
		}

		for i := range chunk {
			txn := chunk[i]
			result, err := r.engine.ApplyRules(ctx, ruleList, &txn)
			summary.Processed++

			switch {
			case err != nil:
				summary.Failed++
				summary.Failures = append(summary.Failures, TransactionFailure{
					TransactionID: txn.ID,
					Reason:        err.Error(),
				})
				slog.Error("transaction failed during bulk run",
					"transaction_id", txn.ID, "error", err)
			case result.Failed():
				summary.Failed++
				summary.Failures = append(summary.Failures, TransactionFailure{
					TransactionID: txn.ID,
					Reason:        result.FailureReason(),
				})
			default:
				summary.Succeeded++
				if result.Matched() {
					summary.Matched++
				}
			}
		}

		if progress != nil {
			progress(Progress{
				Processed: summary.Processed,
				Total:     total,
				Matched:   summary.Matched,
				Failed:    summary.Failed,
			})
		}

		offset += len(chunk)
		if len(chunk) < r.chunkSize {
			break
		}
	}

	slog.Info("bulk rule run complete",
		"processed", summary.Processed,
		"matched", summary.Matched,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed)

	return summary, nil
}

// ApplyRule runs a single rule over the filtered transaction set, the
// test/apply mode rule editors use.
func (r *BulkRunner) ApplyRule(ctx context.Context, rule model.Rule, filter service.TransactionFilter, progress ProgressFunc) (*RunSummary, error) {
	return r.Run(ctx, []model.Rule{rule}, filter, progress)
}

// CountMatches evaluates a trigger group over the filtered transaction
// set without mutating anything, for "N transactions match" previews.
func (r *BulkRunner) CountMatches(ctx context.Context, group model.TriggerGroup, filter service.TransactionFilter) (int, error) {
	matched := 0
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return matched, ctx.Err()
		default:
		}

		filter.Offset = offset
		filter.Limit = r.chunkSize
		chunk, err := r.store.GetTransactions(ctx, filter)
		if err != nil {
			return matched, &StoreError{Op: "fetch transactions", Err: err}
		}
		if len(chunk) == 0 {
			break
		}

		for i := range chunk {
			if r.engine.EvaluateTriggerGroup(group, &chunk[i]) {
				matched++
			}
		}

		offset += len(chunk)
		if len(chunk) < r.chunkSize {
			break
		}
	}

	return matched, nil
}
