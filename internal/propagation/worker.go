package propagation

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riyagpt0251/SatTrackAI/internal/metrics"
)

var tracer = otel.Tracer("github.com/riyagpt0251/SatTrackAI/internal/propagation")

// Result is one satellite's state from a batch.
type Result struct {
	Name          string
	CatalogNumber int
	State         StateVector
}

// propagateJob is a unit of work for the worker pool.
type propagateJob struct {
	index      int
	prop       *Propagator
	targetTime time.Time
}

// propagateResult is the output of a single satellite propagation.
type propagateResult struct {
	index  int
	result Result
	err    error
}

// WorkerPool manages a fixed number of goroutines for parallel SGP4 propagation.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	metrics.SetPropagationWorkers(workers)
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// PropagateBatch propagates every propagator to the target time. Results
// come back in input order; failed satellites are logged, counted and
// skipped. The second and third return values are the success and error
// counts.
func (wp *WorkerPool) PropagateBatch(ctx context.Context, props []*Propagator, targetTime time.Time) ([]Result, int, int) {
	if len(props) == 0 {
		return nil, 0, 0
	}

	ctx, span := tracer.Start(ctx, "propagation.PropagateBatch")
	defer span.End()
	span.SetAttributes(attribute.Int("satellites", len(props)))

	start := time.Now()

	jobs := make(chan propagateJob, wp.workers*2)
	results := make(chan propagateResult, wp.workers*2)

	// Start workers.
	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := propagateSingle(job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Feed jobs in a goroutine.
	go func() {
		defer close(jobs)
		for i, p := range props {
			select {
			case jobs <- propagateJob{index: i, prop: p, targetTime: targetTime}:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Close results when all workers are done.
	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]propagateResult, 0, len(props))
	var successCount, errorCount int
	for r := range results {
		if r.err != nil {
			errorCount++
			wp.logger.Warn("propagation failed",
				"name", r.result.Name,
				"catalog_number", r.result.CatalogNumber,
				"error", r.err,
			)
			continue
		}
		successCount++
		collected = append(collected, r)
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})
	out := make([]Result, len(collected))
	for i, r := range collected {
		out[i] = r.result
	}

	metrics.RecordPropagation(time.Since(start), successCount, errorCount)
	span.SetAttributes(attribute.Int("succeeded", successCount), attribute.Int("failed", errorCount))
	return out, successCount, errorCount
}

func propagateSingle(job propagateJob) propagateResult {
	es := job.prop.Elements()
	res := Result{Name: es.Name, CatalogNumber: es.CatalogNumber}
	sv, err := job.prop.Propagate(job.targetTime)
	if err != nil {
		return propagateResult{index: job.index, result: res, err: err}
	}
	res.State = sv
	return propagateResult{index: job.index, result: res}
}
