package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// MismatchedPathsMessage is the fixed message for input/output lists of
// different lengths.
const MismatchedPathsMessage = "the number of input and output paths must be identical"

// JobRunner runs a single job. *Pipeline satisfies it.
type JobRunner interface {
	Run(ctx context.Context, job types.TranslationJob) (string, error)
}

// JobCallback is invoked once per job as soon as that job finishes, from the
// job's own goroutine.
type JobCallback func(batchID string, result types.PipelineResult)

// Orchestrator fans a batch of jobs out concurrently.
type Orchestrator struct {
	runner         JobRunner
	maxConcurrency int
	onJobDone      JobCallback
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxConcurrency bounds the number of jobs in flight. n <= 0 means no bound.
func WithMaxConcurrency(n int) Option {
	return func(o *Orchestrator) {
		o.maxConcurrency = n
	}
}

// WithJobCallback registers a per-job completion callback.
func WithJobCallback(cb JobCallback) Option {
	return func(o *Orchestrator) {
		o.onJobDone = cb
	}
}

// NewOrchestrator creates an Orchestrator around runner.
func NewOrchestrator(runner JobRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{runner: runner}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// BuildJobs pairs inputs and outputs by position.
func BuildJobs(inputs, outputs []string) ([]types.TranslationJob, error) {
	if len(inputs) != len(outputs) {
		return nil, types.NewAppError(types.ErrValidation, MismatchedPathsMessage, nil)
	}
	jobs := make([]types.TranslationJob, len(inputs))
	for i := range inputs {
		jobs[i] = types.TranslationJob{InputPath: inputs[i], OutputPath: outputs[i]}
	}
	return jobs, nil
}

// Run translates every input into the output at the same position. All jobs
// run to completion; if any failed, the error of the lowest-indexed failure
// is returned and every other result is discarded. Otherwise the output
// paths come back in input order.
func (o *Orchestrator) Run(ctx context.Context, inputs, outputs []string) ([]string, error) {
	jobs, err := BuildJobs(inputs, outputs)
	if err != nil {
		return nil, err
	}

	_, results, errs := o.run(ctx, jobs)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	paths := make([]string, len(results))
	for i, r := range results {
		paths[i] = r.OutputPath
	}
	return paths, nil
}

// RunDetailed runs the batch like Run but reports every job's outcome
// instead of collapsing them to the first failure. Only a length mismatch is
// returned as an error.
func (o *Orchestrator) RunDetailed(ctx context.Context, inputs, outputs []string) (*types.BatchResult, error) {
	jobs, err := BuildJobs(inputs, outputs)
	if err != nil {
		return nil, err
	}

	batchID, results, _ := o.run(ctx, jobs)
	batch := &types.BatchResult{BatchID: batchID, Results: results}
	for _, r := range results {
		if r.Succeeded() {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}

// run executes jobs and returns the batch ID plus per-job results and errors,
// both indexed like jobs.
func (o *Orchestrator) run(ctx context.Context, jobs []types.TranslationJob) (string, []types.PipelineResult, []error) {
	batchID := uuid.NewString()
	log := logger.With(logger.String("batch_id", batchID))
	log.Info("batch started", logger.Int("jobs", len(jobs)), logger.Int("maxConcurrency", o.maxConcurrency))

	errs := make([]error, len(jobs))
	results := make([]types.PipelineResult, len(jobs))
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, job types.TranslationJob) {
			defer wg.Done()

			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}

			start := time.Now()
			out, err := o.runJob(ctx, job)
			errs[idx] = err
			results[idx] = toResult(idx, job, out, err, time.Since(start))

			if o.onJobDone != nil {
				o.onJobDone(batchID, results[idx])
			}
		}(i, job)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	log.Info("batch finished", logger.Int("succeeded", len(jobs)-failed), logger.Int("failed", failed))
	return batchID, results, errs
}

// runJob reports a panic inside a stage as an INTERNAL_ERROR for that job.
func (o *Orchestrator) runJob(ctx context.Context, job types.TranslationJob) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewAppErrorWithDetails(types.ErrInternal, "job panicked", job.InputPath, fmt.Errorf("%v", r))
		}
	}()
	return o.runner.Run(ctx, job)
}

// toResult reports the runner's path for a success and the requested path
// for a failure.
func toResult(idx int, job types.TranslationJob, out string, err error, elapsed time.Duration) types.PipelineResult {
	r := types.PipelineResult{
		Index:      idx,
		InputPath:  job.InputPath,
		OutputPath: job.OutputPath,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
		r.Code = string(types.CodeOf(err))
		return r
	}
	r.OutputPath = out
	return r
}
