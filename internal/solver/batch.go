package solver

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Job is one named problem of a batch.
type Job struct {
	Name    string
	Problem *Problem
	Options Options
}

type Outcome struct {
	Name   string
	Result *Result
	Err    error
}

// Batch solves every job concurrently, one solver per job. Outcomes are
// returned in job order; a failed job does not stop the others.
func Batch(ctx context.Context, log *zap.Logger, jobs []Job) []Outcome {
	if log == nil {
		log = zap.NewNop()
	}
	out := make([]Outcome, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(idx int, job Job) {
			defer wg.Done()
			out[idx].Name = job.Name

			s, err := New(job.Options, log.With(zap.String("job", job.Name)))
			if err != nil {
				out[idx].Err = err
				return
			}
			out[idx].Result, out[idx].Err = s.Solve(ctx, job.Problem)
		}(i, job)
	}

	wg.Wait()
	return out
}
