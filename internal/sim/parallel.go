package sim

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/san-kum/trajopt/internal/dynamo"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Ensemble repeats a closed-loop run from perturbed initial states. Each
// run gets a fresh simulator from the factory, so stateful controllers
// and metrics are never shared between goroutines. Run 0 starts from the
// unperturbed state.
type Ensemble struct {
	factory func() *Simulator
	numRuns int
	sigma   float64
	seed    uint64
}

func NewEnsemble(factory func() *Simulator, numRuns int, sigma float64, seed uint64) *Ensemble {
	return &Ensemble{factory: factory, numRuns: numRuns, sigma: sigma, seed: seed}
}

func (e *Ensemble) Run(ctx context.Context, x0 dynamo.State, cfg dynamo.Config) ([]*dynamo.Result, error) {
	results := make([]*dynamo.Result, e.numRuns)
	errs := make([]error, e.numRuns)

	var wg sync.WaitGroup
	for i := 0; i < e.numRuns; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = e.factory().Run(ctx, e.perturb(x0, idx), cfg)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (e *Ensemble) perturb(x0 dynamo.State, idx int) dynamo.State {
	x := x0.Clone()
	if idx == 0 || e.sigma == 0 {
		return x
	}
	noise := distuv.Normal{Mu: 0, Sigma: e.sigma, Src: rand.NewPCG(e.seed, uint64(idx))}
	for i := range x {
		x[i] += noise.Rand()
	}
	return x
}

// Summarize returns the mean and standard deviation of one metric across
// an ensemble.
func Summarize(results []*dynamo.Result, metric string) (mean, std float64) {
	values := make([]float64, 0, len(results))
	for _, r := range results {
		if v, ok := r.Metrics[metric]; ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, 0
	}
	if len(values) == 1 {
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}
