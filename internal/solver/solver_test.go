package solver_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/trajopt/internal/ddp"
	"github.com/san-kum/trajopt/internal/dynamo"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/physics"
	"github.com/san-kum/trajopt/internal/solver"
)

func options(pass solver.Pass) solver.Options {
	return solver.Options{
		Pass:          pass,
		MaxIterations: 100,
		Regularization: ddp.RegularizerConfig{
			Mode: ddp.ControlMode, Initial: 1e-6, Min: 1e-8, Max: 1e10, Factor: 1.6,
		},
		LineSearch:        ddp.LineSearch{LowerBound: 1e-4, UpperBound: 10, MaxIterations: 20},
		GradientTolerance: 1e-6,
		Constraints: solver.ConstraintOptions{
			MaxOuter: 20, Tolerance: 1e-3, PenaltyInitial: 1, PenaltyScale: 10, PenaltyMax: 1e8,
		},
	}
}

func doubleIntegrator(pass solver.Pass) *solver.Problem {
	method := "rk4"
	if pass.Hold() {
		method = "rk3"
	}
	integ, err := integrators.New(method)
	Expect(err).NotTo(HaveOccurred())
	return &solver.Problem{
		System:     physics.NewDoubleIntegrator(),
		Integrator: integ,
		Weights: ddp.Weights{
			Q:      solver.Identity(2, 1),
			R:      solver.Identity(1, 0.1),
			Qf:     solver.Identity(2, 100),
			Target: dynamo.State{1, 0},
		},
		Initial: dynamo.State{0, 0},
		Knots:   21,
		Dt:      0.1,
	}
}

func solve(opts solver.Options, p *solver.Problem) *solver.Result {
	s, err := solver.New(opts, nil)
	Expect(err).NotTo(HaveOccurred())
	res, err := s.Solve(context.Background(), p)
	Expect(err).NotTo(HaveOccurred())
	return res
}

func expectDecreasingCosts(res *solver.Result) {
	last := math.Inf(1)
	for _, st := range res.History {
		if !st.Accepted {
			continue
		}
		Expect(st.Cost).To(BeNumerically("<", last), "iteration %d", st.Iteration)
		last = st.Cost
	}
}

func openLoopCost(p *solver.Problem) float64 {
	m := p.System.ControlDim()
	tr := ddp.Trajectory{X: []dynamo.State{p.Initial.Clone()}}
	for k := 0; k < p.Knots-1; k++ {
		u := make(dynamo.Control, m)
		tr.U = append(tr.U, u)
		tr.X = append(tr.X, p.Integrator.Step(p.System, tr.X[k], u, float64(k)*p.Dt, p.Dt))
	}
	return solver.Cost(p, false, tr)
}

var _ = Describe("Solver", func() {
	Context("unconstrained double integrator", func() {
		DescribeTable("converges with every backward pass",
			func(pass solver.Pass) {
				p := doubleIntegrator(pass)
				res := solve(options(pass), p)

				Expect(res.Converged).To(BeTrue())
				Expect(res.Reason).To(Equal(solver.ReasonExpectedChange))
				Expect(res.Iterations).To(BeNumerically("<", 10))
				Expect(res.History).To(HaveLen(res.Iterations))
				Expect(res.History[len(res.History)-1].Expected).To(BeNumerically("<", 1e-6))
				expectDecreasingCosts(res)

				final := res.Trajectory.X[p.Knots-1]
				Expect(final[0]).To(BeNumerically("~", 1, 0.05))
				Expect(final[1]).To(BeNumerically("~", 0, 0.05))
				Expect(res.Trajectory.IsValid()).To(BeTrue())
			},
			Entry("dense", solver.DensePass),
			Entry("square root", solver.SquareRootPass),
			Entry("first-order hold", solver.HoldPass),
		)

		It("takes a full step on the first iteration", func() {
			res := solve(options(solver.DensePass), doubleIntegrator(solver.DensePass))
			first := res.History[0]
			Expect(first.Accepted).To(BeTrue())
			Expect(first.Alpha).To(Equal(1.0))
			Expect(first.Ratio).To(BeNumerically("~", 1, 1e-3))
		})

		It("finds the same optimum with the dense and square-root passes", func() {
			dense := solve(options(solver.DensePass), doubleIntegrator(solver.DensePass))
			sqrt := solve(options(solver.SquareRootPass), doubleIntegrator(solver.SquareRootPass))
			Expect(sqrt.Cost).To(BeNumerically("~", dense.Cost, 1e-6))
			for k := range dense.Trajectory.U {
				Expect(sqrt.Trajectory.U[k][0]).To(BeNumerically("~", dense.Trajectory.U[k][0], 1e-4))
			}
		})

		It("returns a gain schedule for the final trajectory", func() {
			res := solve(options(solver.HoldPass), doubleIntegrator(solver.HoldPass))
			Expect(res.Hold).To(BeTrue())
			Expect(res.Trajectory.U).To(HaveLen(21))
			Expect(res.Gains.K).To(HaveLen(21))
			Expect(res.Gains.B).To(HaveLen(21))
		})

		It("reports every iteration to observers", func() {
			s, err := solver.New(options(solver.DensePass), nil)
			Expect(err).NotTo(HaveOccurred())
			var seen []solver.Stats
			s.AddObserver(solver.ObserverFunc(func(st solver.Stats) { seen = append(seen, st) }))
			res, err := s.Solve(context.Background(), doubleIntegrator(solver.DensePass))
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal(res.History))
		})
	})

	Context("constraints", func() {
		It("keeps the controls inside their bounds", func() {
			p := doubleIntegrator(solver.DensePass)
			p.Bounds = &solver.Bounds{Lower: dynamo.Control{-1.5}, Upper: dynamo.Control{1.5}}
			free := solve(options(solver.DensePass), doubleIntegrator(solver.DensePass))
			res := solve(options(solver.DensePass), p)

			peak := 0.0
			for _, u := range free.Trajectory.U {
				peak = math.Max(peak, math.Abs(u[0]))
			}
			Expect(peak).To(BeNumerically(">", 1.5))

			Expect(res.Violation).To(BeNumerically("<", 1e-3))
			Expect(res.Outer).To(BeNumerically(">", 1))
			for _, u := range res.Trajectory.U {
				Expect(u[0]).To(BeNumerically("<=", 1.5+1e-3))
				Expect(u[0]).To(BeNumerically(">=", -1.5-1e-3))
			}
		})

		It("reaches a terminal goal", func() {
			p := doubleIntegrator(solver.DensePass)
			p.Weights.Qf = solver.Identity(2, 0)
			p.Goal = true
			res := solve(options(solver.DensePass), p)

			final := res.Trajectory.X[p.Knots-1]
			Expect(res.Violation).To(BeNumerically("<", 1e-3))
			Expect(final[0]).To(BeNumerically("~", 1, 1e-3))
			Expect(final[1]).To(BeNumerically("~", 0, 1e-3))
		})
	})

	Context("nonlinear systems", func() {
		It("swings the pendulum toward rest with analytic Jacobians", func() {
			integ, _ := integrators.New("rk4")
			p := &solver.Problem{
				System:     physics.NewPendulum(),
				Integrator: integ,
				Weights: ddp.Weights{
					Q:      solver.Identity(2, 1),
					R:      solver.Identity(1, 0.1),
					Qf:     solver.Identity(2, 10),
					Target: dynamo.State{0, 0},
				},
				Initial: dynamo.State{0.5, 0},
				Knots:   41,
				Dt:      0.05,
			}
			res := solve(options(solver.DensePass), p)
			expectDecreasingCosts(res)
			Expect(res.Cost).To(BeNumerically("<", openLoopCost(p)))
		})

		It("balances the cart-pole through finite differences", func() {
			integ, _ := integrators.New("rk4")
			p := &solver.Problem{
				System:     physics.NewCartPole(),
				Integrator: integ,
				Weights: ddp.Weights{
					Q:      solver.Diagonal([]float64{1, 0.1, 10, 0.1}),
					R:      solver.Identity(1, 0.01),
					Qf:     solver.Diagonal([]float64{10, 1, 100, 1}),
					Target: dynamo.State{0, 0, 0, 0},
				},
				Initial: dynamo.State{0, 0, 0.1, 0},
				Knots:   31,
				Dt:      0.05,
			}
			res := solve(options(solver.SquareRootPass), p)
			expectDecreasingCosts(res)
			Expect(res.Cost).To(BeNumerically("<", openLoopCost(p)))
			Expect(math.Abs(res.Trajectory.X[p.Knots-1][2])).To(BeNumerically("<", 0.1))
		})
	})

	Context("failures", func() {
		It("rejects invalid options", func() {
			opts := options(solver.DensePass)
			opts.MaxIterations = 0
			_, err := solver.New(opts, nil)
			Expect(err).To(MatchError(solver.ErrInvalidOptions))
		})

		It("rejects an invalid problem", func() {
			s, err := solver.New(options(solver.DensePass), nil)
			Expect(err).NotTo(HaveOccurred())
			p := doubleIntegrator(solver.DensePass)
			p.Knots = 1
			_, err = s.Solve(context.Background(), p)
			Expect(err).To(MatchError(solver.ErrInvalidProblem))
		})

		It("stops when the context is cancelled", func() {
			s, err := solver.New(options(solver.DensePass), nil)
			Expect(err).NotTo(HaveOccurred())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := s.Solve(ctx, doubleIntegrator(solver.DensePass))
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Iterations).To(Equal(0))
			Expect(res.Trajectory.X).To(HaveLen(21))
		})
	})

	Context("batches", func() {
		It("solves every job and keeps failures separate", func() {
			bad := options(solver.DensePass)
			bad.LineSearch.MaxIterations = 0
			out := solver.Batch(context.Background(), nil, []solver.Job{
				{Name: "dense", Problem: doubleIntegrator(solver.DensePass), Options: options(solver.DensePass)},
				{Name: "broken", Problem: doubleIntegrator(solver.DensePass), Options: bad},
				{Name: "foh", Problem: doubleIntegrator(solver.HoldPass), Options: options(solver.HoldPass)},
			})
			Expect(out).To(HaveLen(3))
			Expect(out[0].Name).To(Equal("dense"))
			Expect(out[0].Err).NotTo(HaveOccurred())
			Expect(out[0].Result.Converged).To(BeTrue())
			Expect(out[1].Err).To(MatchError(ddp.ErrInvalidConfig))
			Expect(out[2].Err).NotTo(HaveOccurred())
			Expect(out[2].Result.Hold).To(BeTrue())
		})
	})
})
