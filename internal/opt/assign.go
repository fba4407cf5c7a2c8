package opt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"optiguide/internal/constraints"
	"optiguide/internal/model"
)

// State is the lifecycle of one assignment problem.
type State string

const (
	StateBuilt      State = "Built"
	StateSolving    State = "Solving"
	StateOptimal    State = State(model.StatusOptimal)
	StateInfeasible State = State(model.StatusInfeasible)
	StateUnbounded  State = State(model.StatusUnbounded)
	StateError      State = State(model.StatusError)
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case StateOptimal, StateInfeasible, StateUnbounded, StateError:
		return true
	}
	return false
}

// ErrTimeout is reported in the result message when the solve budget runs out.
var ErrTimeout = errors.New("solve timed out")

const defaultTolerance = 1e-9

// Problem is a binary coverage assignment model: one variable per retained edge
// into a positive-demand node, minimize total edge cost, every positive-demand
// node needs at least one selected edge.
type Problem struct {
	State State

	edges    []model.Route
	demands  []int64
	demandAt map[int64]int
	metadata map[string]any
	// uncovered lists positive-demand nodes with no retained edge.
	uncovered []int64
}

// Stats describes a finished solve.
type Stats struct {
	Variables   int           `json:"variables"`
	Constraints int           `json:"constraints"`
	Selected    int           `json:"selected"`
	Duration    time.Duration `json:"duration_ns"`
	State       State         `json:"state"`
}

// Build constructs the problem from a compiled model.
func Build(m constraints.Model) *Problem {
	p := &Problem{State: StateBuilt, demandAt: map[int64]int{}, metadata: m.Metadata}
	for _, d := range m.Demand {
		if m.LowerBounds[d.ID] <= 0 {
			continue
		}
		if _, dup := p.demandAt[d.ID]; dup {
			continue
		}
		p.demandAt[d.ID] = len(p.demands)
		p.demands = append(p.demands, d.ID)
	}
	covered := map[int64]bool{}
	for _, e := range m.Edges {
		if _, ok := p.demandAt[e.DemandID]; !ok {
			continue
		}
		p.edges = append(p.edges, e)
		covered[e.DemandID] = true
	}
	for _, id := range p.demands {
		if !covered[id] {
			p.uncovered = append(p.uncovered, id)
		}
	}
	return p
}

// Uncovered returns demand ids that no retained edge reaches.
func (p *Problem) Uncovered() []int64 { return p.uncovered }

// Solve runs the LP and interprets the result. timeout <= 0 means no budget
// beyond ctx. The returned result always has a non-nil assignment list.
func (p *Problem) Solve(ctx context.Context, timeout time.Duration) (model.SolveResult, Stats) {
	return p.solve(ctx, timeout, nil)
}

// solve holds a slot from slots, when set, for as long as the simplex call
// runs. lp.Simplex cannot be interrupted, so a timed-out solve keeps its slot
// until it actually returns.
func (p *Problem) solve(ctx context.Context, timeout time.Duration, slots chan struct{}) (model.SolveResult, Stats) {
	start := time.Now()
	st := Stats{Variables: len(p.edges), Constraints: len(p.demands)}
	finish := func(res model.SolveResult) (model.SolveResult, Stats) {
		if res.Assignments == nil {
			res.Assignments = []model.Assignment{}
		}
		if res.Metadata == nil && len(p.metadata) > 0 {
			res.Metadata = p.metadata
		}
		p.State = State(res.Status)
		st.State = p.State
		st.Selected = len(res.Assignments)
		st.Duration = time.Since(start)
		return res, st
	}
	if p.State != StateBuilt {
		return finish(model.ErrorResult(fmt.Sprintf("problem already %s", p.State)))
	}
	p.State = StateSolving

	if len(p.uncovered) > 0 {
		return finish(model.SolveResult{
			Status:  model.StatusInfeasible,
			Message: fmt.Sprintf("no eligible route into retailer(s) %v", p.uncovered),
		})
	}
	if len(p.demands) == 0 {
		return finish(model.SolveResult{Status: model.StatusOptimal})
	}

	c, A, b := p.standardForm()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	timedOut := func() (model.SolveResult, Stats) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return finish(model.ErrorResult(ErrTimeout.Error()))
		}
		return finish(model.ErrorResult(ctx.Err().Error()))
	}
	if ctx.Err() != nil {
		return timedOut()
	}
	if slots != nil {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return timedOut()
		}
	}

	type outcome struct {
		x   []float64
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		if slots != nil {
			defer func() { <-slots }()
		}
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("solver panic: %v", r)}
			}
		}()
		_, x, err := lp.Simplex(c, A, b, defaultTolerance, nil)
		done <- outcome{x: x, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-ctx.Done():
		return timedOut()
	}

	switch {
	case errors.Is(out.err, lp.ErrInfeasible):
		return finish(model.SolveResult{Status: model.StatusInfeasible, Message: out.err.Error()})
	case errors.Is(out.err, lp.ErrUnbounded):
		return finish(model.SolveResult{Status: model.StatusUnbounded, Message: out.err.Error()})
	case out.err != nil:
		return finish(model.ErrorResult(out.err.Error()))
	}
	return finish(p.interpret(out.x))
}

// standardForm lays the model out for lp.Simplex (min c·x, Ax = b, x >= 0).
// Rows: one coverage row (Σ x - s = 1) per demand. Every edge column touches a
// single coverage row, so a basic optimum already selects exactly one edge per
// demand and needs no x <= 1 rows. Only negative-cost edges, which would make
// the LP unbounded, get an explicit bound row x + u = 1.
// Columns: edge variables, one surplus per demand, one slack per bound row.
func (p *Problem) standardForm() ([]float64, *mat.Dense, []float64) {
	nE, nD := len(p.edges), len(p.demands)
	var bounded []int
	for i, e := range p.edges {
		if e.Cost < 0 {
			bounded = append(bounded, i)
		}
	}
	nB := len(bounded)
	cols := nE + nD + nB
	rows := nD + nB
	c := make([]float64, cols)
	A := mat.NewDense(rows, cols, nil)
	b := make([]float64, rows)
	for i, e := range p.edges {
		c[i] = e.Cost
		A.Set(p.demandAt[e.DemandID], i, 1)
	}
	for d := 0; d < nD; d++ {
		A.Set(d, nE+d, -1)
		b[d] = 1
	}
	for k, i := range bounded {
		A.Set(nD+k, i, 1)
		A.Set(nD+k, nE+nD+k, 1)
		b[nD+k] = 1
	}
	return c, A, b
}

func (p *Problem) interpret(x []float64) model.SolveResult {
	res := model.SolveResult{Status: model.StatusOptimal, Assignments: []model.Assignment{}}
	covered := map[int64]bool{}
	for i, e := range p.edges {
		if i < len(x) && x[i] > 0.5 {
			res.Assignments = append(res.Assignments, model.Assignment{SupplyID: e.SupplyID, DemandID: e.DemandID, Cost: e.Cost})
			res.TotalCost += e.Cost
			covered[e.DemandID] = true
		}
	}
	for _, id := range p.demands {
		if !covered[id] {
			return model.ErrorResult(fmt.Sprintf("solver returned a fractional or uncovered solution for retailer %d", id))
		}
	}
	return res
}

// Optimizer solves compiled models under a fixed time budget with at most
// maxConcurrent simplex calls in flight. Waiting for a slot counts against the
// budget.
type Optimizer struct {
	Timeout time.Duration
	slots   chan struct{}
}

// NewOptimizer returns an optimizer; maxConcurrent <= 0 means no limit.
func NewOptimizer(timeout time.Duration, maxConcurrent int) *Optimizer {
	o := &Optimizer{Timeout: timeout}
	if maxConcurrent > 0 {
		o.slots = make(chan struct{}, maxConcurrent)
	}
	return o
}

// InFlight is the number of simplex calls currently holding a slot, including
// ones whose caller already gave up.
func (o *Optimizer) InFlight() int { return len(o.slots) }

// Solve builds and solves m in one step.
func (o *Optimizer) Solve(ctx context.Context, m constraints.Model) (model.SolveResult, Stats) {
	return Build(m).solve(ctx, o.Timeout, o.slots)
}
