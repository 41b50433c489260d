package cull

import (
	"github.com/cullgate/cullgate/internal/core/event"
	"golang.org/x/sync/errgroup"
)

// Viewpoint is a position distance is measured from, typically a camera.
type Viewpoint struct {
	Name     string
	Position Vec3
}

const DefaultParallelThreshold = 4096

// EvaluatorOptions controls the optional parallel compute pass.
// Workers <= 1 keeps evaluation on the calling goroutine.
type EvaluatorOptions struct {
	Workers           int
	ParallelThreshold int
}

// Evaluator decides per tick which registered entities are within the culling
// distance of at least one viewpoint. A pass has two steps: compute fills a
// scratch buffer reading the registry only, then the flags are flipped and
// transitions published in slot order. Subscribers may therefore mutate the
// registry from inside a handler without disturbing the pass.
type Evaluator struct {
	reg       *Registry
	bus       *event.Bus
	workers   int
	threshold int

	next    []bool
	flipped []event.VisibilityChanged
}

func NewEvaluator(reg *Registry, bus *event.Bus, opts EvaluatorOptions) *Evaluator {
	e := &Evaluator{reg: reg, bus: bus}
	e.Configure(opts)
	return e
}

// Configure swaps the parallelism settings; takes effect on the next pass.
func (e *Evaluator) Configure(opts EvaluatorOptions) {
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	e.workers = opts.Workers
	e.threshold = opts.ParallelThreshold
}

// EvaluateTick runs one visibility pass and returns the number of transitions.
// With no viewpoints every entity evaluates as not visible.
func (e *Evaluator) EvaluateTick(viewpoints []Viewpoint, cullingDistance float64) int {
	n := e.reg.Count()
	if n == 0 {
		return 0
	}
	if cap(e.next) < n {
		e.next = make([]bool, n, e.reg.CapacityHint())
	}
	e.next = e.next[:n]

	if e.workers > 1 && n >= e.threshold {
		e.computeParallel(viewpoints, cullingDistance, n)
	} else {
		e.computeRange(viewpoints, cullingDistance, 0, n)
	}

	e.flipped = e.flipped[:0]
	for slot := 0; slot < n; slot++ {
		if e.reg.setVisible(slot, e.next[slot]) {
			e.flipped = append(e.flipped, event.VisibilityChanged{
				EntityID: e.reg.handles[slot],
				Visible:  e.next[slot],
			})
		}
	}
	for _, ev := range e.flipped {
		event.Publish(e.bus, ev)
	}
	return len(e.flipped)
}

func (e *Evaluator) computeRange(viewpoints []Viewpoint, cullingDistance float64, lo, hi int) {
	if len(viewpoints) == 0 || !(cullingDistance > 0) {
		clear(e.next[lo:hi])
		return
	}
	limit := cullingDistance * cullingDistance
	spheres := e.reg.spheres
	for slot := lo; slot < hi; slot++ {
		c := spheres[slot].Center
		in := false
		for i := range viewpoints {
			if DistSq(viewpoints[i].Position, c) < limit {
				in = true
				break
			}
		}
		e.next[slot] = in
	}
}

func (e *Evaluator) computeParallel(viewpoints []Viewpoint, cullingDistance float64, n int) {
	chunk := (n + e.workers - 1) / e.workers
	var g errgroup.Group
	g.SetLimit(e.workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			e.computeRange(viewpoints, cullingDistance, lo, hi)
			return nil
		})
	}
	// computeRange never fails; Wait only joins the workers.
	_ = g.Wait()
}

var _ Membership = (*Registry)(nil)
