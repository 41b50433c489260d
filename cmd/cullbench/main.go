// Benchmark harness for the visibility pass.
//
// go build ./cmd/cullbench
// ./cullbench -entities 200000 -viewpoints 4 -workers 8 -profile cpu
// go tool pprof -http=":8000" ./cullbench cpu.pprof
package main

import (
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"slices"
	"time"

	"github.com/cullgate/cullgate/internal/core/ecs"
	"github.com/cullgate/cullgate/internal/core/event"
	"github.com/cullgate/cullgate/internal/cull"
	"github.com/pkg/profile"
)

type options struct {
	entities   int
	viewpoints int
	ticks      int
	batch      int
	workers    int
	threshold  int
	distance   float64
	extent     float64
	speed      float64
	seed       int64
	profile    string
}

func main() {
	var o options
	flag.IntVar(&o.entities, "entities", 100_000, "registered entities")
	flag.IntVar(&o.viewpoints, "viewpoints", 2, "viewpoints walking the world")
	flag.IntVar(&o.ticks, "ticks", 600, "measured ticks")
	flag.IntVar(&o.batch, "batch", 0, "registration batch size; 0 registers everything before the first tick")
	flag.IntVar(&o.workers, "workers", 1, "parallel evaluation workers")
	flag.IntVar(&o.threshold, "threshold", cull.DefaultParallelThreshold, "registry size that enables parallel evaluation")
	flag.Float64Var(&o.distance, "distance", 60, "culling distance")
	flag.Float64Var(&o.extent, "extent", 1000, "half width of the square world")
	flag.Float64Var(&o.speed, "speed", 2, "viewpoint speed per tick")
	flag.Int64Var(&o.seed, "seed", 1, "random seed")
	flag.StringVar(&o.profile, "profile", "", "cpu, mem or empty")
	flag.Parse()

	switch o.profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "":
	default:
		fmt.Fprintf(os.Stderr, "unknown profile mode %q\n", o.profile)
		os.Exit(2)
	}

	res, err := run(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	res.print(os.Stdout)
}

type result struct {
	opts        options
	setup       time.Duration
	samples     []time.Duration
	transitions int
	visible     int
}

func run(o options) (*result, error) {
	rng := rand.New(rand.NewSource(o.seed))
	bus := event.NewBus()

	transitions := 0
	event.Subscribe(bus, func(event.VisibilityChanged) { transitions++ })

	batch := o.batch
	if batch <= 0 {
		batch = o.entities
	}
	mgr := cull.NewManager(cull.Settings{
		CullingDistance:   o.distance,
		BatchSize:         batch,
		Workers:           o.workers,
		ParallelThreshold: o.threshold,
	}, cull.RegistryOptions{}, bus, nil)

	start := time.Now()
	pool := ecs.NewEntityPool()
	for i := 0; i < o.entities; i++ {
		s := cull.Sphere{
			Center: cull.Vec3{X: spread(rng, o.extent), Z: spread(rng, o.extent)},
			Radius: 0.5 + rng.Float64()*2,
		}
		if err := mgr.RequestRegister(pool.Create(), s); err != nil {
			return nil, err
		}
	}
	setup := time.Since(start)

	vps := make([]cull.Viewpoint, o.viewpoints)
	heading := make([]cull.Vec3, o.viewpoints)
	for i := range vps {
		vps[i] = cull.Viewpoint{
			Name:     fmt.Sprintf("walker-%d", i),
			Position: cull.Vec3{X: spread(rng, o.extent), Z: spread(rng, o.extent)},
		}
		heading[i] = cull.Vec3{X: spread(rng, 1), Z: spread(rng, 1)}
	}

	res := &result{opts: o, setup: setup, samples: make([]time.Duration, 0, o.ticks)}
	for t := 0; t < o.ticks; t++ {
		for i := range vps {
			vps[i].Position = walk(vps[i].Position, &heading[i], o.speed, o.extent)
		}
		mgr.SetViewpoints(vps)

		t0 := time.Now()
		if _, err := mgr.Tick(); err != nil {
			return nil, fmt.Errorf("tick %d: %w", t, err)
		}
		res.samples = append(res.samples, time.Since(t0))
	}
	res.transitions = transitions
	res.visible = mgr.TotalVisible()
	return res, nil
}

func spread(rng *rand.Rand, extent float64) float64 {
	return (rng.Float64()*2 - 1) * extent
}

// walk moves p along h and bounces off the world edge.
func walk(p cull.Vec3, h *cull.Vec3, speed, extent float64) cull.Vec3 {
	n := p.Add(h.Scale(speed))
	if n.X < -extent || n.X > extent {
		h.X = -h.X
		n.X = p.X
	}
	if n.Z < -extent || n.Z > extent {
		h.Z = -h.Z
		n.Z = p.Z
	}
	return n
}

func (r *result) print(w io.Writer) {
	sorted := slices.Clone(r.samples)
	slices.Sort(sorted)
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	pct := func(q float64) time.Duration {
		if len(sorted) == 0 {
			return 0
		}
		return sorted[int(q*float64(len(sorted)-1))]
	}
	avg := time.Duration(0)
	if len(sorted) > 0 {
		avg = total / time.Duration(len(sorted))
	}

	fmt.Fprintf(w, "entities=%d viewpoints=%d ticks=%d workers=%d distance=%.1f\n",
		r.opts.entities, r.opts.viewpoints, r.opts.ticks, r.opts.workers, r.opts.distance)
	fmt.Fprintf(w, "setup      %v\n", r.setup)
	fmt.Fprintf(w, "tick avg   %v\n", avg)
	fmt.Fprintf(w, "tick p50   %v\n", pct(0.50))
	fmt.Fprintf(w, "tick p99   %v\n", pct(0.99))
	fmt.Fprintf(w, "tick max   %v\n", pct(1))
	fmt.Fprintf(w, "flips      %d\n", r.transitions)
	fmt.Fprintf(w, "visible    %d\n", r.visible)
}
