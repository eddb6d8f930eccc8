package main

import (
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/game"
	"github.com/pthm-cable/silodrop/systems"
)

// Belt sampling.
const (
	beltBinWidth = 0.25 // world units per occupancy bin
	sampleEvery  = 4    // ticks between belt samples
)

// Fitness weights.
const (
	overlapWeight = 1.0
	timeWeight    = 0.35
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int32
	seeds      []int64
	baseConfig *config.Config
	flowSpeed  float32

	mu          sync.Mutex
	bestFitness float64
	last        Score
}

// Score is the seed-averaged outcome of one evaluation.
type Score struct {
	Fitness    float64
	Overlap    float64 // shared-bin particle seconds per particle
	OverlapStd float64
	FinishSec  float64 // auto-stop time, or the tick cap when never reached
	Finished   int     // seeds that reached auto-stop
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int32, seeds []int64, baseCfg *config.Config, flowSpeed float32) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		flowSpeed:   flowSpeed,
		bestFitness: math.Inf(1),
	}
}

// LastScore returns the score from the most recent evaluation.
func (fe *FitnessEvaluator) LastScore() Score {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// runResult holds the results from a single simulation run.
type runResult struct {
	overlap   float64
	finishSec float64
	finished  bool
	err       error
}

// Evaluate computes fitness for a parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	overlaps := make([]float64, 0, len(results))
	finishes := make([]float64, 0, len(results))
	finished := 0
	for _, r := range results {
		if r.err != nil {
			continue
		}
		overlaps = append(overlaps, r.overlap)
		finishes = append(finishes, r.finishSec)
		if r.finished {
			finished++
		}
	}

	score := Score{Fitness: math.Inf(1), Finished: finished}
	if len(overlaps) > 0 {
		score.Overlap, score.OverlapStd = stat.MeanStdDev(overlaps, nil)
		if len(overlaps) == 1 {
			score.OverlapStd = 0
		}
		score.FinishSec = stat.Mean(finishes, nil)
		capSec := float64(fe.maxTicks) * fe.baseConfig.Sim.DT
		score.Fitness = computeFitness(score.Overlap, score.FinishSec, capSec)
	}

	fe.mu.Lock()
	fe.bestFitness = min(fe.bestFitness, score.Fitness)
	fe.last = score
	fe.mu.Unlock()

	return score.Fitness
}

// computeFitness combines belt overlap with normalized completion time.
func computeFitness(overlap, finishSec, capSec float64) float64 {
	if capSec <= 0 {
		return overlapWeight * overlap
	}
	return overlapWeight*overlap + timeWeight*finishSec/capSec
}

// runSimulation executes a single headless discharge.
// Runs until auto-stop or maxTicks, whichever comes first.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	g, err := game.NewGameWithOptions(game.Options{
		Config:     cfg,
		Seed:       seed,
		Experience: config.ModeOptimisation,
		FlowSpeed:  fe.flowSpeed,
		AutoStart:  true,
	})
	if err != nil {
		return runResult{err: err}
	}
	defer g.Unload()

	plant := g.Plant()
	offsets := make([]float32, plant.UnitCount())
	var total int
	for i := range offsets {
		offsets[i] = float32(cfg.Units[i].WorldX)
		total += plant.Store(i).Len()
	}
	occ := newBeltOccupancy(offsets)

	dt := cfg.Sim.DT
	var shared float64
	for g.Tick() < fe.maxTicks {
		g.UpdateHeadless()
		if !g.Controller().Discharging() {
			return runResult{
				overlap:   normalizeOverlap(shared, total),
				finishSec: float64(g.Elapsed()),
				finished:  true,
			}
		}
		if g.Tick()%sampleEvery != 0 {
			continue
		}
		occ.Clear()
		for i := range offsets {
			occ.Add(i, plant.Store(i).Particles)
		}
		shared += float64(occ.Shared()) * dt * sampleEvery
	}

	return runResult{
		overlap:   normalizeOverlap(shared, total),
		finishSec: float64(fe.maxTicks) * dt,
	}
}

func normalizeOverlap(shared float64, total int) float64 {
	if total == 0 {
		return 0
	}
	return shared / float64(total)
}

// beltOccupancy bins on-belt particles per unit along world X.
type beltOccupancy struct {
	offsets []float32
	minX    float32
	counts  [][]float64 // [unit][bin]
}

func newBeltOccupancy(offsets []float32) *beltOccupancy {
	minX := systems.BeltDropStartWorldX
	for _, x := range offsets {
		minX = min(minX, x-systems.SiloRadius)
	}
	bins := int(math.Ceil(float64(systems.BeltDropStartWorldX-minX)/beltBinWidth)) + 1
	counts := make([][]float64, len(offsets))
	for i := range counts {
		counts[i] = make([]float64, bins)
	}
	return &beltOccupancy{offsets: offsets, minX: minX, counts: counts}
}

// Clear zeroes every bin.
func (b *beltOccupancy) Clear() {
	for _, c := range b.counts {
		clear(c)
	}
}

// Add bins the on-belt particles of one unit.
func (b *beltOccupancy) Add(unit int, particles []systems.Particle) {
	row := b.counts[unit]
	for i := range particles {
		p := &particles[i]
		if p.Phase != systems.PhaseOnBelt {
			continue
		}
		bin := int((p.Pos.X + b.offsets[unit] - b.minX) / beltBinWidth)
		if bin < 0 || bin >= len(row) {
			continue
		}
		row[bin]++
	}
}

// Shared returns the number of on-belt particles sitting in a bin that
// another unit also occupies, excluding each bin's dominant unit.
func (b *beltOccupancy) Shared() int {
	if len(b.counts) < 2 {
		return 0
	}
	column := make([]float64, len(b.counts))
	var shared float64
	for bin := range b.counts[0] {
		for u := range b.counts {
			column[u] = b.counts[u][bin]
		}
		shared += floats.Sum(column) - floats.Max(column)
	}
	return int(shared)
}

// copyConfig creates a copy of the base config with its own units slice.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Units = slices.Clone(fe.baseConfig.Units)
	return &cfg
}
