// Package main tunes per-silo start delays so the discharges share the
// conveyor as little as possible without stretching the run.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/silodrop/config"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

// EvalRecord is one row of optimize_log.csv.
type EvalRecord struct {
	Eval       int     `csv:"eval"`
	Fitness    float64 `csv:"fitness"`
	Overlap    float64 `csv:"overlap"`
	OverlapStd float64 `csv:"overlap_std"`
	FinishSec  float64 `csv:"finish_sec"`
	Finished   int     `csv:"finished_seeds"`
	Delays     string  `csv:"delays"` // semicolon-separated, one per tuned unit
}

func main() {
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	maxTicks := flag.Int("ticks", 7200, "Maximum simulation duration per run in ticks")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 60, "Maximum number of evaluations")
	maxDelay := flag.Float64("max-delay", 12, "Upper bound for each start delay in seconds")
	particles := flag.Int("particles", 300, "Particles per layer during evaluation (0 = config value)")
	flow := flag.Float64("flow", 0, "Conveyor flow speed (0 = config default)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Games log at info on creation; keep evaluation output to the progress lines.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := *config.Cfg()
	if *particles > 0 {
		baseCfg.Sim.ParticlesPerLayer = *particles
	}

	params := NewParamVector(&baseCfg, *maxDelay)
	if params.Dim() == 0 {
		log.Fatal("need at least two units to tune start delays")
	}

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, int32(*maxTicks), evalSeeds, &baseCfg, float32(*flow))

	logPath := filepath.Join(*outputDir, "optimize_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	var bestScore Score
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			score := evaluator.LastScore()
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
				bestScore = score
			}

			rec := EvalRecord{
				Eval:       evalCount,
				Fitness:    fitness,
				Overlap:    score.Overlap,
				OverlapStd: score.OverlapStd,
				FinishSec:  score.FinishSec,
				Finished:   score.Finished,
				Delays:     formatDelays(clamped),
			}
			var werr error
			if evalCount == 1 {
				werr = gocsv.MarshalFile([]EvalRecord{rec}, logFile)
			} else {
				werr = gocsv.MarshalWithoutHeaders([]EvalRecord{rec}, logFile)
			}
			if werr != nil {
				log.Printf("failed to write log row: %v", werr)
			}

			elapsed := time.Since(startTime)
			avgPerEval := elapsed / time.Duration(evalCount)
			remaining := time.Duration(max(*maxEvals-evalCount, 0)) * avgPerEval
			fmt.Printf("Eval %d/%d: overlap=%.4f finish=%.1fs delays=[%s] (best=%.4f) | elapsed: %s, ETA: %s\n",
				evalCount, *maxEvals, score.Overlap, score.FinishSec, rec.Delays, bestFitness,
				formatDuration(elapsed), formatDuration(remaining))

			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}
	method := &optimize.NelderMead{
		SimplexSize: 0.3,
	}

	initX := params.Normalize(params.DefaultVector())

	fmt.Printf("Starting Nelder-Mead over %d start delays, max_evals=%d\n", params.Dim(), *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, ticks per run: %d, particles per layer: %d\n",
		*seeds, *maxTicks, baseCfg.Sim.ParticlesPerLayer)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluations completed")
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.4f (overlap=%.4f, finish=%.1fs)\n", bestFitness, bestScore.Overlap, bestScore.FinishSec)

	fmt.Println("\nBest start delays:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.3f\n", spec.Path, bestParams[i])
	}

	// Best config keeps the caller's particle count, only the delays change.
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	params.ApplyToConfig(bestCfg, bestParams)

	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}

func formatDelays(v []float64) string {
	parts := make([]string, len(v))
	for i, d := range v {
		parts[i] = fmt.Sprintf("%.3f", d)
	}
	return strings.Join(parts, ";")
}
