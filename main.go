package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/game"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without graphics")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = config value, then time-based)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	mode := flag.String("mode", "", "Experience: normal or optimisation (empty = config)")
	flow := flag.Float64("flow", 0, "Initial conveyor flow speed (0 = config default)")
	autostart := flag.Bool("autostart", false, "Start discharging immediately")
	plots := flag.Bool("plots", false, "Write fill plot and bed heatmap on exit")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = cfg.Sim.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	opts := game.Options{
		Seed:       rngSeed,
		OutputDir:  *outputDir,
		LogStats:   *logStats,
		Plots:      *plots,
		Experience: *mode,
		FlowSpeed:  float32(*flow),
		AutoStart:  *autostart || *headless,
	}

	if *headless {
		os.Exit(runHeadless(opts, *maxTicks))
	}

	// Graphical mode
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "Silo Drop")
	defer rl.CloseWindow()

	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		slog.Error("failed to create game", "error", err)
		return
	}
	defer func() {
		if err := g.Unload(); err != nil {
			slog.Error("unload failed", "error", err)
		}
	}()

	v := newViewer(g)
	defer v.Unload()

	for !rl.WindowShouldClose() {
		v.HandleInput()
		g.Update(rl.GetFrameTime())
		v.Draw()

		if *maxTicks > 0 && int(g.Tick()) >= *maxTicks {
			break
		}
	}
}

// runHeadless discharges until auto-stop or maxTicks and returns the exit code.
func runHeadless(opts game.Options, maxTicks int) int {
	g, err := game.NewGameWithOptions(opts)
	if err != nil {
		slog.Error("failed to create game", "error", err)
		return 1
	}

	slog.Info("starting headless simulation",
		"seed", opts.Seed,
		"max_ticks", maxTicks,
		"experience", g.Controller().Experience(),
	)

	for {
		g.UpdateHeadless()

		if !g.Controller().Discharging() {
			slog.Info("discharge complete", "tick", g.Tick(), "sim_time", g.Elapsed())
			break
		}
		if maxTicks > 0 && int(g.Tick()) >= maxTicks {
			slog.Info("max ticks reached", "tick", g.Tick())
			break
		}
	}

	for _, u := range g.Plant().Units() {
		slog.Info("unit result",
			"unit", u.Unit.Name,
			"fill_ratio", u.Progress.FillRatio,
			"target", u.Progress.Target,
			"captured", u.Progress.Captured,
			"discharged", u.Progress.Discharged,
			"total", u.Progress.Total,
		)
	}

	if err := g.Unload(); err != nil {
		slog.Error("unload failed", "error", err)
		return 1
	}
	return 0
}
