package game

import (
	"fmt"
	"image/color"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/systems"
	"github.com/pthm-cable/silodrop/telemetry"
)

// Options configures a Game.
type Options struct {
	Config     *config.Config // nil uses config.Cfg()
	Seed       int64
	OutputDir  string // empty disables CSV output
	LogStats   bool   // log window stats via slog
	Plots      bool   // write fill.png and bed.html on Unload
	Experience string // overrides config experience.mode when set
	FlowSpeed  float32
	AutoStart  bool

	// StatsCallback receives every flushed stats window.
	StatsCallback func([]telemetry.WindowStats)
}

// Game wires the plant, its controller and telemetry together.
type Game struct {
	cfg *config.Config

	plant      *Plant
	controller *Controller

	collector     *telemetry.Collector
	profiler      *telemetry.TickProfiler
	outputManager *telemetry.OutputManager
	plotter       *telemetry.FillPlotter
	statsCallback func([]telemetry.WindowStats)
	logStats      bool
	plots         bool

	tick    int32
	elapsed float32
	runTick int32
}

// NewGameWithOptions creates a game with the given options.
func NewGameWithOptions(opts Options) (*Game, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	if opts.Experience != "" && opts.Experience != config.ModeNormal && opts.Experience != config.ModeOptimisation {
		return nil, fmt.Errorf("unknown experience %q", opts.Experience)
	}
	experience := cfg.Experience.Mode
	if opts.Experience != "" {
		experience = opts.Experience
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	sessionID := telemetry.NewSessionID()

	specs := make([]UnitSpec, len(cfg.Units))
	names := make([]string, len(cfg.Units))
	colors := make([]color.Color, len(cfg.Units))
	for i, u := range cfg.Units {
		specs[i] = UnitSpec{
			Name:       u.Name,
			WorldX:     float32(u.WorldX),
			StartDelay: float32(u.StartDelay),
			Layers:     u.Layers,
		}
		names[i] = u.Name
		pal := cfg.Palette(config.ModeOptimisation, i, 1)
		colors[i] = pal[0]
	}

	plant := NewPlant(specs, cfg.Sim.ParticlesPerLayer, rng)

	om, err := telemetry.NewOutputManager(opts.OutputDir, sessionID)
	if err != nil {
		return nil, err
	}
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	g := &Game{
		cfg:           cfg,
		plant:         plant,
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Derived.DT32, len(specs), sessionID),
		profiler:      telemetry.NewTickProfiler(cfg.Telemetry.PerfWindow, names),
		outputManager: om,
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
		plots:         opts.Plots || cfg.Telemetry.Plots,
	}
	if g.plots {
		g.plotter = telemetry.NewFillPlotter(names, colors)
	}

	g.controller = NewController(cfg, rng, plant, experience)
	g.controller.OnEvent = g.onControlEvent
	if opts.FlowSpeed > 0 {
		g.controller.SetFlowSpeed(opts.FlowSpeed)
	}

	plant.SetPhaseTimer(g.profiler)
	plant.SetCallbacks(Callbacks{
		OnFill:      g.onFill,
		OnMilestone: g.onMilestone,
		OnCaptures:  g.collector.RecordCaptures,
	})

	if opts.AutoStart {
		g.controller.StartDischarge()
	}

	slog.Info("game created",
		"session", sessionID,
		"seed", opts.Seed,
		"units", len(specs),
		"particles_per_layer", cfg.Sim.ParticlesPerLayer,
		"experience", g.controller.Experience(),
	)
	return g, nil
}

// Update advances the simulation by the frame time dt.
func (g *Game) Update(dt float32) {
	g.step(dt)
	g.profiler.RecordFrame()
}

// UpdateHeadless advances the simulation by one fixed tick.
func (g *Game) UpdateHeadless() {
	g.step(g.cfg.Derived.DT32)
}

func (g *Game) step(dt float32) {
	g.profiler.StartTick()

	g.elapsed += dt
	g.plant.Tick(g.elapsed, dt, g.controller.Inputs())

	g.profiler.StartPhase(telemetry.PhaseController)
	g.controller.CheckAutoStop(g.plant.Progress())

	g.profiler.StartPhase(telemetry.PhaseTelemetry)
	g.tick++
	g.flushTelemetry()

	g.profiler.EndTick()
}

// flushTelemetry writes one stats row per unit when the window is full.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.tick) {
		return
	}

	units := make([]telemetry.UnitSample, g.plant.UnitCount())
	for i, u := range g.plant.Units() {
		res := g.plant.Result(i)
		units[i] = telemetry.UnitSample{
			Unit:       i,
			Name:       u.Unit.Name,
			Total:      res.Total,
			Captured:   res.Captured,
			Discharged: res.Discharged,
			Target:     u.Progress.Target,
			Phases:     res.Phases,
			Lots:       g.plant.LotsCaptured(i),
		}
	}

	in := g.controller.Inputs()
	stats := g.collector.Flush(g.tick, telemetry.WindowContext{
		RunID:     in.RunID,
		Mode:      g.controller.Experience(),
		FlowSpeed: in.FlowSpeed,
	}, units, g.plant.Bed().Heights())
	perfStats := g.profiler.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		for _, s := range stats {
			s.LogStats()
		}
		perfStats.LogStats()
	}

	if err := g.outputManager.WriteTelemetry(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}
	if err := g.outputManager.WritePerf(perfStats, g.tick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

func (g *Game) onFill(unit int, ratio float32) {
	if g.plotter != nil {
		g.plotter.Sample(unit, float64(g.tick-g.runTick)*float64(g.cfg.Derived.DT32), float64(ratio))
	}
}

func (g *Game) onMilestone(m systems.Milestone) {
	g.collector.RecordMilestone(m.Unit)

	res := g.plant.Result(m.Unit)
	e := telemetry.MilestoneEvent{
		SessionID: g.collector.SessionID(),
		Type:      telemetry.EventMilestone,
		RunID:     g.controller.Inputs().RunID,
		Tick:      g.tick,
		SimTime:   float64(g.elapsed),
		Unit:      m.Unit,
		Index:     m.Index,
		Threshold: float64(m.Threshold),
		Percent:   float64(m.Percent),
	}
	if m.Unit < len(g.cfg.Units) {
		e.UnitName = g.cfg.Units[m.Unit].Name
	}
	if res.Total > 0 {
		e.FillRatio = float64(res.Captured) / float64(res.Total)
	}
	e.Log()

	if err := g.outputManager.WriteMilestone(e); err != nil {
		slog.Error("failed to write milestone", "error", err)
	}
}

func (g *Game) onControlEvent(t telemetry.EventType) {
	in := g.controller.Inputs()
	if t == telemetry.EventRunStart || t == telemetry.EventReset {
		g.runTick = g.tick
		g.collector.Restart(g.tick)
		if g.plotter != nil {
			g.plotter.Reset()
			for i, target := range g.controller.Targets() {
				g.plotter.SetTarget(i, float64(target))
			}
		}
	}

	e := telemetry.ControlEvent{
		SessionID: g.collector.SessionID(),
		Type:      t,
		RunID:     in.RunID,
		Tick:      g.tick,
		SimTime:   float64(g.elapsed),
		Mode:      g.controller.Experience(),
		FlowSpeed: float64(in.FlowSpeed),
	}
	if err := g.outputManager.WriteEvent(e); err != nil {
		slog.Error("failed to write event", "error", err)
	}
}

// Unload writes end-of-session artefacts and closes output files.
func (g *Game) Unload() error {
	if g.plots && g.outputManager != nil {
		m := systems.DefaultContainerMapper()
		if err := g.plotter.Save(g.outputManager.Path("fill.png")); err != nil {
			slog.Error("failed to save fill plot", "error", err)
		}
		sub := fmt.Sprintf("run %d, tick %d", g.controller.Inputs().RunID, g.tick)
		if err := telemetry.SaveBedHeatmap(g.outputManager.Path("bed.html"), g.plant.Bed().Snapshot(), m.W, m.H, sub); err != nil {
			slog.Error("failed to save bed heatmap", "error", err)
		}
		slog.Info("plots written", "dir", g.outputManager.Dir())
	}
	return g.outputManager.Close()
}

// Controller returns the run controller.
func (g *Game) Controller() *Controller { return g.controller }

// Plant returns the simulated plant.
func (g *Game) Plant() *Plant { return g.plant }

// Config returns the configuration the game was built with.
func (g *Game) Config() *config.Config { return g.cfg }

// PerfStats returns the rolling performance stats.
func (g *Game) PerfStats() telemetry.PerfStats { return g.profiler.Stats() }

// Tick returns the number of ticks simulated.
func (g *Game) Tick() int32 { return g.tick }

// Elapsed returns simulated seconds since start.
func (g *Game) Elapsed() float32 { return g.elapsed }
