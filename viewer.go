package main

import (
	"image/color"
	"slices"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/camera"
	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/config"
	"github.com/pthm-cable/silodrop/game"
	"github.com/pthm-cable/silodrop/renderer"
	"github.com/pthm-cable/silodrop/telemetry"
	"github.com/pthm-cable/silodrop/ui"
)

const keyLegend = "[Space] start/stop  [Backspace] reset  [1/2] mode  [Tab] controls  [P] perf  [RMB] orbit  [Wheel] zoom  [WASD] pan  [R] camera"

// viewer draws a Game with raylib and maps user input onto its controller.
type viewer struct {
	g       *game.Game
	orbit   *camera.Orbit
	screenW int32
	screenH int32

	background *renderer.BackgroundRenderer
	scenery    *renderer.SceneryRenderer
	particles  []*renderer.ParticleRenderer
	palettes   [][]color.RGBA

	hud       *ui.HUD
	units     *ui.UnitPanel
	perf      *ui.PerfPanel
	controls  *ui.ControlsPanel
	showPerf  bool
	perfNames []string
}

func newViewer(g *game.Game) *viewer {
	w, h := int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())
	plant := g.Plant()
	views := plant.Units()

	siloXs := make([]float32, len(views))
	for i, u := range views {
		siloXs[i] = u.Placement.WorldX
	}
	center := (siloXs[0] + 9) / 2

	v := &viewer{
		g:          g,
		orbit:      camera.New(components.Vec3{X: center, Y: -1.2, Z: 0}, 0.35, 0.38, 17),
		screenW:    w,
		screenH:    h,
		background: renderer.NewBackgroundRenderer(w, h, 52, 62, 78),
		scenery:    renderer.NewSceneryRenderer(siloXs),
		particles:  make([]*renderer.ParticleRenderer, len(views)),
		palettes:   make([][]color.RGBA, len(views)),
		hud:        ui.NewHUD(),
		units:      ui.NewUnitPanel(w-290, 10, 280),
		perf:       ui.NewPerfPanel(10, 90),
		controls:   ui.NewControlsPanel(10, h-220, 260),
		perfNames:  telemetry.PhaseNames(),
	}
	for i, u := range views {
		v.particles[i] = renderer.NewParticleRenderer(u.Palette.Colors)
		v.palettes[i] = u.Palette.Colors
		plant.SetSink(i, v.particles[i])
	}
	return v
}

// HandleInput applies keyboard and mouse input. Call once per frame
// before Game.Update.
func (v *viewer) HandleInput() {
	ctl := v.g.Controller()

	if rl.IsWindowResized() {
		v.screenW, v.screenH = int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())
		v.background.Resize(v.screenW, v.screenH)
		v.units.SetPosition(v.screenW-290, 10)
		v.controls.SetPosition(10, v.screenH-220)
	}

	switch {
	case rl.IsKeyPressed(rl.KeySpace):
		if ctl.Discharging() {
			ctl.StopDischarge()
		} else {
			ctl.StartDischarge()
		}
	case rl.IsKeyPressed(rl.KeyBackspace):
		ctl.Reset()
	case rl.IsKeyPressed(rl.KeyOne):
		ctl.SetExperience(config.ModeNormal)
	case rl.IsKeyPressed(rl.KeyTwo):
		ctl.SetExperience(config.ModeOptimisation)
	case rl.IsKeyPressed(rl.KeyTab):
		v.controls.Toggle()
	case rl.IsKeyPressed(rl.KeyP):
		v.showPerf = !v.showPerf
	case rl.IsKeyPressed(rl.KeyR):
		v.orbit.Reset()
	}

	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		v.orbit.Rotate(-d.X*0.006, d.Y*0.006)
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		v.orbit.ZoomBy(1 - 0.1*wheel)
	}

	const panSpeed = 6
	dt := rl.GetFrameTime()
	var dx, dz float32
	if rl.IsKeyDown(rl.KeyD) {
		dx += panSpeed * dt
	}
	if rl.IsKeyDown(rl.KeyA) {
		dx -= panSpeed * dt
	}
	if rl.IsKeyDown(rl.KeyW) {
		dz += panSpeed * dt
	}
	if rl.IsKeyDown(rl.KeyS) {
		dz -= panSpeed * dt
	}
	if dx != 0 || dz != 0 {
		v.orbit.Pan(dx, dz)
	}
}

// syncPalettes recolours particle renderers after an experience change.
func (v *viewer) syncPalettes(views []game.UnitView) {
	for i, u := range views {
		if slices.Equal(v.palettes[i], u.Palette.Colors) {
			continue
		}
		v.particles[i].SetColors(u.Palette.Colors)
		v.palettes[i] = u.Palette.Colors
	}
}

func (v *viewer) camera3D() rl.Camera3D {
	pos := v.orbit.Position()
	t := v.orbit.Target
	return rl.Camera3D{
		Position:   rl.Vector3{X: pos.X, Y: pos.Y, Z: pos.Z},
		Target:     rl.Vector3{X: t.X, Y: t.Y, Z: t.Z},
		Up:         rl.Vector3{X: 0, Y: 1, Z: 0},
		Fovy:       45,
		Projection: rl.CameraPerspective,
	}
}

// Draw renders one frame.
func (v *viewer) Draw() {
	ctl := v.g.Controller()
	views := v.g.Plant().Units()
	v.syncPalettes(views)

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	v.background.Draw()

	rl.BeginMode3D(v.camera3D())
	v.scenery.Draw(v.g.Plant().Bed())
	for _, p := range v.particles {
		p.Draw()
	}
	rl.EndMode3D()

	v.hud.Draw(ui.HUDData{
		Title:       "Silo Drop",
		Experience:  ctl.Experience(),
		Discharging: ctl.Discharging(),
		Tick:        v.g.Tick(),
		SimTime:     v.g.Elapsed(),
		FPS:         rl.GetFPS(),
	})

	cards := make([]ui.UnitCard, len(views))
	for i, u := range views {
		cols := make([]rl.Color, len(u.Palette.Colors))
		for j, c := range u.Palette.Colors {
			cols[j] = ui.RLColor(c)
		}
		cards[i] = ui.UnitCard{
			Name:     u.Unit.Name,
			Progress: u.Progress,
			Colors:   cols,
			Lots:     v.g.Plant().LotsCaptured(i),
		}
	}
	v.units.Draw(cards)

	if v.showPerf {
		v.perf.Draw(v.g.PerfStats(), v.perfNames)
	}

	cfg := v.g.Config()
	act := v.controls.Draw(ui.ControlsState{
		Discharging: ctl.Discharging(),
		Experience:  ctl.Experience(),
		FlowSpeed:   ctl.Inputs().FlowSpeed,
		MinFlow:     float32(cfg.Sim.MinFlowSpeed),
		MaxFlow:     float32(cfg.Sim.MaxFlowSpeed),
	})
	v.hud.DrawControls(v.screenH, keyLegend)
	rl.EndDrawing()

	v.apply(act)
}

// apply forwards panel actions to the controller.
func (v *viewer) apply(act ui.ControlsAction) {
	ctl := v.g.Controller()
	switch {
	case act.Start:
		ctl.StartDischarge()
	case act.Stop:
		ctl.StopDischarge()
	case act.Reset:
		ctl.Reset()
	}
	if act.Experience != "" {
		ctl.SetExperience(act.Experience)
	}
	if act.FlowSpeed > 0 {
		ctl.SetFlowSpeed(act.FlowSpeed)
	}
}

// Unload releases GPU resources.
func (v *viewer) Unload() {
	for i, p := range v.particles {
		v.g.Plant().SetSink(i, nil)
		p.Unload()
	}
}
