package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title       string
	Experience  string
	Discharging bool
	Tick        int32
	SimTime     float32
	FPS         int32
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)
	rl.DrawText(
		fmt.Sprintf("Mode: %s | Time: %.1fs | Tick: %d | FPS: %d", data.Experience, data.SimTime, data.Tick, data.FPS),
		10, 35, 16, rl.LightGray,
	)

	status := "IDLE"
	if data.Discharging {
		status = "DISCHARGING"
	}
	rl.DrawText(status, 10, 55, 16, rl.Yellow)
}

// DrawControls renders the key legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// UnitCard is the data for one silo's progress card.
type UnitCard struct {
	Name     string
	Progress components.Progress
	Colors   []rl.Color
	Lots     []int // captured per lot, drawn as a blend bar
}

// UnitPanel renders one progress card per silo, stacked vertically.
type UnitPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewUnitPanel creates a unit panel.
func NewUnitPanel(x, y, width int32) *UnitPanel {
	return &UnitPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition moves the panel.
func (u *UnitPanel) SetPosition(x, y int32) {
	u.x, u.y = x, y
}

// Draw renders the cards.
func (u *UnitPanel) Draw(cards []UnitCard) {
	r := u.renderer
	pad := r.Theme.Padding
	cardHeight := r.Theme.LineHeight*6 + pad

	y := u.y
	for _, card := range cards {
		r.DrawPanel(u.x, y, u.width, cardHeight)
		cy := r.DrawSectionHeader(u.x+pad, y+pad/2, card.Name)
		cy = r.DrawProgress(u.x+pad, cy, card.Progress, u.width-2*pad)
		cy = r.DrawSwatches(u.x+pad, cy, "Lots", card.Colors)
		r.DrawBlend(u.x+pad, cy, "Blend", card.Lots, card.Colors, u.width-2*pad)
		y += cardHeight + 6
	}
}

// PerfPanel renders tick phase timings and per-unit integrate cost.
type PerfPanel struct {
	x, y int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats, phases []string) {
	x, y := p.x, p.y

	rl.DrawText("Tick phases", x, y, 16, rl.White)
	y += 20
	rl.DrawText(fmt.Sprintf("Avg tick: %s  p95: %s",
		stats.AvgTickDuration.Round(time.Microsecond), stats.P95TickDuration.Round(time.Microsecond)), x, y, 14, rl.Yellow)
	y += 16
	rl.DrawText(fmt.Sprintf("Stepped: %.0f/tick  %.2fM/s", stats.ActiveParticles, stats.ParticlesPerSecond/1e6), x, y, 12, rl.SkyBlue)
	y += 14

	for _, name := range phases {
		pct := stats.PhasePct[name]
		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 25 {
			color = rl.Orange
		}
		rl.DrawText(
			fmt.Sprintf("%-12s %8s %5.1f%%", name, stats.PhaseAvg[name].Round(time.Microsecond), pct),
			x, y, 12, color,
		)
		y += 14
	}

	for _, u := range stats.Units {
		rl.DrawText(
			fmt.Sprintf("  %-10s %8s %6.0f", u.Name, u.AvgIntegrate.Round(time.Microsecond), u.Active),
			x, y, 12, rl.Gray,
		)
		y += 14
	}
}
