package ui

import (
	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/config"
)

// ControlsState is what the panel shows; the caller fills it every frame.
type ControlsState struct {
	Discharging bool
	Experience  string
	FlowSpeed   float32
	MinFlow     float32
	MaxFlow     float32
}

// ControlsAction is what the user asked for this frame. Zero means nothing.
type ControlsAction struct {
	Start, Stop, Reset bool
	Experience         string  // set when a mode button was pressed
	FlowSpeed          float32 // set when the slider moved
}

// ControlsPanel renders run controls with raygui buttons and a flow slider.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// SetPosition moves the panel.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x, c.y = x, y
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Draw renders the panel and returns the user's actions.
func (c *ControlsPanel) Draw(s ControlsState) ControlsAction {
	var act ControlsAction
	if !c.visible {
		return act
	}

	r := c.renderer
	pad := float32(r.Theme.Padding)
	x := float32(c.x) + pad
	w := float32(c.width) - 2*pad
	half := (w - pad) / 2

	r.DrawPanel(c.x, c.y, c.width, 178)
	y := float32(r.DrawSectionHeader(int32(x), c.y+r.Theme.Padding, "Discharge"))

	startLabel := "Start"
	if s.Discharging {
		startLabel = "Stop"
	}
	if gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 26}, startLabel) {
		if s.Discharging {
			act.Stop = true
		} else {
			act.Start = true
		}
	}
	if gui.Button(rl.Rectangle{X: x + half + pad, Y: y, Width: half, Height: 26}, "Reset") {
		act.Reset = true
	}
	y += 36

	modes := []struct{ id, label string }{
		{config.ModeNormal, "Normal"},
		{config.ModeOptimisation, "Optimisation"},
	}
	for i, m := range modes {
		label := m.label
		if s.Experience == m.id {
			label = "> " + label
		}
		if gui.Button(rl.Rectangle{X: x + float32(i)*(half+pad), Y: y, Width: half, Height: 26}, label) && s.Experience != m.id {
			act.Experience = m.id
		}
	}
	y += 40

	rl.DrawText("Flow speed", int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(formatFlow(s.FlowSpeed), int32(x+w-40), int32(y), r.Theme.FontSize, r.Theme.ValueColor)
	y += 18
	flow := gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 18}, "", "", s.FlowSpeed, s.MinFlow, s.MaxFlow)
	if flow != s.FlowSpeed {
		act.FlowSpeed = flow
	}

	return act
}
