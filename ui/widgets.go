package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/components"
)

// Renderer handles all UI drawing with consistent styling.
type Renderer struct {
	Theme Theme
}

// NewRenderer creates a renderer with the default theme.
func NewRenderer() *Renderer {
	return &Renderer{Theme: DefaultTheme()}
}

// DrawPanel draws a panel background with border.
func (r *Renderer) DrawPanel(x, y, width, height int32) {
	rl.DrawRectangle(x, y, width, height, r.Theme.PanelBg)
	rl.DrawRectangleLines(x, y, width, height, r.Theme.PanelBorder)
}

// DrawSectionHeader draws a section header and returns the new Y position.
func (r *Renderer) DrawSectionHeader(x, y int32, title string) int32 {
	rl.DrawText(title, x, y, r.Theme.HeaderFontSize, r.Theme.SectionHeader)
	return y + r.Theme.LineHeight
}

// DrawLabelValue draws a label and value on the same line.
func (r *Renderer) DrawLabelValue(x, y int32, label, value string) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawText(value, x+r.Theme.LabelWidth, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight
}

// DrawBar draws a progress bar of value/full with an optional marker at
// marker/full (negative hides it).
func (r *Renderer) DrawBar(x, y int32, label, text string, value, full, marker float32, width int32) int32 {
	ratio := float32(0)
	if full > 0 {
		ratio = min(max(value/full, 0), 1)
	}

	barX := x + r.Theme.LabelWidth
	barWidth := width - r.Theme.LabelWidth - 50

	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	rl.DrawRectangle(barX, y+2, barWidth, r.Theme.BarHeight, r.Theme.BarBg)

	fill := r.Theme.BarFill
	if marker >= 0 && value >= marker {
		fill = r.Theme.BarFillDone
	}
	rl.DrawRectangle(barX, y+2, int32(float32(barWidth)*ratio), r.Theme.BarHeight, fill)

	if marker >= 0 && full > 0 {
		mx := barX + int32(float32(barWidth)*min(marker/full, 1))
		rl.DrawLine(mx, y, mx, y+4+r.Theme.BarHeight, r.Theme.TargetMarker)
	}

	rl.DrawText(text, barX+barWidth+5, y, r.Theme.FontSize, r.Theme.ValueColor)
	return y + r.Theme.LineHeight + 2
}

// DrawSwatches draws one colour square per layer.
func (r *Renderer) DrawSwatches(x, y int32, label string, colors []rl.Color) int32 {
	const size = 12
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	for i, c := range colors {
		rl.DrawRectangle(x+r.Theme.LabelWidth+int32(i)*(size+4), y+1, size, size, c)
	}
	return y + r.Theme.LineHeight
}

// DrawBlend draws a stacked bar of counts, one segment per colour. An
// empty blend draws an empty track.
func (r *Renderer) DrawBlend(x, y int32, label string, counts []int, colors []rl.Color, width int32) int32 {
	rl.DrawText(label+":", x, y, r.Theme.FontSize, r.Theme.LabelColor)
	barX := x + r.Theme.LabelWidth
	barWidth := width - r.Theme.LabelWidth
	rl.DrawRectangle(barX, y+2, barWidth, r.Theme.BarHeight, r.Theme.BarBg)

	shares := BlendShares(counts)
	segX := barX
	for i, share := range shares {
		w := int32(float32(barWidth) * share)
		if i == len(shares)-1 && share > 0 {
			w = barX + barWidth - segX
		}
		c := r.Theme.BarFill
		if i < len(colors) {
			c = colors[i]
		}
		rl.DrawRectangle(segX, y+2, w, r.Theme.BarHeight, c)
		segX += w
	}
	return y + r.Theme.LineHeight
}

// BlendShares converts counts to fractions of their sum. All zero input
// returns all zero shares.
func BlendShares(counts []int) []float32 {
	out := make([]float32, len(counts))
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return out
	}
	for i, n := range counts {
		out[i] = float32(n) / float32(total)
	}
	return out
}

// DrawProgress renders every progress field of p.
func (r *Renderer) DrawProgress(x, y int32, p components.Progress, width int32) int32 {
	target, _ := p.Value("target")
	for _, fd := range components.ProgressFields() {
		v, text := p.Value(fd.ID)
		if fd.IsBar {
			y = r.DrawBar(x, y, fd.Label, text, v, fd.Max, target, width)
			continue
		}
		y = r.DrawLabelValue(x, y, fd.Label, text)
	}
	return y
}

// formatFlow formats a flow speed for display.
func formatFlow(v float32) string {
	return fmt.Sprintf("%.2fx", v)
}
