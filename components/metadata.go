package components

import "fmt"

// FieldDescriptor describes a progress field for HUD display.
type FieldDescriptor struct {
	ID     string  // Unique identifier
	Label  string  // Display name
	Format string  // Printf format (e.g., "%.2f")
	Max    float32 // Bar maximum
	IsBar  bool    // True to render as progress bar
}

// ProgressFields lists the HUD rows shown per unit.
func ProgressFields() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "fill", Label: "Fill", Format: "%.1f%%", Max: 100, IsBar: true},
		{ID: "target", Label: "Target", Format: "%.1f%%", Max: 100},
		{ID: "discharged", Label: "Discharged", Format: "%d"},
	}
}

// Value returns the display value of field id for p.
func (p Progress) Value(id string) (float32, string) {
	switch id {
	case "fill":
		v := p.FillRatio * 100
		return v, fmt.Sprintf("%.1f%%", v)
	case "target":
		v := p.Target * 100
		return v, fmt.Sprintf("%.1f%%", v)
	case "discharged":
		return float32(p.Discharged), fmt.Sprintf("%d", p.Discharged)
	}
	return 0, ""
}
