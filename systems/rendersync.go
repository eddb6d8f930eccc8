package systems

import "github.com/pthm-cable/silodrop/components"

// InstanceSink receives per-layer instance positions once per frame.
// The positions slice is reused between frames; sinks must copy what they keep.
type InstanceSink interface {
	UpdateInstances(layer int, positions []components.Vec3)
}

// RenderSync copies particle positions into per-layer buffers in world space.
type RenderSync struct {
	sink    InstanceSink
	buffers [][]components.Vec3
}

// NewRenderSync creates a sync writing to sink. A nil sink makes Sync a no-op.
func NewRenderSync(sink InstanceSink) *RenderSync {
	return &RenderSync{sink: sink}
}

// Sync writes each layer's positions, offset into world space, to the sink.
// Instance order matches creation order within the layer.
func (r *RenderSync) Sync(s *ParticleStore, offset components.Vec3) {
	if r.sink == nil {
		return
	}
	for len(r.buffers) < s.LayerCount() {
		r.buffers = append(r.buffers, nil)
	}
	for layer := 0; layer < s.LayerCount(); layer++ {
		ps := s.LayerSlice(layer)
		buf := r.buffers[layer][:0]
		for i := range ps {
			pos := ps[i].Pos
			if ps[i].Phase != PhaseRetired {
				pos = pos.Add(offset)
			}
			buf = append(buf, pos)
		}
		r.buffers[layer] = buf
		r.sink.UpdateInstances(layer, buf)
	}
}

// Buffer returns the last synced positions of a layer.
func (r *RenderSync) Buffer(layer int) []components.Vec3 {
	if layer < 0 || layer >= len(r.buffers) {
		return nil
	}
	return r.buffers[layer]
}
