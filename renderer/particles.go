package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/silodrop/components"
	"github.com/pthm-cable/silodrop/systems"
)

// ParticleSize is the edge length of one rendered grain packet.
const ParticleSize float32 = 0.045

const instancingVS = `#version 330
in vec3 vertexPosition;
in vec3 vertexNormal;
in mat4 instanceTransform;
uniform mat4 mvp;
out vec3 fragNormal;
void main() {
    fragNormal = vertexNormal;
    gl_Position = mvp*instanceTransform*vec4(vertexPosition, 1.0);
}
`

const instancingFS = `#version 330
in vec3 fragNormal;
uniform vec4 colDiffuse;
out vec4 finalColor;
void main() {
    float shade = 0.55 + 0.45*max(dot(normalize(fragNormal), normalize(vec3(0.4, 1.0, 0.6))), 0.0);
    finalColor = vec4(colDiffuse.rgb*shade, colDiffuse.a);
}
`

// ParticleRenderer draws one unit's particles as instanced cubes, one
// material per layer. It implements systems.InstanceSink.
type ParticleRenderer struct {
	mesh       rl.Mesh
	shader     rl.Shader
	materials  []rl.Material
	transforms [][]rl.Matrix
}

// NewParticleRenderer creates a renderer with one colour per layer.
// Must be called after the raylib window is created.
func NewParticleRenderer(colors []color.RGBA) *ParticleRenderer {
	shader := rl.LoadShaderFromMemory(instancingVS, instancingFS)
	shader.UpdateLocation(rl.ShaderLocMatrixMvp, rl.GetShaderLocation(shader, "mvp"))
	shader.UpdateLocation(rl.ShaderLocMatrixModel, rl.GetShaderLocationAttrib(shader, "instanceTransform"))

	r := &ParticleRenderer{
		mesh:   rl.GenMeshCube(ParticleSize, ParticleSize, ParticleSize),
		shader: shader,
	}
	r.SetColors(colors)
	return r
}

// SetColors updates the layer colours, adding materials as needed.
func (r *ParticleRenderer) SetColors(colors []color.RGBA) {
	for len(r.materials) < len(colors) {
		m := rl.LoadMaterialDefault()
		m.Shader = r.shader
		r.materials = append(r.materials, m)
		r.transforms = append(r.transforms, nil)
	}
	for i, c := range colors {
		r.materials[i].GetMap(rl.MapDiffuse).Color = rl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
	}
}

// UpdateInstances stores the translations for one layer.
func (r *ParticleRenderer) UpdateInstances(layer int, positions []components.Vec3) {
	if layer < 0 || layer >= len(r.transforms) {
		return
	}
	buf := r.transforms[layer][:0]
	for _, p := range positions {
		if p.Y <= systems.SentinelY {
			continue
		}
		buf = append(buf, rl.MatrixTranslate(p.X, p.Y, p.Z))
	}
	r.transforms[layer] = buf
}

// Draw renders every layer. Call inside BeginMode3D.
func (r *ParticleRenderer) Draw() {
	for i, m := range r.materials {
		if n := len(r.transforms[i]); n > 0 {
			rl.DrawMeshInstanced(r.mesh, m, r.transforms[i], n)
		}
	}
}

// Unload releases GPU resources.
func (r *ParticleRenderer) Unload() {
	rl.UnloadMesh(&r.mesh)
	rl.UnloadShader(r.shader)
}
