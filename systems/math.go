package systems

import "github.com/chewxy/math32"

// Clamp functions for common value ranges

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampInt clamps an int between min and max.
func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// lerp blends a toward b by t.
func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// Silo radius profiles

// coneRadius interpolates from the outlet radius at the cone bottom to top
// at the cone seam. Above the seam it returns top. Below the cone bottom the
// taper continues, so the throat narrows until OutletExitY.
func coneRadius(y, top float32) float32 {
	if y >= 0 {
		return top
	}
	h := y - ConeBottomY
	return OutletRadius + (h/ConeHeight)*(top-OutletRadius)
}

// wallRadius returns the silo wall radius at height y.
func wallRadius(y float32) float32 {
	return coneRadius(y, SiloRadius)
}

// activeRadius returns the radius of the fast-flowing core at height y.
func activeRadius(y float32) float32 {
	if y >= 0 {
		return ActiveRadiusTop
	}
	h := y - ConeBottomY
	return OutletRadius + (h/ConeHeight)*ActiveRadiusSpread
}

// maxSlope is the rise allowed per unit of run at the angle of repose.
var maxSlope = math32.Tan(AngleOfRepose * math32.Pi / 180)
