package model

import "math"

// Location is a point in a named world, in blocks.
type Location struct {
	World   string
	X, Y, Z float64
}

// Add returns l offset by the given deltas.
func (l Location) Add(dx, dy, dz float64) Location {
	return Location{World: l.World, X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}

// DistanceTo returns the straight-line distance between two points. Points in
// different worlds are infinitely far apart.
func (l Location) DistanceTo(other Location) float64 {
	if l.World != other.World {
		return math.Inf(1)
	}
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Toward returns the point reached by moving at most step blocks from l in the
// direction of target. It returns target when it is within step.
func (l Location) Toward(target Location, step float64) Location {
	d := l.DistanceTo(target)
	if math.IsInf(d, 1) || d <= step || d == 0 {
		if math.IsInf(d, 1) {
			return l
		}
		return target
	}
	f := step / d
	return Location{
		World: l.World,
		X:     l.X + (target.X-l.X)*f,
		Y:     l.Y + (target.Y-l.Y)*f,
		Z:     l.Z + (target.Z-l.Z)*f,
	}
}
