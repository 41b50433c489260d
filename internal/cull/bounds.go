package cull

import "math"

// Vec3 is a float64 world-space position.
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) LenSq() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }
func (v Vec3) Len() float64   { return math.Sqrt(v.LenSq()) }

// DistSq returns the squared euclidean distance between a and b.
func DistSq(a, b Vec3) float64 { return a.Sub(b).LenSq() }

// Sphere conservatively encloses an entity's visible and physical extent.
type Sphere struct {
	Center Vec3
	Radius float64
}

func (s Sphere) BoundingSphere() Sphere { return s }

// Box is an axis-aligned box, the shape colliders and renderers report.
type Box struct {
	Min, Max Vec3
}

// BoxAt builds a box of the given half extents around center.
func BoxAt(center, half Vec3) Box {
	return Box{Min: center.Sub(half), Max: center.Add(half)}
}

func (b Box) Center() Vec3 { return b.Min.Add(b.Max).Scale(0.5) }

func (b Box) Translate(d Vec3) Box { return Box{Min: b.Min.Add(d), Max: b.Max.Add(d)} }

// BoundingSphere returns the sphere through the box corners.
func (b Box) BoundingSphere() Sphere {
	return Sphere{Center: b.Center(), Radius: b.Max.Sub(b.Min).Len() * 0.5}
}

// DefaultBoxSize is the edge length of the fallback box used when an entity
// has neither collider nor renderer bounds.
const DefaultBoxSize = 1.0

// BoundsProvider produces a bounding sphere for one entity. It is sampled once
// at registration, and again only for Movers when periodic refresh is enabled.
type BoundsProvider interface {
	BoundingSphere() Sphere
}

// BoundsFunc adapts a plain function to BoundsProvider.
type BoundsFunc func() Sphere

func (f BoundsFunc) BoundingSphere() Sphere { return f() }

// Mover is implemented by providers whose sphere may drift after registration.
// Only providers reporting Moving() == true are re-sampled.
type Mover interface {
	Moving() bool
}

// ResolveBounds returns the first non-nil candidate, or a DefaultBoxSize box
// around at when none is present. Callers order candidates by preference,
// typically collider then renderer.
func ResolveBounds(at Vec3, candidates ...BoundsProvider) BoundsProvider {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		switch v := c.(type) {
		case *Box:
			if v == nil {
				continue
			}
		case *Sphere:
			if v == nil {
				continue
			}
		}
		return c
	}
	h := DefaultBoxSize / 2
	return BoxAt(at, Vec3{h, h, h})
}
