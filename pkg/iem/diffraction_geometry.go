package iem

import (
	"math"

	"github.com/rtacoustics/raengine/internal/geomath"
	"github.com/rtacoustics/raengine/pkg/room"
	"github.com/rtacoustics/raengine/pkg/vsource"
)

// edgeLocal resolves a point's radial distance, axial position, and wedge
// angle relative to an edge's local cylindrical frame. The angular origin is wall A's face,
// sweeping towards wall B's face through the exterior wedge.
func edgeLocal(e *room.Edge, p geomath.Vec3) (r, z, theta float64) {
	rel := p.Sub(e.Base)
	z = rel.Dot(e.Tangent)
	perp := rel.Sub(e.Tangent.Scale(z))
	r = perp.Length()
	if r < 1e-9 {
		return r, z, 0
	}

	dirA := e.Tangent.Cross(e.NormalA).Normalized()
	e2 := e.Tangent.Cross(dirA).Normalized()
	theta = math.Atan2(perp.Dot(e2), perp.Dot(dirA))
	if theta < 0 {
		theta += 2 * math.Pi
	}
	return r, z, theta
}

// BuildDiffractionGeometry computes the full path geometry for source S,
// listener L, and edge e.
func BuildDiffractionGeometry(edgeID uint32, e *room.Edge, s, l geomath.Vec3) vsource.DiffractionGeometry {
	rs, zs, thetaS := edgeLocal(e, s)
	rl, zl, thetaL := edgeLocal(e, l)

	var zApex float64
	if rs+rl > 1e-9 {
		zApex = (zs*rl + zl*rs) / (rs + rl)
	} else {
		zApex = (zs + zl) / 2
	}

	ds := math.Hypot(rs, zApex-zs)
	dl := math.Hypot(rl, zApex-zl)

	phi := math.Atan2(rs, zApex-zs)
	bisector := 0.5 * (thetaS - thetaL)
	deviation := thetaS + thetaL

	validApex := zApex >= -1e-9 && zApex <= e.Length+1e-9
	validThetaS := thetaS >= -1e-9 && thetaS <= e.WedgeAngle+1e-9
	validThetaL := thetaL >= -1e-9 && thetaL <= e.WedgeAngle+1e-9

	return vsource.DiffractionGeometry{
		EdgeID:       edgeID,
		ThetaWedge:   e.WedgeAngle,
		ZWidth:       e.Length,
		RS:           rs,
		RL:           rl,
		ZS:           zs,
		ZL:           zl,
		ThetaS:       thetaS,
		ThetaL:       thetaL,
		DS:           ds,
		DL:           dl,
		ZApex:        zApex,
		PhiApex:      phi,
		Bisector:     bisector,
		Deviation:    deviation,
		Shadow:       deviation > math.Pi,
		ValidApex:    validApex,
		ValidThetaS:  validThetaS,
		ValidThetaL:  validThetaL,
	}
}
