package main

import "math"

// SectorSizeDeg is the fixed edge length of one grid sector.
// 1 degree of latitude is ~111km, so 0.009 degrees is roughly 1km.
const SectorSizeDeg = 0.009

// SectorBase snaps a coordinate to the corner of its containing sector
// (floored per axis).
func SectorBase(p LatLng) LatLng {
	return LatLng{
		Lat: math.Floor(p.Lat/SectorSizeDeg) * SectorSizeDeg,
		Lng: math.Floor(p.Lng/SectorSizeDeg) * SectorSizeDeg,
	}
}

// SectorOffset returns the position of p relative to its sector corner.
// Each component is in [0, SectorSizeDeg).
func SectorOffset(p LatLng) LatLng {
	base := SectorBase(p)
	return LatLng{Lat: p.Lat - base.Lat, Lng: p.Lng - base.Lng}
}

// Project maps a target into the observer's virtual sector: the target
// keeps its relative position within its own sector but is rendered
// inside the observer's. Observers sharing a sector with the target see
// it exactly where it is. The projection jumps when the target crosses a
// grid line while the observer does not; that discontinuity is accepted.
func Project(observer, target LatLng) LatLng {
	base := SectorBase(observer)
	off := SectorOffset(target)
	return LatLng{Lat: base.Lat + off.Lat, Lng: base.Lng + off.Lng}
}
