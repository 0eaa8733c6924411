package main

import (
	"math"
	"testing"
)

const coordEps = 1e-9

func latLngClose(a, b LatLng) bool {
	return math.Abs(a.Lat-b.Lat) < coordEps && math.Abs(a.Lng-b.Lng) < coordEps
}

func TestSectorOffsetRange(t *testing.T) {
	points := []LatLng{
		{Lat: 0, Lng: 0},
		{Lat: 12.9716, Lng: 77.5946},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 0.0089, Lng: -0.0001},
	}
	for _, p := range points {
		off := SectorOffset(p)
		if off.Lat < 0 || off.Lat >= SectorSizeDeg || off.Lng < 0 || off.Lng >= SectorSizeDeg {
			t.Errorf("offset of %v out of [0, S): %v", p, off)
		}
	}
}

func TestProjectIdentitySameSector(t *testing.T) {
	observer := LatLng{Lat: 0.001, Lng: 0.002}
	target := LatLng{Lat: 0.004, Lng: 0.0071}

	got := Project(observer, target)
	if got != target {
		t.Errorf("same-sector projection should be identity, got %v want %v", got, target)
	}
}

func TestProjectObserverShiftOneSector(t *testing.T) {
	observer := LatLng{Lat: 0.001, Lng: 0.001}
	target := LatLng{Lat: 50.0005, Lng: 60.0007}

	base := Project(observer, target)
	shifted := Project(LatLng{Lat: observer.Lat + SectorSizeDeg, Lng: observer.Lng}, target)

	if math.Abs((shifted.Lat-base.Lat)-SectorSizeDeg) > coordEps {
		t.Errorf("lat shift = %v, want one sector (%v)", shifted.Lat-base.Lat, SectorSizeDeg)
	}
	if math.Abs(shifted.Lng-base.Lng) > coordEps {
		t.Errorf("lng should not shift, moved by %v", shifted.Lng-base.Lng)
	}
}

func TestProjectPreservesRelativePosition(t *testing.T) {
	// Two players far apart: each sees the other at the other's own
	// in-sector offset, rendered inside their own sector.
	p1 := LatLng{Lat: 0, Lng: 0}
	p2 := LatLng{Lat: 100.0027, Lng: 50.0036}

	seen1 := Project(p1, p2)
	seen2 := Project(p2, p1)

	if !latLngClose(SectorOffset(seen1), SectorOffset(p2)) {
		t.Errorf("p2 offset not preserved: %v vs %v", SectorOffset(seen1), SectorOffset(p2))
	}
	if !latLngClose(SectorOffset(seen2), SectorOffset(p1)) {
		t.Errorf("p1 offset not preserved: %v vs %v", SectorOffset(seen2), SectorOffset(p1))
	}

	// and the projection lands inside each observer's own sector
	if !latLngClose(SectorBase(seen1), SectorBase(p1)) {
		t.Errorf("projection escaped observer sector: %v vs %v", SectorBase(seen1), SectorBase(p1))
	}
	if !latLngClose(SectorBase(seen2), SectorBase(p2)) {
		t.Errorf("projection escaped observer sector: %v vs %v", SectorBase(seen2), SectorBase(p2))
	}
}

func TestProjectNegativeCoordinates(t *testing.T) {
	observer := LatLng{Lat: -0.001, Lng: -0.001}
	target := LatLng{Lat: -33.8688, Lng: 151.2093}

	got := Project(observer, target)
	if !latLngClose(SectorBase(got), SectorBase(observer)) {
		t.Errorf("projection not in observer sector: %v", got)
	}
	off := SectorOffset(got)
	if off.Lat < 0 || off.Lng < 0 {
		t.Errorf("offset went negative: %v", off)
	}
}
