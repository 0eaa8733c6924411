package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spatial-go/geoos/planar"
	"github.com/spatial-go/geoos/space"
)

// Geometry contract for the trail/territory engine. Every operation here
// takes possibly-degenerate client-driven input and either returns valid
// simple geometry or an error; stored geometry is never mutated on failure.
// The heavy lifting (buffer, union, simplicity, intersection) is delegated
// to the geoos planar engine.

const (
	// trailHalfWidthDeg is the corridor half-width used when banking a
	// trail, in degrees (~5.5m at the equator)
	trailHalfWidthDeg = 0.00005

	// bufferQuadSegments controls the roundness of buffer joins and caps
	bufferQuadSegments = 8
)

var geoEngine = planar.NormalStrategy()

func lineStringOf(points []LatLng) space.LineString {
	ls := make(space.LineString, 0, len(points))
	for _, p := range points {
		ls = append(ls, []float64{p.Lng, p.Lat})
	}
	return ls
}

// dedupePoints drops consecutive duplicates; geometry constructors choke
// on zero-length segments (the trail seed is a deliberate duplicate pair)
func dedupePoints(points []LatLng) []LatLng {
	out := make([]LatLng, 0, len(points))
	for _, p := range points {
		if len(out) > 0 && samePoint(out[len(out)-1], p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// trailCorridor buffers a trail polyline into a corridor polygon with
// round joins and caps.
// Pre: at least 2 points after deduplication. Post: non-empty polygonal
// geometry suitable for union into territory.
func trailCorridor(points []LatLng) (space.Geometry, error) {
	pts := dedupePoints(points)
	if len(pts) < 2 {
		return nil, fmt.Errorf("corridor needs at least 2 distinct points, have %d", len(pts))
	}
	buf := geoEngine.Buffer(lineStringOf(pts), trailHalfWidthDeg, bufferQuadSegments)
	if buf == nil || buf.IsEmpty() {
		return nil, fmt.Errorf("trail buffer produced empty geometry")
	}
	return buf, nil
}

// unionTerritory merges newly captured geometry into a player's existing
// territory (existing may be nil) and recomputes the total area.
// Post: a valid multipolygon whose area is >= the existing area.
func unionTerritory(existing space.Geometry, add space.Geometry) (space.MultiPolygon, float64, error) {
	merged := add
	if existing != nil && !existing.IsEmpty() {
		var err error
		merged, err = geoEngine.Union(existing, add)
		if err != nil {
			return nil, 0, fmt.Errorf("territory union: %w", err)
		}
	}
	mp, err := toMultiPolygon(merged)
	if err != nil {
		return nil, 0, err
	}
	area, err := territoryAreaM2(mp)
	if err != nil {
		return nil, 0, err
	}
	return mp, area, nil
}

// toMultiPolygon normalizes a union/buffer result to a multipolygon,
// discarding any lower-dimensional fragments a collection may carry
func toMultiPolygon(g space.Geometry) (space.MultiPolygon, error) {
	switch v := g.(type) {
	case space.Polygon:
		return space.MultiPolygon{v}, nil
	case space.MultiPolygon:
		return v, nil
	case space.Collection:
		var mp space.MultiPolygon
		for _, member := range v {
			sub, err := toMultiPolygon(member)
			if err != nil {
				continue
			}
			mp = append(mp, sub...)
		}
		if len(mp) == 0 {
			return nil, fmt.Errorf("collection holds no polygonal geometry")
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("expected polygonal geometry, got %T", g)
	}
}

// territoryAreaM2 converts the planar area of a multipolygon from square
// degrees to square meters at the geometry's latitude
func territoryAreaM2(mp space.MultiPolygon) (float64, error) {
	areaDeg, err := geoEngine.Area(mp)
	if err != nil {
		return 0, fmt.Errorf("territory area: %w", err)
	}
	if len(mp) == 0 || len(mp[0]) == 0 || len(mp[0][0]) == 0 {
		return 0, fmt.Errorf("territory has no coordinates")
	}
	lat := mp[0][0][0][1]
	metersPerDegLat := 110574.0
	metersPerDegLng := 111320.0 * math.Cos(lat*math.Pi/180)
	return math.Abs(areaDeg) * metersPerDegLat * metersPerDegLng, nil
}

// trailIsSimple reports OGC simplicity of the trail polyline. A trail
// with fewer than 3 distinct points is trivially simple.
func trailIsSimple(points []LatLng) (bool, error) {
	pts := dedupePoints(points)
	if len(pts) < 3 {
		return true, nil
	}
	simple, err := geoEngine.IsSimple(lineStringOf(pts))
	if err != nil {
		return false, fmt.Errorf("simplicity test: %w", err)
	}
	return simple, nil
}

// trailIsClosed reports whether the trail returned exactly to its start.
// Checked separately from simplicity: a closed ring is simple by the OGC
// definition, so IsSimple alone would miss an exact loop closure.
func trailIsClosed(points []LatLng) bool {
	pts := dedupePoints(points)
	if len(pts) < 4 {
		return false
	}
	return samePoint(pts[0], pts[len(pts)-1])
}

// captureFaces builds the polygon face(s) of the loop(s) the trail just
// closed. For an exactly closed trail the whole ring is the face; for a
// self-intersecting one the final segment is split at each crossing with
// an earlier segment and one face is built per crossing.
// Pre: trailIsClosed(points) or !trailIsSimple(points).
// Post: non-empty multipolygon of valid faces with positive area.
func captureFaces(points []LatLng) (space.MultiPolygon, error) {
	pts := dedupePoints(points)
	if len(pts) < 3 {
		return nil, fmt.Errorf("capture needs at least 3 distinct points, have %d", len(pts))
	}

	if samePoint(pts[0], pts[len(pts)-1]) {
		face, err := faceFromRing(pts[:len(pts)-1])
		if err != nil {
			return nil, err
		}
		return space.MultiPolygon{face}, nil
	}

	n := len(pts)
	last := lineStringOf([]LatLng{pts[n-2], pts[n-1]})
	var faces space.MultiPolygon
	// skip i == n-3: that segment shares an endpoint with the last one
	for i := 0; i < n-3; i++ {
		seg := lineStringOf([]LatLng{pts[i], pts[i+1]})
		hit, err := geoEngine.Intersects(seg, last)
		if err != nil || !hit {
			continue
		}
		cross, err := geoEngine.Intersection(seg, last)
		if err != nil {
			continue
		}
		x, ok := firstCoordinate(cross)
		if !ok {
			continue
		}
		ring := []LatLng{x}
		ring = append(ring, pts[i+1:n-1]...)
		face, err := faceFromRing(dedupePoints(ring))
		if err != nil {
			continue
		}
		faces = append(faces, face)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no valid loop face found in %d-point trail", n)
	}
	return faces, nil
}

// faceFromRing closes ring into a polygon and rejects degenerate faces
func faceFromRing(ring []LatLng) (space.Polygon, error) {
	if len(ring) < 3 {
		return nil, fmt.Errorf("ring needs at least 3 distinct points, have %d", len(ring))
	}
	closed := lineStringOf(ring)
	closed = append(closed, []float64{ring[0].Lng, ring[0].Lat})
	poly := space.Polygon{closed}
	area, err := geoEngine.Area(poly)
	if err != nil {
		return nil, fmt.Errorf("face area: %w", err)
	}
	if math.Abs(area) == 0 {
		return nil, fmt.Errorf("loop face has zero area")
	}
	return poly, nil
}

// firstCoordinate extracts a representative point from an intersection
// result, whatever shape the engine returned it in
func firstCoordinate(g space.Geometry) (LatLng, bool) {
	switch v := g.(type) {
	case space.Point:
		if len(v) >= 2 {
			return LatLng{Lat: v[1], Lng: v[0]}, true
		}
	case space.MultiPoint:
		if len(v) > 0 && len(v[0]) >= 2 {
			return LatLng{Lat: v[0][1], Lng: v[0][0]}, true
		}
	case space.LineString:
		if len(v) > 0 && len(v[0]) >= 2 {
			return LatLng{Lat: v[0][1], Lng: v[0][0]}, true
		}
	case space.Collection:
		for _, member := range v {
			if p, ok := firstCoordinate(member); ok {
				return p, true
			}
		}
	}
	return LatLng{}, false
}

// territoryContains reports whether a point lies inside owned territory
func territoryContains(mp space.MultiPolygon, p LatLng) (bool, error) {
	if len(mp) == 0 {
		return false, nil
	}
	inside, err := geoEngine.Contains(mp, space.Point{p.Lng, p.Lat})
	if err != nil {
		return false, fmt.Errorf("territory containment: %w", err)
	}
	return inside, nil
}

// trailsCross reports whether segment a->b crosses another trail
func trailsCross(a, b LatLng, other []LatLng) (bool, error) {
	otherPts := dedupePoints(other)
	if len(otherPts) < 2 || samePoint(a, b) {
		return false, nil
	}
	hit, err := geoEngine.Intersects(lineStringOf([]LatLng{a, b}), lineStringOf(otherPts))
	if err != nil {
		return false, fmt.Errorf("trail crossing test: %w", err)
	}
	return hit, nil
}

// encodeTerritory serializes a multipolygon for the spatial store
func encodeTerritory(mp space.MultiPolygon) ([]byte, error) {
	return json.Marshal(mp)
}

// decodeTerritory deserializes a stored multipolygon
func decodeTerritory(data []byte) (space.MultiPolygon, error) {
	var mp space.MultiPolygon
	if err := json.Unmarshal(data, &mp); err != nil {
		return nil, fmt.Errorf("decode territory: %w", err)
	}
	return mp, nil
}

// territoryRings returns the exterior ring of each polygon as lat/lng
// points for broadcast payloads
func territoryRings(mp space.MultiPolygon) [][]LatLng {
	rings := make([][]LatLng, 0, len(mp))
	for _, poly := range mp {
		if len(poly) == 0 {
			continue
		}
		ring := make([]LatLng, 0, len(poly[0]))
		for _, c := range poly[0] {
			if len(c) >= 2 {
				ring = append(ring, LatLng{Lat: c[1], Lng: c[0]})
			}
		}
		rings = append(rings, ring)
	}
	return rings
}
