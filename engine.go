package main

import (
	"log"
	"sync"

	"github.com/spatial-go/geoos/space"
)

// Bank reason tags
const (
	BankReasonTerritory = "territory"
	BankReasonSafePoint = "safe_point"
)

// OtherPlayer describes a co-room player for the severing pass
type OtherPlayer struct {
	ID       string
	Shielded bool
}

// Engine is the trail & territory state machine. Every position update
// is evaluated against the spatial store under a per-player lock, so two
// updates for one player are never applied concurrently.
type Engine struct {
	db *DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an Engine over the spatial store
func NewEngine(db *DB) *Engine {
	return &Engine{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockPlayer acquires the per-player serialization lock
func (e *Engine) lockPlayer(playerID string) func() {
	e.mu.Lock()
	l, ok := e.locks[playerID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[playerID] = l
	}
	e.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ProcessPosition applies one position update for a player and returns
// the events it produced, ready to broadcast. others is the set of
// co-room players considered for trail severing.
//
// Transitions:
//   - safe + trail    -> bank (corridor buffer, union, clear trail)
//   - safe + no trail -> no-op
//   - unsafe + no trail -> start degenerate 2-point trail
//   - unsafe + trail  -> append; closed loop or self-intersection -> capture
func (e *Engine) ProcessPosition(playerID string, pos LatLng, others []OtherPlayer) []interface{} {
	var events []interface{}
	var severSegment *[2]LatLng

	unlock := e.lockPlayer(playerID)

	territory, err := e.db.GetTerritory(playerID)
	if err != nil {
		log.Printf("engine: territory read for %s: %v", playerID, err)
		unlock()
		return nil
	}
	var terrGeom space.MultiPolygon
	if territory != nil {
		terrGeom, err = decodeTerritory(territory.Geometry)
		if err != nil {
			log.Printf("engine: %v", err)
			terrGeom = nil
		}
	}

	safe, reason := e.isSafe(pos, terrGeom)

	trail, err := e.db.GetTrail(playerID)
	if err != nil {
		log.Printf("engine: trail read for %s: %v", playerID, err)
		unlock()
		return nil
	}

	switch {
	case safe && trail != nil:
		if e.bankTrail(playerID, trail, territory, terrGeom) {
			events = append(events, TrailBankedMsg{
				Type:     MsgTrailBanked,
				PlayerID: playerID,
				Reason:   reason,
			})
		}

	case safe:
		// already safe with nothing to bank

	case trail == nil:
		if err := e.db.CreateTrail(playerID, pos); err != nil {
			log.Printf("engine: trail create for %s: %v", playerID, err)
		}

	default:
		points, err := e.db.AppendTrail(playerID, pos)
		if err != nil {
			log.Printf("engine: trail append for %s: %v", playerID, err)
			break
		}
		prev := points[len(points)-2]
		severSegment = &[2]LatLng{prev, pos}

		if e.shouldCapture(playerID, points) {
			if added, ok := e.captureTrail(playerID, points, territory, terrGeom); ok {
				events = append(events, TerritoryCapturedMsg{
					Type:      MsgTerritoryCaptured,
					PlayerID:  playerID,
					AreaAdded: added,
				})
			}
		}
	}

	unlock()

	// Severing runs after the player's own lock is released; each victim
	// is locked on its own, so mutual cuts cannot deadlock.
	if severSegment != nil {
		events = append(events, e.severCrossings(playerID, severSegment[0], severSegment[1], others)...)
	}
	return events
}

// isSafe tests territory containment first, then safe-point proximity
func (e *Engine) isSafe(pos LatLng, terrGeom space.MultiPolygon) (bool, string) {
	if len(terrGeom) > 0 {
		inside, err := territoryContains(terrGeom, pos)
		if err != nil {
			log.Printf("engine: %v", err)
		} else if inside {
			return true, BankReasonTerritory
		}
	}

	safePoints, err := e.db.ListSafePoints()
	if err != nil {
		log.Printf("engine: safe point read: %v", err)
		return false, ""
	}
	for _, sp := range safePoints {
		if HaversineM(pos, LatLng{Lat: sp.Lat, Lng: sp.Lng}) <= sp.RadiusM {
			return true, BankReasonSafePoint
		}
	}
	return false, ""
}

// bankTrail converts a trail to territory on reaching safety. Fail-safe
// forward progress: the trail is cleared even when geometry construction
// fails, so a player can never be stuck with an unresolvable trail.
// Returns true when territory was actually committed.
func (e *Engine) bankTrail(playerID string, trail []LatLng, territory *TerritoryRow, terrGeom space.MultiPolygon) bool {
	corridor, err := trailCorridor(trail)
	if err != nil {
		log.Printf("engine: bank corridor for %s: %v", playerID, err)
		e.clearTrailFailSafe(playerID)
		return false
	}

	var existing space.Geometry
	if len(terrGeom) > 0 {
		existing = terrGeom
	}
	merged, area, err := unionTerritory(existing, corridor)
	if err != nil {
		log.Printf("engine: bank union for %s: %v", playerID, err)
		e.clearTrailFailSafe(playerID)
		return false
	}
	if territory != nil && area < territory.AreaSqm {
		// union never shrinks; keep the larger recorded area
		area = territory.AreaSqm
	}

	blob, err := encodeTerritory(merged)
	if err != nil {
		log.Printf("engine: bank encode for %s: %v", playerID, err)
		e.clearTrailFailSafe(playerID)
		return false
	}
	if err := e.db.BankTrail(playerID, blob, area); err != nil {
		log.Printf("engine: bank commit for %s: %v", playerID, err)
		return false
	}
	return true
}

func (e *Engine) clearTrailFailSafe(playerID string) {
	if err := e.db.ClearTrail(playerID); err != nil {
		log.Printf("engine: fail-safe trail clear for %s: %v", playerID, err)
	}
}

// shouldCapture reports whether the trail closed a loop: either exactly
// back to its start or by crossing itself
func (e *Engine) shouldCapture(playerID string, points []LatLng) bool {
	if trailIsClosed(points) {
		return true
	}
	simple, err := trailIsSimple(points)
	if err != nil {
		log.Printf("engine: simplicity test for %s: %v", playerID, err)
		return false
	}
	return !simple
}

// captureTrail converts a self-closed trail to territory. Fail-safe
// non-destructive: on any geometry failure the trail is left untouched
// and the player keeps tracking. Returns the area added and whether the
// capture committed.
func (e *Engine) captureTrail(playerID string, points []LatLng, territory *TerritoryRow, terrGeom space.MultiPolygon) (float64, bool) {
	faces, err := captureFaces(points)
	if err != nil {
		log.Printf("engine: capture faces for %s: %v", playerID, err)
		return 0, false
	}

	var existing space.Geometry
	prevArea := 0.0
	if len(terrGeom) > 0 {
		existing = terrGeom
	}
	if territory != nil {
		prevArea = territory.AreaSqm
	}
	merged, area, err := unionTerritory(existing, faces)
	if err != nil {
		log.Printf("engine: capture union for %s: %v", playerID, err)
		return 0, false
	}
	if area < prevArea {
		area = prevArea
	}

	blob, err := encodeTerritory(merged)
	if err != nil {
		log.Printf("engine: capture encode for %s: %v", playerID, err)
		return 0, false
	}
	if err := e.db.BankTrail(playerID, blob, area); err != nil {
		log.Printf("engine: capture commit for %s: %v", playerID, err)
		return 0, false
	}
	return area - prevArea, true
}

// severCrossings clears the trail of every unshielded player whose trail
// the segment a->b crosses. Crossings are tested on true coordinates;
// projected overlaps are a visual artifact of the unified grid, not a cut.
func (e *Engine) severCrossings(attackerID string, a, b LatLng, others []OtherPlayer) []interface{} {
	var events []interface{}
	for _, other := range others {
		if other.ID == "" || other.ID == attackerID {
			continue
		}

		unlock := e.lockPlayer(other.ID)
		trail, err := e.db.GetTrail(other.ID)
		if err != nil {
			log.Printf("engine: sever trail read for %s: %v", other.ID, err)
			unlock()
			continue
		}
		if trail == nil {
			unlock()
			continue
		}
		hit, err := trailsCross(a, b, trail)
		if err != nil {
			log.Printf("engine: %v", err)
			unlock()
			continue
		}
		if !hit {
			unlock()
			continue
		}
		if other.Shielded {
			unlock()
			continue
		}
		if err := e.db.ClearTrail(other.ID); err != nil {
			log.Printf("engine: sever clear for %s: %v", other.ID, err)
			unlock()
			continue
		}
		unlock()
		events = append(events, TrailSeveredMsg{
			Type:       MsgTrailSevered,
			AttackerID: attackerID,
			VictimID:   other.ID,
		})
	}
	return events
}

// ActivatePowerup verifies and consumes one inventory unit of a powerup.
// Unknown powerup ids and empty inventories are silent no-ops.
func (e *Engine) ActivatePowerup(playerID, powerupID string) (bool, error) {
	if _, ok := PowerupCatalogMap[powerupID]; !ok {
		return false, nil
	}
	qty, err := e.db.InventoryHas(playerID, powerupID)
	if err != nil {
		return false, err
	}
	if qty < 1 {
		return false, nil
	}
	if err := e.db.InventoryDecrement(playerID, powerupID); err != nil {
		return false, err
	}
	return true, nil
}
