package main

import (
	"testing"
)

func setupEngine(t *testing.T) (*DB, *Engine) {
	t.Helper()
	db := setupTestDB(t)
	return db, NewEngine(db)
}

func mustCreatePlayer(t *testing.T, db *DB, id string) {
	t.Helper()
	if err := db.CreatePlayer(id, id); err != nil {
		t.Fatalf("CreatePlayer(%s): %v", id, err)
	}
}

// walkSquare drives a player around a closed square of side sideDeg with
// its south-west corner at origin, returning the events of the final step
func walkSquare(e *Engine, playerID string, origin LatLng, sideDeg float64) []interface{} {
	corners := []LatLng{
		origin,
		{Lat: origin.Lat, Lng: origin.Lng + sideDeg},
		{Lat: origin.Lat + sideDeg, Lng: origin.Lng + sideDeg},
		{Lat: origin.Lat + sideDeg, Lng: origin.Lng},
		origin,
	}
	var events []interface{}
	for _, c := range corners {
		events = e.ProcessPosition(playerID, c, nil)
	}
	return events
}

func TestUnsafeStartSeedsTrail(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	events := e.ProcessPosition("p1", LatLng{Lat: 0, Lng: 0}, nil)
	if len(events) != 0 {
		t.Errorf("seeding a trail should produce no events, got %v", events)
	}

	trail, err := db.GetTrail("p1")
	if err != nil {
		t.Fatalf("GetTrail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2-point seed, got %v", trail)
	}
	if !samePoint(trail[0], trail[1]) {
		t.Error("seed endpoints should coincide")
	}
}

func TestClosedLoopCapture(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	events := walkSquare(e, "p1", LatLng{Lat: 0, Lng: 0}, 0.009)
	if len(events) != 1 {
		t.Fatalf("expected 1 capture event, got %v", events)
	}
	captured, ok := events[0].(TerritoryCapturedMsg)
	if !ok {
		t.Fatalf("expected TerritoryCapturedMsg, got %T", events[0])
	}
	if captured.PlayerID != "p1" {
		t.Errorf("capture attributed to %s", captured.PlayerID)
	}
	if captured.AreaAdded <= 0 {
		t.Errorf("capture should add positive area, got %v", captured.AreaAdded)
	}

	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("trail should be cleared after capture")
	}
	terr, err := db.GetTerritory("p1")
	if err != nil {
		t.Fatalf("GetTerritory: %v", err)
	}
	if terr == nil || terr.AreaSqm <= 0 {
		t.Fatal("expected territory with positive area after capture")
	}
}

func TestSelfCrossingCapture(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	// hourglass path: the last segment crosses the first without ever
	// returning to the start point
	path := []LatLng{
		{Lat: 0, Lng: 0},
		{Lat: 0, Lng: 0.004},
		{Lat: 0.004, Lng: 0.004},
		{Lat: -0.002, Lng: 0.002},
	}
	var events []interface{}
	for _, p := range path {
		events = e.ProcessPosition("p1", p, nil)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 capture event, got %v", events)
	}
	if _, ok := events[0].(TerritoryCapturedMsg); !ok {
		t.Fatalf("expected TerritoryCapturedMsg, got %T", events[0])
	}
	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("trail should be cleared after self-crossing capture")
	}
}

func TestSafePointBanking(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")
	if err := db.CreateSafePoint("park", 0.9, 0.9, 50); err != nil {
		t.Fatalf("CreateSafePoint: %v", err)
	}

	// start well outside the 50m radius, walk toward the safe point
	e.ProcessPosition("p1", LatLng{Lat: 0.905, Lng: 0.9}, nil)
	e.ProcessPosition("p1", LatLng{Lat: 0.9045, Lng: 0.9}, nil)
	events := e.ProcessPosition("p1", LatLng{Lat: 0.9, Lng: 0.9}, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 bank event, got %v", events)
	}
	banked, ok := events[0].(TrailBankedMsg)
	if !ok {
		t.Fatalf("expected TrailBankedMsg, got %T", events[0])
	}
	if banked.Reason != BankReasonSafePoint {
		t.Errorf("expected reason %q, got %q", BankReasonSafePoint, banked.Reason)
	}

	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("trail should be gone after banking")
	}
	terr, _ := db.GetTerritory("p1")
	if terr == nil || terr.AreaSqm <= 0 {
		t.Fatal("expected corridor territory after banking")
	}
}

func TestSafeWithoutTrailIsNoOp(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")
	if err := db.CreateSafePoint("park", 0.9, 0.9, 50); err != nil {
		t.Fatalf("CreateSafePoint: %v", err)
	}

	events := e.ProcessPosition("p1", LatLng{Lat: 0.9, Lng: 0.9}, nil)
	if len(events) != 0 {
		t.Errorf("expected no events inside a safe zone, got %v", events)
	}
	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("no trail should start inside a safe zone")
	}
}

func TestBankIntoOwnTerritory(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	walkSquare(e, "p1", LatLng{Lat: 0, Lng: 0}, 0.009)

	// new trail outside, then step into owned territory
	e.ProcessPosition("p1", LatLng{Lat: 0.02, Lng: 0.02}, nil)
	e.ProcessPosition("p1", LatLng{Lat: 0.015, Lng: 0.015}, nil)
	events := e.ProcessPosition("p1", LatLng{Lat: 0.0045, Lng: 0.0045}, nil)

	if len(events) != 1 {
		t.Fatalf("expected 1 bank event, got %v", events)
	}
	banked, ok := events[0].(TrailBankedMsg)
	if !ok {
		t.Fatalf("expected TrailBankedMsg, got %T", events[0])
	}
	if banked.Reason != BankReasonTerritory {
		t.Errorf("expected reason %q, got %q", BankReasonTerritory, banked.Reason)
	}
	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("trail should be gone after banking into territory")
	}
}

func TestReenterOwnTerritoryNoOp(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	walkSquare(e, "p1", LatLng{Lat: 0, Lng: 0}, 0.009)
	before, _ := db.GetTerritory("p1")
	if before == nil {
		t.Fatal("expected territory after capture")
	}

	// trail is gone; moving inside owned territory changes nothing
	events := e.ProcessPosition("p1", LatLng{Lat: 0.0045, Lng: 0.0045}, nil)
	if len(events) != 0 {
		t.Errorf("re-entry should produce no events, got %v", events)
	}
	trail, _ := db.GetTrail("p1")
	if trail != nil {
		t.Error("no trail should start inside owned territory")
	}
	after, _ := db.GetTerritory("p1")
	if after.AreaSqm != before.AreaSqm {
		t.Errorf("re-entry changed area: %v -> %v", before.AreaSqm, after.AreaSqm)
	}
}

func TestTerritoryAreaNeverShrinks(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	walkSquare(e, "p1", LatLng{Lat: 0, Lng: 0}, 0.009)
	terr1, _ := db.GetTerritory("p1")
	if terr1 == nil {
		t.Fatal("expected territory after first capture")
	}

	walkSquare(e, "p1", LatLng{Lat: 0.02, Lng: 0.02}, 0.009)
	terr2, _ := db.GetTerritory("p1")
	if terr2 == nil {
		t.Fatal("expected territory after second capture")
	}
	if terr2.AreaSqm <= terr1.AreaSqm {
		t.Errorf("area should grow across captures: %v -> %v", terr1.AreaSqm, terr2.AreaSqm)
	}
}

func TestSeverCrossingTrail(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "attacker")
	mustCreatePlayer(t, db, "victim")

	if err := db.CreateTrail("victim", LatLng{Lat: 0.010, Lng: 0.012}); err != nil {
		t.Fatalf("CreateTrail: %v", err)
	}
	if _, err := db.AppendTrail("victim", LatLng{Lat: 0.015, Lng: 0.012}); err != nil {
		t.Fatalf("AppendTrail: %v", err)
	}

	others := []OtherPlayer{{ID: "victim"}}
	e.ProcessPosition("attacker", LatLng{Lat: 0.012, Lng: 0.010}, others)
	events := e.ProcessPosition("attacker", LatLng{Lat: 0.012, Lng: 0.014}, others)

	if len(events) != 1 {
		t.Fatalf("expected 1 sever event, got %v", events)
	}
	sev, ok := events[0].(TrailSeveredMsg)
	if !ok {
		t.Fatalf("expected TrailSeveredMsg, got %T", events[0])
	}
	if sev.AttackerID != "attacker" || sev.VictimID != "victim" {
		t.Errorf("unexpected attribution: %+v", sev)
	}

	trail, _ := db.GetTrail("victim")
	if trail != nil {
		t.Error("victim trail should be cleared")
	}
	attackerTrail, _ := db.GetTrail("attacker")
	if attackerTrail == nil {
		t.Error("attacker trail should survive the cut")
	}
}

func TestShieldBlocksSevering(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "attacker")
	mustCreatePlayer(t, db, "victim")

	if err := db.CreateTrail("victim", LatLng{Lat: 0.010, Lng: 0.012}); err != nil {
		t.Fatalf("CreateTrail: %v", err)
	}
	if _, err := db.AppendTrail("victim", LatLng{Lat: 0.015, Lng: 0.012}); err != nil {
		t.Fatalf("AppendTrail: %v", err)
	}

	others := []OtherPlayer{{ID: "victim", Shielded: true}}
	e.ProcessPosition("attacker", LatLng{Lat: 0.012, Lng: 0.010}, others)
	events := e.ProcessPosition("attacker", LatLng{Lat: 0.012, Lng: 0.014}, others)

	if len(events) != 0 {
		t.Errorf("shielded crossing should produce no events, got %v", events)
	}
	trail, _ := db.GetTrail("victim")
	if trail == nil {
		t.Error("shielded victim trail should survive")
	}
}

func TestNonCrossingMoveDoesNotSever(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "attacker")
	mustCreatePlayer(t, db, "victim")

	if err := db.CreateTrail("victim", LatLng{Lat: 0.010, Lng: 0.012}); err != nil {
		t.Fatalf("CreateTrail: %v", err)
	}
	if _, err := db.AppendTrail("victim", LatLng{Lat: 0.015, Lng: 0.012}); err != nil {
		t.Fatalf("AppendTrail: %v", err)
	}

	others := []OtherPlayer{{ID: "victim"}}
	e.ProcessPosition("attacker", LatLng{Lat: 0.050, Lng: 0.050}, others)
	events := e.ProcessPosition("attacker", LatLng{Lat: 0.051, Lng: 0.050}, others)

	if len(events) != 0 {
		t.Errorf("distant move should produce no events, got %v", events)
	}
	trail, _ := db.GetTrail("victim")
	if trail == nil {
		t.Error("victim trail should be untouched")
	}
}

func TestActivatePowerup(t *testing.T) {
	db, e := setupEngine(t)
	mustCreatePlayer(t, db, "p1")

	ok, err := e.ActivatePowerup("p1", "warp-drive")
	if err != nil {
		t.Fatalf("ActivatePowerup: %v", err)
	}
	if ok {
		t.Error("unknown powerup id should not activate")
	}

	ok, err = e.ActivatePowerup("p1", PowerupShield)
	if err != nil {
		t.Fatalf("ActivatePowerup: %v", err)
	}
	if ok {
		t.Error("empty inventory should not activate")
	}

	if err := db.GrantPowerup("p1", PowerupShield, 1); err != nil {
		t.Fatalf("GrantPowerup: %v", err)
	}
	ok, err = e.ActivatePowerup("p1", PowerupShield)
	if err != nil {
		t.Fatalf("ActivatePowerup: %v", err)
	}
	if !ok {
		t.Error("activation with inventory should succeed")
	}

	ok, err = e.ActivatePowerup("p1", PowerupShield)
	if err != nil {
		t.Fatalf("ActivatePowerup: %v", err)
	}
	if ok {
		t.Error("second activation should fail, inventory is spent")
	}
}
