package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection. It is both the Spatial Store
// (trails, territories, safe points) and the persistence side of the
// external collaborator contracts (players, powerup inventory).
type DB struct {
	conn *sql.DB
}

// SafePoint is one immutable safe location from the safe_points table
type SafePoint struct {
	ID      int64
	Name    string
	Lat     float64
	Lng     float64
	RadiusM float64
}

// TerritoryRow is one player's stored territory
type TerritoryRow struct {
	PlayerID string
	Geometry []byte // JSON-encoded multipolygon
	AreaSqm  float64
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS player_powerups (
		player_id TEXT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
		powerup_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (player_id, powerup_id)
	);

	CREATE TABLE IF NOT EXISTS player_trails (
		player_id TEXT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
		points TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS player_territories (
		player_id TEXT PRIMARY KEY REFERENCES players(id) ON DELETE CASCADE,
		geometry TEXT NOT NULL,
		area_sqm REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS safe_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL DEFAULT '',
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		radius_m REAL NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// CreatePlayer registers a player row. Identity management proper lives
// outside this service; this exists for seeding and tests.
func (db *DB) CreatePlayer(id, username string) error {
	_, err := db.conn.Exec(
		"INSERT INTO players (id, username) VALUES (?, ?)",
		id, username,
	)
	return err
}

// PlayerExists reports whether a player id is known
func (db *DB) PlayerExists(id string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// GrantPowerup adds qty units of a powerup to a player's inventory
func (db *DB) GrantPowerup(playerID, powerupID string, qty int) error {
	_, err := db.conn.Exec(`
		INSERT INTO player_powerups (player_id, powerup_id, quantity)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id, powerup_id) DO UPDATE SET quantity = quantity + ?`,
		playerID, powerupID, qty, qty,
	)
	return err
}

// InventoryHas returns the quantity of a powerup a player holds
func (db *DB) InventoryHas(playerID, powerupID string) (int, error) {
	var qty int
	err := db.conn.QueryRow(
		"SELECT quantity FROM player_powerups WHERE player_id = ? AND powerup_id = ?",
		playerID, powerupID,
	).Scan(&qty)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return qty, err
}

// InventoryDecrement consumes one unit of a powerup. It is an error to
// decrement below zero; callers check InventoryHas first.
func (db *DB) InventoryDecrement(playerID, powerupID string) error {
	res, err := db.conn.Exec(`
		UPDATE player_powerups SET quantity = quantity - 1
		WHERE player_id = ? AND powerup_id = ? AND quantity > 0`,
		playerID, powerupID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no %s inventory to decrement for %s", powerupID, playerID)
	}
	return nil
}

// GetTrail returns a player's active trail, or nil when none exists
func (db *DB) GetTrail(playerID string) ([]LatLng, error) {
	var raw string
	err := db.conn.QueryRow(
		"SELECT points FROM player_trails WHERE player_id = ?", playerID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var points []LatLng
	if err := json.Unmarshal([]byte(raw), &points); err != nil {
		return nil, fmt.Errorf("decode trail for %s: %w", playerID, err)
	}
	return points, nil
}

// CreateTrail starts a new trail seeded with a degenerate 2-point line
// (both endpoints at p); a polyline needs 2 points to exist
func (db *DB) CreateTrail(playerID string, p LatLng) error {
	raw, err := json.Marshal([]LatLng{p, p})
	if err != nil {
		return err
	}
	_, err = db.conn.Exec(
		"INSERT INTO player_trails (player_id, points) VALUES (?, ?)",
		playerID, string(raw),
	)
	return err
}

// AppendTrail adds a point to an existing trail and returns the full
// updated polyline. The engine serializes per-player writes, so the
// read-modify-write here never races with itself.
func (db *DB) AppendTrail(playerID string, p LatLng) ([]LatLng, error) {
	points, err := db.GetTrail(playerID)
	if err != nil {
		return nil, err
	}
	if points == nil {
		return nil, fmt.Errorf("no active trail for %s", playerID)
	}
	points = append(points, p)
	raw, err := json.Marshal(points)
	if err != nil {
		return nil, err
	}
	_, err = db.conn.Exec(
		"UPDATE player_trails SET points = ? WHERE player_id = ?",
		string(raw), playerID,
	)
	if err != nil {
		return nil, err
	}
	return points, nil
}

// ClearTrail removes a player's trail if one exists
func (db *DB) ClearTrail(playerID string) error {
	_, err := db.conn.Exec("DELETE FROM player_trails WHERE player_id = ?", playerID)
	return err
}

// GetTerritory returns a player's territory, or nil geometry when none
func (db *DB) GetTerritory(playerID string) (*TerritoryRow, error) {
	row := db.conn.QueryRow(
		"SELECT geometry, area_sqm FROM player_territories WHERE player_id = ?",
		playerID,
	)
	t := &TerritoryRow{PlayerID: playerID}
	var raw string
	err := row.Scan(&raw, &t.AreaSqm)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.Geometry = []byte(raw)
	return t, nil
}

// ListTerritories returns every player's territory
func (db *DB) ListTerritories() ([]TerritoryRow, error) {
	rows, err := db.conn.Query("SELECT player_id, geometry, area_sqm FROM player_territories")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TerritoryRow
	for rows.Next() {
		var t TerritoryRow
		var raw string
		if err := rows.Scan(&t.PlayerID, &raw, &t.AreaSqm); err != nil {
			return nil, err
		}
		t.Geometry = []byte(raw)
		result = append(result, t)
	}
	return result, rows.Err()
}

// BankTrail atomically replaces a player's territory and clears their
// trail. Banking and capture both commit through here so a trail and its
// converted territory can never coexist.
func (db *DB) BankTrail(playerID string, geometry []byte, areaSqm float64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO player_territories (player_id, geometry, area_sqm)
		VALUES (?, ?, ?)
		ON CONFLICT(player_id) DO UPDATE SET geometry = ?, area_sqm = ?`,
		playerID, string(geometry), areaSqm, string(geometry), areaSqm,
	)
	if err != nil {
		return err
	}
	if _, err = tx.Exec("DELETE FROM player_trails WHERE player_id = ?", playerID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSafePoints returns the immutable safe-zone table
func (db *DB) ListSafePoints() ([]SafePoint, error) {
	rows, err := db.conn.Query("SELECT id, name, lat, lng, radius_m FROM safe_points")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SafePoint
	for rows.Next() {
		var sp SafePoint
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.Lat, &sp.Lng, &sp.RadiusM); err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// CreateSafePoint inserts one safe point
func (db *DB) CreateSafePoint(name string, lat, lng, radiusM float64) error {
	_, err := db.conn.Exec(
		"INSERT INTO safe_points (name, lat, lng, radius_m) VALUES (?, ?, ?, ?)",
		name, lat, lng, radiusM,
	)
	return err
}

// SeedSafePoints inserts default safe points when the table is empty
func (db *DB) SeedSafePoints() error {
	var count int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM safe_points").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	defaults := []SafePoint{
		{Name: "Cubbon Park", Lat: 12.9763, Lng: 77.5929, RadiusM: 100},
		{Name: "Lalbagh West Gate", Lat: 12.9507, Lng: 77.5848, RadiusM: 100},
		{Name: "Ulsoor Lake", Lat: 12.9810, Lng: 77.6200, RadiusM: 80},
	}
	for _, sp := range defaults {
		if err := db.CreateSafePoint(sp.Name, sp.Lat, sp.Lng, sp.RadiusM); err != nil {
			return err
		}
	}
	return nil
}
