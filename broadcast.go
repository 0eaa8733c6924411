package main

import (
	"encoding/json"
	"log"

	"github.com/vmihailenco/msgpack/v5"
)

// Player status values in game_state payloads
const (
	StatusActive   = "active"
	StatusTracking = "tracking"
)

// broadcastToRoom sends one message to every member of a room.
// Delivery is best-effort per socket; a slow or dead recipient never
// blocks the others.
func broadcastToRoom(room *Room, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}
	for _, m := range room.snapshot() {
		if m.client != nil {
			m.client.SendRaw(data)
		}
	}
}

// composeTerritories builds the global, unprojected territory list.
// Undecodable rows are skipped, never fatal to the pass.
func composeTerritories(db *DB) []TerritorySnapshot {
	rows, err := db.ListTerritories()
	if err != nil {
		log.Printf("territory list error: %v", err)
		return []TerritorySnapshot{}
	}
	out := make([]TerritorySnapshot, 0, len(rows))
	for _, row := range rows {
		mp, err := decodeTerritory(row.Geometry)
		if err != nil {
			log.Printf("%v", err)
			continue
		}
		for _, ring := range territoryRings(mp) {
			out = append(out, TerritorySnapshot{
				OwnerID: row.PlayerID,
				Points:  ring,
				Area:    row.AreaSqm,
			})
		}
	}
	return out
}

// broadcastGameState composes and sends a personalized game_state to
// every member of a room: players and trails are projected into each
// recipient's sector and filtered for invisibility; territories are
// global and unprojected.
func broadcastGameState(room *Room, db *DB) {
	members := room.snapshot()

	trails := make(map[string][]LatLng)
	for _, m := range members {
		if m.PlayerID == "" {
			continue
		}
		if _, done := trails[m.PlayerID]; done {
			continue
		}
		trail, err := db.GetTrail(m.PlayerID)
		if err != nil {
			log.Printf("trail read for %s: %v", m.PlayerID, err)
			continue
		}
		trails[m.PlayerID] = trail
	}

	territories := composeTerritories(db)
	tick := room.nextTick()

	for _, recipient := range members {
		state := GameStateMsg{
			Type:        MsgGameState,
			Tick:        tick,
			Players:     composePlayers(recipient, members, trails),
			Territories: territories,
		}
		sendGameState(recipient, state)
	}
}

// composePlayers builds the filtered, projected player list for one
// recipient. The recipient appears unprojected with is_me set; invisible
// players are omitted for everyone but themselves; while the recipient
// has no valid position yet, everyone is sent raw.
func composePlayers(recipient MemberState, members []MemberState, trails map[string][]LatLng) []PlayerSnapshot {
	players := make([]PlayerSnapshot, 0, len(members))
	for _, p := range members {
		if p.PlayerID == "" {
			continue
		}
		isMe := recipient.PlayerID != "" && p.PlayerID == recipient.PlayerID
		if !isMe && p.HasPowerup(PowerupInvisibility) {
			continue
		}

		trail := trails[p.PlayerID]
		snap := PlayerSnapshot{
			ID:       p.PlayerID,
			IsMe:     isMe,
			Powerups: p.Powerups,
			Status:   StatusActive,
		}
		if len(trail) > 0 {
			snap.Status = StatusTracking
		}

		if isMe || !recipient.HasPos {
			snap.Position = p.Pos
			snap.Trail = append([]LatLng{}, trail...)
		} else {
			snap.Position = Project(recipient.Pos, p.Pos)
			snap.Trail = make([]LatLng, 0, len(trail))
			for _, tp := range trail {
				snap.Trail = append(snap.Trail, Project(recipient.Pos, tp))
			}
		}
		players = append(players, snap)
	}
	return players
}

// sendGameState delivers one composed state, msgpack-encoded as a binary
// frame when the client opted in at connect time
func sendGameState(recipient MemberState, state GameStateMsg) {
	c := recipient.client
	if c == nil {
		return
	}
	if c.binary {
		data, err := msgpack.Marshal(state)
		if err != nil {
			log.Printf("msgpack marshal error: %v", err)
			return
		}
		c.SendBinary(data)
		return
	}
	c.SendJSON(state)
}
