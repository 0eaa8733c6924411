package main

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client -> Server message types
const (
	MsgPositionUpdate = "position_update"
	MsgUsePowerup     = "use_powerup"
	MsgPing           = "ping"
)

// Server -> Client message types
const (
	MsgGameState         = "game_state"
	MsgTrailBanked       = "trail_banked"
	MsgTerritoryCaptured = "territory_captured"
	MsgTrailSevered      = "trail_severed"
	MsgPlayerLeft        = "player_left"
	MsgPowerupActivated  = "powerup_activated"
	MsgInit              = "init"
	MsgPong              = "pong"
	MsgError             = "error"
)

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// clientMessage is the closed union of inbound message kinds.
// Raw frames are decoded and validated exactly once, at the boundary.
type clientMessage interface {
	clientMessage()
}

// PositionUpdateMsg carries a validated position report
type PositionUpdateMsg struct {
	Lat float64
	Lng float64
}

// UsePowerupMsg requests activation of an inventory powerup
type UsePowerupMsg struct {
	PowerupID string
}

// PingMsg is a keepalive probe; always answered with pong
type PingMsg struct{}

func (PositionUpdateMsg) clientMessage() {}
func (UsePowerupMsg) clientMessage()     {}
func (PingMsg) clientMessage()           {}

// errIgnoreMessage marks frames dropped without an error reply:
// a position_update with missing or non-numeric coordinates causes
// no transition and no error frame.
var errIgnoreMessage = errors.New("message ignored")

// inFrame is the wire shape of every inbound frame. Coordinates are
// kept raw so a bad value in one field cannot fail the whole envelope.
type inFrame struct {
	Type      string          `json:"type"`
	Lat       json.RawMessage `json:"lat"`
	Lng       json.RawMessage `json:"lng"`
	PowerupID string          `json:"powerup_id"`
}

// parseCoord reads one coordinate field. Missing, null and non-numeric
// values all report false.
func parseCoord(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

// decodeClientMessage validates one raw frame into a typed message.
// Malformed JSON and unknown types return an error the caller answers
// with an error frame; errIgnoreMessage means drop silently.
func decodeClientMessage(raw []byte) (clientMessage, error) {
	var f inFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("invalid JSON")
	}
	switch f.Type {
	case MsgPositionUpdate:
		lat, okLat := parseCoord(f.Lat)
		lng, okLng := parseCoord(f.Lng)
		if !okLat || !okLng {
			return nil, errIgnoreMessage
		}
		return PositionUpdateMsg{Lat: lat, Lng: lng}, nil
	case MsgUsePowerup:
		if f.PowerupID == "" {
			return nil, errIgnoreMessage
		}
		return UsePowerupMsg{PowerupID: f.PowerupID}, nil
	case MsgPing:
		return PingMsg{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", f.Type)
	}
}

// PlayerSnapshot is one entry in the game_state players list,
// already filtered and projected for its recipient
type PlayerSnapshot struct {
	ID       string   `json:"id"`
	IsMe     bool     `json:"is_me"`
	Position LatLng   `json:"position"`
	Trail    []LatLng `json:"trail"`
	Status   string   `json:"status"`
	Powerups []string `json:"powerups"`
}

// TerritorySnapshot is one owned polygon ring. Owners whose territory is
// a multipolygon appear once per polygon; Area is the owner's total in m².
// Territories are broadcast unprojected (globally anchored).
type TerritorySnapshot struct {
	OwnerID string   `json:"owner_id"`
	Points  []LatLng `json:"points"`
	Area    float64  `json:"area"`
}

// GameStateMsg is the personalized per-recipient state broadcast
type GameStateMsg struct {
	Type        string              `json:"type"`
	Tick        uint64              `json:"tick"`
	Players     []PlayerSnapshot    `json:"players"`
	Territories []TerritorySnapshot `json:"territories"`
}

// TrailBankedMsg announces a trail converted to territory at a safe zone
type TrailBankedMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Reason   string `json:"reason"` // "territory" or "safe_point"
}

// TerritoryCapturedMsg announces a loop closed in open space
type TerritoryCapturedMsg struct {
	Type      string  `json:"type"`
	PlayerID  string  `json:"player_id"`
	AreaAdded float64 `json:"area_added"`
}

// TrailSeveredMsg announces one player cutting another's trail
type TrailSeveredMsg struct {
	Type       string `json:"type"`
	AttackerID string `json:"attacker_id"`
	VictimID   string `json:"victim_id"`
}

// PlayerLeftMsg is broadcast to a room when a member disconnects
type PlayerLeftMsg struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
}

// PowerupActivatedMsg acks a successful use_powerup to its sender
type PowerupActivatedMsg struct {
	Type      string `json:"type"`
	PowerupID string `json:"powerup_id"`
}

// SafePointInfo describes one fixed safe location
type SafePointInfo struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	RadiusM float64 `json:"radius_m"`
}

// InitMsg is sent once on connect with reference data
type InitMsg struct {
	Type        string              `json:"type"`
	SafePoints  []SafePointInfo     `json:"safe_points"`
	Territories []TerritorySnapshot `json:"territories"`
}

// PongMsg answers a ping
type PongMsg struct {
	Type string `json:"type"`
}

// ErrorMsg reports a recoverable protocol error; the connection stays open
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
