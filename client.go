package main

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client represents one WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	connID     string
	remoteAddr string
	room       *Room
	playerID   string // "" for anonymous spectators
	binary     bool   // client opted into msgpack game_state frames
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, connID, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		connID:     connID,
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.leaveRoom()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// leaveRoom removes the client from its room and notifies the remainder.
// Whatever an in-flight transition already committed to the store stands.
func (c *Client) leaveRoom() {
	if c.room == nil {
		return
	}
	room := c.room
	c.room = nil
	playerID := c.hub.rooms.Leave(room, c.connID)
	if playerID != "" {
		broadcastToRoom(room, PlayerLeftMsg{Type: MsgPlayerLeft, PlayerID: playerID})
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("marshal error: %v", err)
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF // binary marker
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

// handleMessage routes one inbound frame through the typed decoder
func (c *Client) handleMessage(raw []byte) {
	msg, err := decodeClientMessage(raw)
	if err != nil {
		if errors.Is(err, errIgnoreMessage) {
			return
		}
		c.SendJSON(ErrorMsg{Type: MsgError, Message: err.Error()})
		return
	}

	switch m := msg.(type) {
	case PositionUpdateMsg:
		c.handlePositionUpdate(m)
	case UsePowerupMsg:
		c.handleUsePowerup(m)
	case PingMsg:
		c.SendJSON(PongMsg{Type: MsgPong})
	}
}

// handlePositionUpdate runs one engine transition and rebroadcasts state
func (c *Client) handlePositionUpdate(m PositionUpdateMsg) {
	if c.room == nil || c.playerID == "" {
		return
	}
	pos := LatLng{Lat: m.Lat, Lng: m.Lng}
	c.room.setPosition(c.connID, pos)

	others := c.severingTargets()
	events := c.hub.engine.ProcessPosition(c.playerID, pos, others)
	for _, ev := range events {
		broadcastToRoom(c.room, ev)
	}
	broadcastGameState(c.room, c.hub.db)
}

// severingTargets collects co-room players for the severing pass. A
// ghosted attacker cuts nobody.
func (c *Client) severingTargets() []OtherPlayer {
	var others []OtherPlayer
	for _, m := range c.room.snapshot() {
		if m.ConnID == c.connID {
			if m.HasPowerup(PowerupGhost) {
				return nil
			}
			continue
		}
		if m.PlayerID == "" {
			continue
		}
		others = append(others, OtherPlayer{
			ID:       m.PlayerID,
			Shielded: m.HasPowerup(PowerupShield),
		})
	}
	return others
}

// handleUsePowerup checks inventory, consumes one unit and activates the
// tag on this connection until it disconnects
func (c *Client) handleUsePowerup(m UsePowerupMsg) {
	if c.room == nil || c.playerID == "" {
		return
	}
	ok, err := c.hub.engine.ActivatePowerup(c.playerID, m.PowerupID)
	if err != nil {
		log.Printf("powerup %s for %s: %v", m.PowerupID, c.playerID, err)
		return
	}
	if !ok {
		return
	}
	c.room.activatePowerup(c.connID, m.PowerupID)
	c.SendJSON(PowerupActivatedMsg{Type: MsgPowerupActivated, PowerupID: m.PowerupID})
	// refresh everyone's view; visibility may just have changed
	broadcastGameState(c.room, c.hub.db)
}

// sendInit ships reference data to a freshly connected client
func (c *Client) sendInit() {
	safePoints, err := c.hub.db.ListSafePoints()
	if err != nil {
		log.Printf("init safe points: %v", err)
	}
	infos := make([]SafePointInfo, 0, len(safePoints))
	for _, sp := range safePoints {
		infos = append(infos, SafePointInfo{
			ID: sp.ID, Name: sp.Name, Lat: sp.Lat, Lng: sp.Lng, RadiusM: sp.RadiusM,
		})
	}
	c.SendJSON(InitMsg{
		Type:        MsgInit,
		SafePoints:  infos,
		Territories: composeTerritories(c.hub.db),
	})
}
