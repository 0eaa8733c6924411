package main

import "sync"

// member is the ephemeral per-connection session state, owned by its
// Room for the lifetime of one socket
type member struct {
	client   *Client
	playerID string // "" until identified
	pos      LatLng
	hasPos   bool // unset-position sentinel; never reverts once set
	powerups map[string]struct{}
}

// MemberState is a point-in-time copy of one member for composition and
// the severing pass
type MemberState struct {
	ConnID   string
	PlayerID string
	Pos      LatLng
	HasPos   bool
	Powerups []string

	client *Client
}

// HasPowerup reports whether a tag was active at snapshot time
func (m MemberState) HasPowerup(tag string) bool {
	for _, p := range m.Powerups {
		if p == tag {
			return true
		}
	}
	return false
}

// Room tracks the live connections of one game room. Members are keyed
// by a stable connection id, never by the socket handle.
type Room struct {
	ID string

	mu      sync.RWMutex
	members map[string]*member
	tick    uint64
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*member),
	}
}

func (r *Room) add(c *Client, playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[c.connID] = &member{
		client:   c,
		playerID: playerID,
		powerups: make(map[string]struct{}),
	}
}

// remove drops a member and returns its player id and whether the room
// is now empty
func (r *Room) remove(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return "", len(r.members) == 0
	}
	delete(r.members, connID)
	return m.playerID, len(r.members) == 0
}

// setPosition records a member's last reported position
func (r *Room) setPosition(connID string, pos LatLng) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[connID]; ok {
		m.pos = pos
		m.hasPos = true
	}
}

// activatePowerup adds a tag to a member's active set. Idempotent:
// returns false when the tag was already active.
func (r *Room) activatePowerup(connID, tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[connID]
	if !ok {
		return false
	}
	if _, active := m.powerups[tag]; active {
		return false
	}
	m.powerups[tag] = struct{}{}
	return true
}

// snapshot copies the member list for lock-free composition
func (r *Room) snapshot() []MemberState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberState, 0, len(r.members))
	for connID, m := range r.members {
		tags := make([]string, 0, len(m.powerups))
		for tag := range m.powerups {
			tags = append(tags, tag)
		}
		out = append(out, MemberState{
			ConnID:   connID,
			PlayerID: m.playerID,
			Pos:      m.pos,
			HasPos:   m.hasPos,
			Powerups: tags,
			client:   m.client,
		})
	}
	return out
}

func (r *Room) memberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// nextTick advances the room's broadcast counter
func (r *Room) nextTick() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick++
	return r.tick
}

// RoomManager is the connection registry: it owns every room and creates
// and destroys them with their first and last connection
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomManager creates an empty registry
func NewRoomManager() *RoomManager {
	return &RoomManager{rooms: make(map[string]*Room)}
}

// Join adds a connection to a room, creating the room on first use.
// The insert happens under the registry lock so a concurrent Leave of
// the last member cannot destroy the room between lookup and add.
func (rm *RoomManager) Join(roomID string, c *Client, playerID string) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	room, ok := rm.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		rm.rooms[roomID] = room
	}
	room.add(c, playerID)
	return room
}

// Leave removes a connection from its room, destroying the room when the
// last member leaves. Returns the member's player id.
func (rm *RoomManager) Leave(room *Room, connID string) string {
	playerID, empty := room.remove(connID)
	if empty {
		rm.mu.Lock()
		// re-check under the registry lock; a new member may have joined
		if room.memberCount() == 0 {
			delete(rm.rooms, room.ID)
		}
		rm.mu.Unlock()
	}
	return playerID
}

// Get returns a room by id, or nil
func (rm *RoomManager) Get(roomID string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[roomID]
}

// RoomCount returns the number of live rooms
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}
