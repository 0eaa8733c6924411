package main

// Powerup type categories
const (
	PowerupDefense = "defense"
	PowerupStealth = "stealth"
	PowerupBonus   = "bonus"
)

// Well-known powerup ids the core reacts to
const (
	PowerupShield       = "shield"       // protects an active trail from severing
	PowerupInvisibility = "invisibility" // hides the player from everyone else's game_state
	PowerupGhost        = "ghost"        // pass through enemy trails without severing them
)

// Powerup describes one activatable item
type Powerup struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Cost        float64 `json:"cost"`
}

// PowerupCatalog is the reference table of valid powerups. Purchase and
// billing happen outside this service; the core only checks membership
// before touching inventory.
var PowerupCatalog = []Powerup{
	{ID: PowerupShield, Name: "Shield", Description: "Your trail cannot be severed while active", Type: PowerupDefense, Cost: 10},
	{ID: PowerupInvisibility, Name: "Invisibility", Description: "Other players cannot see you", Type: PowerupStealth, Cost: 15},
	{ID: PowerupGhost, Name: "Ghost", Description: "Pass through enemy trails without severing them", Type: PowerupStealth, Cost: 12},
}

// PowerupCatalogMap provides O(1) lookup by powerup ID
var PowerupCatalogMap map[string]Powerup

func init() {
	PowerupCatalogMap = make(map[string]Powerup, len(PowerupCatalog))
	for _, p := range PowerupCatalog {
		PowerupCatalogMap[p.ID] = p
	}
}
