// Package models defines the data structures shared by the decoders, the cache and the HTTP API.
package models

// IgnoreRange marks a byte span of the server name that search should skip.
type IgnoreRange struct {
	Offset uint8 `json:"offset"`
	Length uint8 `json:"length"`
}

// Server represents one entry of the ASE master list.
// Optional fields keep their zero value when the response flags do not carry them.
type Server struct {
	IP           string        `json:"ip"`
	Country      string        `json:"country,omitempty"`
	GameName     string        `json:"gamename"`
	Name         string        `json:"name"`
	GameMode     string        `json:"gamemode"`
	Map          string        `json:"map"`
	Version      string        `json:"version"`
	PlayerList   []string      `json:"playerlist"`
	SearchIgnore []IgnoreRange `json:"searchignore"`
	Restriction  uint32        `json:"restriction"`
	Port         uint16        `json:"port"`
	Players      uint16        `json:"players"`
	MaxPlayers   uint16        `json:"maxplayers"`
	HTTPPort     uint16        `json:"http"`
	Password     uint8         `json:"password"`
	Serials      uint8         `json:"serials"`
	Responding   uint8         `json:"responding"`
	Keep         uint8         `json:"keep"`
	Special      uint8         `json:"special"`
}

// LiveInfo is the reply of a direct server query. The protocol carries every value as text.
type LiveInfo struct {
	IP         string `json:"ip"`
	Port       string `json:"port"`
	Name       string `json:"name"`
	GameMode   string `json:"gamemode"`
	Map        string `json:"map"`
	Version    string `json:"version"`
	Passworded string `json:"passworded"`
	Players    string `json:"players"`
	MaxPlayers string `json:"maxplayers"`
}
