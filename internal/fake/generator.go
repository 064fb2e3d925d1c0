// Package fake provides utilities for generating random master list data for testing and development purposes.
package fake

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/woozymasta/mtalist/internal/ase"
	"github.com/woozymasta/mtalist/internal/models"
)

var (
	gameModes = []string{"Race", "Freeroam", "DM", "DD", "Roleplay", "Stealth", "CTF"}
	maps      = []string{"San Andreas", "Los Santos", "race-sprint", "dd-volcano", "[DM] Fort Carson", "none"}
	versions  = []string{"1.5", "1.5.9", "1.6", "1.6.0-9.22470"}
	nicks     = []string{"Bob", "neo", "Вася", "sp00ky", "racer#42", "Ördög", "[TAG]Player"}
)

// GenerateServers returns count random records filled only with the fields selected by flags.
// List fields are always non-nil when their flag is set so that results compare equal after
// a round trip through ase.Encode and ase.Decode.
func GenerateServers(r *rand.Rand, count int, flags ase.Flag) []models.Server {
	servers := make([]models.Server, 0, count)

	for i := 0; i < count; i++ {
		maxPlayers := uint16(8 + r.Intn(120))
		players := uint16(r.Intn(int(maxPlayers) + 1))

		s := models.Server{
			IP:   fmt.Sprintf("%d.%d.%d.%d", r.Intn(220)+1, r.Intn(256), r.Intn(256), r.Intn(256)),
			Port: uint16(22003 + r.Intn(200)),
		}

		if flags.Has(ase.FlagPlayerCount) {
			s.Players = players
		}
		if flags.Has(ase.FlagMaxPlayerCount) {
			s.MaxPlayers = maxPlayers
		}
		if flags.Has(ase.FlagGameName) {
			s.GameName = "mta"
		}
		if flags.Has(ase.FlagServerName) {
			s.Name = fmt.Sprintf("MTA Server #%d [%s]", r.Intn(1000), pick(r, gameModes))
		}
		if flags.Has(ase.FlagGameMode) {
			s.GameMode = pick(r, gameModes)
		}
		if flags.Has(ase.FlagMapName) {
			s.Map = pick(r, maps)
		}
		if flags.Has(ase.FlagServerVersion) {
			s.Version = pick(r, versions)
		}
		if flags.Has(ase.FlagPassworded) {
			s.Password = uint8(r.Intn(2))
		}
		if flags.Has(ase.FlagSerials) {
			s.Serials = uint8(r.Intn(2))
		}
		if flags.Has(ase.FlagPlayerList) {
			s.PlayerList = make([]string, 0, players)
			for j := 0; j < int(players); j++ {
				s.PlayerList = append(s.PlayerList, pick(r, nicks)+strings.Repeat("_", r.Intn(3)))
			}
		}
		if flags.Has(ase.FlagResponding) {
			s.Responding = uint8(r.Intn(2))
		}
		if flags.Has(ase.FlagRestrictions) {
			s.Restriction = r.Uint32()
		}
		if flags.Has(ase.FlagSearchIgnore) {
			n := r.Intn(3)
			s.SearchIgnore = make([]models.IgnoreRange, 0, n)
			for j := 0; j < n; j++ {
				s.SearchIgnore = append(s.SearchIgnore, models.IgnoreRange{
					Offset: uint8(r.Intn(32)),
					Length: uint8(1 + r.Intn(8)),
				})
			}
		}
		if flags.Has(ase.FlagKeepAlive) {
			s.Keep = uint8(r.Intn(2))
		}
		if flags.Has(ase.FlagHTTPPort) {
			s.HTTPPort = s.Port + 2
		}
		if flags.Has(ase.FlagSpecial) {
			s.Special = uint8(r.Intn(4))
		}

		servers = append(servers, s)
	}

	return servers
}

// GenerateList encodes count random servers carrying every known field.
func GenerateList(r *rand.Rand, count int, sequence uint32) ([]byte, error) {
	servers := GenerateServers(r, count, ase.FlagAll)
	return ase.Encode(ase.Header{Flags: ase.FlagAll, Sequence: sequence}, servers)
}

func pick(r *rand.Rand, list []string) string {
	return list[r.Intn(len(list))]
}
