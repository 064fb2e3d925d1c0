package ase

import (
	"fmt"
	"strings"

	"github.com/woozymasta/mtalist/internal/models"
)

// Flag is a bitmask of optional record fields announced in the response header.
type Flag uint32

// Field bits. Bits 0x0001, 0x0002 and 0x010000-0x040000 are not used by the protocol.
const (
	FlagPlayerCount    Flag = 0x0004
	FlagMaxPlayerCount Flag = 0x0008
	FlagGameName       Flag = 0x0010
	FlagServerName     Flag = 0x0020
	FlagGameMode       Flag = 0x0040
	FlagMapName        Flag = 0x0080
	FlagServerVersion  Flag = 0x0100
	FlagPassworded     Flag = 0x0200
	FlagSerials        Flag = 0x0400
	FlagPlayerList     Flag = 0x0800
	FlagResponding     Flag = 0x1000
	FlagRestrictions   Flag = 0x2000
	FlagSearchIgnore   Flag = 0x4000
	FlagKeepAlive      Flag = 0x8000
	FlagHTTPPort       Flag = 0x080000
	FlagSpecial        Flag = 0x100000
)

// Field describes one optional record field: its bit and how it travels on the wire.
type Field struct {
	read  func(c *Cursor, s *models.Server) error
	write func(w *writer, s *models.Server) error
	Name  string
	Flag  Flag
}

// Fields lists every optional field in wire order (ascending bit value).
// Decoding, encoding and tests all walk this table.
var Fields = [...]Field{
	{
		Flag: FlagPlayerCount, Name: "players",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Players, err = c.Uint16(); return },
		write: func(w *writer, s *models.Server) error { w.uint16(s.Players); return nil },
	},
	{
		Flag: FlagMaxPlayerCount, Name: "maxplayers",
		read:  func(c *Cursor, s *models.Server) (err error) { s.MaxPlayers, err = c.Uint16(); return },
		write: func(w *writer, s *models.Server) error { w.uint16(s.MaxPlayers); return nil },
	},
	{
		Flag: FlagGameName, Name: "gamename",
		read:  func(c *Cursor, s *models.Server) (err error) { s.GameName, err = c.Text(); return },
		write: func(w *writer, s *models.Server) error { return w.text(s.GameName) },
	},
	{
		Flag: FlagServerName, Name: "name",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Name, err = c.Text(); return },
		write: func(w *writer, s *models.Server) error { return w.text(s.Name) },
	},
	{
		Flag: FlagGameMode, Name: "gamemode",
		read:  func(c *Cursor, s *models.Server) (err error) { s.GameMode, err = c.Text(); return },
		write: func(w *writer, s *models.Server) error { return w.text(s.GameMode) },
	},
	{
		Flag: FlagMapName, Name: "map",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Map, err = c.Text(); return },
		write: func(w *writer, s *models.Server) error { return w.text(s.Map) },
	},
	{
		Flag: FlagServerVersion, Name: "version",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Version, err = c.Text(); return },
		write: func(w *writer, s *models.Server) error { return w.text(s.Version) },
	},
	{
		Flag: FlagPassworded, Name: "password",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Password, err = c.Uint8(); return },
		write: func(w *writer, s *models.Server) error { w.uint8(s.Password); return nil },
	},
	{
		Flag: FlagSerials, Name: "serials",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Serials, err = c.Uint8(); return },
		write: func(w *writer, s *models.Server) error { w.uint8(s.Serials); return nil },
	},
	{
		Flag: FlagPlayerList, Name: "playerlist",
		read:  readPlayerList,
		write: writePlayerList,
	},
	{
		Flag: FlagResponding, Name: "responding",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Responding, err = c.Uint8(); return },
		write: func(w *writer, s *models.Server) error { w.uint8(s.Responding); return nil },
	},
	{
		Flag: FlagRestrictions, Name: "restriction",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Restriction, err = c.Uint32(); return },
		write: func(w *writer, s *models.Server) error { w.uint32(s.Restriction); return nil },
	},
	{
		Flag: FlagSearchIgnore, Name: "searchignore",
		read:  readSearchIgnore,
		write: writeSearchIgnore,
	},
	{
		Flag: FlagKeepAlive, Name: "keep",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Keep, err = c.Uint8(); return },
		write: func(w *writer, s *models.Server) error { w.uint8(s.Keep); return nil },
	},
	{
		Flag: FlagHTTPPort, Name: "http",
		read:  func(c *Cursor, s *models.Server) (err error) { s.HTTPPort, err = c.Uint16(); return },
		write: func(w *writer, s *models.Server) error { w.uint16(s.HTTPPort); return nil },
	},
	{
		Flag: FlagSpecial, Name: "special",
		read:  func(c *Cursor, s *models.Server) (err error) { s.Special, err = c.Uint8(); return },
		write: func(w *writer, s *models.Server) error { w.uint8(s.Special); return nil },
	},
}

// FlagAll is the union of every known field bit.
var FlagAll = func() Flag {
	var all Flag
	for _, f := range Fields {
		all |= f.Flag
	}

	return all
}()

// Has reports whether every bit of f is set.
func (fl Flag) Has(f Flag) bool {
	return fl&f == f
}

// Unknown returns the bits this decoder does not understand.
func (fl Flag) Unknown() Flag {
	return fl &^ FlagAll
}

// String renders known field names joined with "|", unknown bits as hex.
func (fl Flag) String() string {
	var names []string
	for _, f := range Fields {
		if fl.Has(f.Flag) {
			names = append(names, f.Name)
		}
	}
	if u := fl.Unknown(); u != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(u)))
	}
	if len(names) == 0 {
		return "none"
	}

	return strings.Join(names, "|")
}

func readPlayerList(c *Cursor, s *models.Server) error {
	count, err := c.Uint16()
	if err != nil {
		return err
	}

	s.PlayerList = make([]string, 0, min(int(count), c.Remaining()))
	for i := 0; i < int(count); i++ {
		name, err := c.Text()
		if err != nil {
			return err
		}
		s.PlayerList = append(s.PlayerList, name)
	}

	return nil
}

func writePlayerList(w *writer, s *models.Server) error {
	if len(s.PlayerList) > 0xFFFF {
		return fmt.Errorf("%w: %d players", ErrFieldTooLong, len(s.PlayerList))
	}

	w.uint16(uint16(len(s.PlayerList)))
	for _, name := range s.PlayerList {
		if err := w.text(name); err != nil {
			return err
		}
	}

	return nil
}

func readSearchIgnore(c *Cursor, s *models.Server) error {
	count, err := c.Uint8()
	if err != nil {
		return err
	}

	s.SearchIgnore = make([]models.IgnoreRange, 0, count)
	for i := 0; i < int(count); i++ {
		pair, err := c.Bytes(2)
		if err != nil {
			return err
		}
		s.SearchIgnore = append(s.SearchIgnore, models.IgnoreRange{Offset: pair[0], Length: pair[1]})
	}

	return nil
}

func writeSearchIgnore(w *writer, s *models.Server) error {
	if len(s.SearchIgnore) > 0xFF {
		return fmt.Errorf("%w: %d ignore ranges", ErrFieldTooLong, len(s.SearchIgnore))
	}

	w.uint8(uint8(len(s.SearchIgnore)))
	for _, r := range s.SearchIgnore {
		w.uint8(r.Offset)
		w.uint8(r.Length)
	}

	return nil
}
