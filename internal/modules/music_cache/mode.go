package musiccache

import (
	"fmt"
	"strings"
)

// Mode selects what gets cached.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeMusicOnly
	ModeFull
)

// ParseMode parses disabled, music_only or full.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "disabled", "off":
		return ModeDisabled, nil
	case "music_only", "music-only", "music":
		return ModeMusicOnly, nil
	case "full":
		return ModeFull, nil
	}
	return ModeDisabled, fmt.Errorf("unknown cache mode %q", value)
}

func (m Mode) String() string {
	switch m {
	case ModeMusicOnly:
		return "music_only"
	case ModeFull:
		return "full"
	default:
		return "disabled"
	}
}

// Thumbnails reports whether artwork is cached too.
func (m Mode) Thumbnails() bool {
	return m == ModeFull
}
