package drops

import (
	"fmt"
	"strings"

	dd "dice-drop-bot/internal/domain/dice"
)

const (
	megaMarker        = "MEGA DROP"
	normalDescription = "Be the first to react!"
	megaDescription   = "Everyone who reacts will collect this!"
)

// Kind tags how a drop is claimed.
type Kind string

const (
	KindNormal Kind = "normal"
	KindMega   Kind = "mega"
)

// Title renders the drop embed title, e.g. "Dice#4 Drop!".
func Title(c dd.Collectible, kind Kind) string {
	title := c.Name + " Drop!"
	if kind == KindMega {
		title += " — " + megaMarker + "!"
	}
	return title
}

func description(kind Kind) string {
	if kind == KindMega {
		return megaDescription
	}
	return normalDescription
}

// IsMegaTitle reports whether a drop title marks a mega drop.
func IsMegaTitle(title string) bool {
	return strings.Contains(title, megaMarker)
}

// ParseTitle reads the sequence number from the first token of a drop title.
func ParseTitle(title string) (int, error) {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty drop title")
	}
	return dd.ParseName(fields[0])
}
