package model

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// ErrInvalidColor is returned when a color string cannot be parsed.
var ErrInvalidColor = errors.New("invalid color")

// Color is an opaque RGB display color.
type Color struct {
	R, G, B uint8
}

// Neutral colors a key shows when nobody holds it.
var (
	White = Color{R: 0xff, G: 0xff, B: 0xff}
	Black = Color{R: 0x00, G: 0x00, B: 0x00}
)

// Palette holds the colors the relay hands out and the fallback pool for
// clients whose assignment has not been seen. White and black are
// excluded so a pressed key is always distinguishable from a neutral one.
var Palette = []Color{
	{R: 0xe6, G: 0x19, B: 0x4b}, // red
	{R: 0x3c, G: 0xb4, B: 0x4b}, // green
	{R: 0x43, G: 0x63, B: 0xd8}, // blue
	{R: 0xf5, G: 0x82, B: 0x31}, // orange
	{R: 0x91, G: 0x1e, B: 0xb4}, // purple
	{R: 0x46, G: 0xf0, B: 0xf0}, // cyan
	{R: 0xf0, G: 0x32, B: 0xe6}, // magenta
	{R: 0xbc, G: 0xf6, B: 0x0c}, // lime
	{R: 0xfa, G: 0xbe, B: 0xd4}, // pink
	{R: 0x00, G: 0x80, B: 0x80}, // teal
	{R: 0x9a, G: 0x63, B: 0x24}, // brown
	{R: 0xff, G: 0xe1, B: 0x19}, // yellow
}

// FallbackColor derives a stable palette color from a client id.
func FallbackColor(id ClientID) Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return Palette[h.Sum32()%uint32(len(Palette))]
}

// Hex renders the color as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// String implements fmt.Stringer.
func (c Color) String() string { return c.Hex() }

// ParseColor parses #rrggbb (the leading # is optional).
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
