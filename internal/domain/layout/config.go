package layout

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New for an inconsistent Config.
var ErrInvalidConfig = errors.New("invalid layout config")

// Config is the immutable geometry input of a Layout. Widths are in base
// units; the unit itself is WindowWidth / ReferenceWidth (at least 1).
type Config struct {
	NumKeys     int
	SkinnyIndex int
	FatIndices  []int
	BaseNote    int

	WindowWidth    int
	ReferenceWidth int

	TopWhite  int
	TopBlack  int
	TopSkinny int

	BottomWhite  int
	BottomFat    int
	BottomSkinny int
}

// DefaultConfig returns the one-octave keyboard: C to B starting at middle
// C, with the E–F gap drawn as a narrow black spacer.
func DefaultConfig() Config {
	return Config{
		NumKeys:        13,
		SkinnyIndex:    5,
		FatIndices:     []int{8, 10},
		BaseNote:       60,
		WindowWidth:    2000,
		ReferenceWidth: 2000,
		TopWhite:       110,
		TopBlack:       140,
		TopSkinny:      60,
		BottomWhite:    200,
		BottomFat:      205,
		BottomSkinny:   20,
	}
}

// WithWindowWidth returns a copy of c scaled for another window width.
func (c Config) WithWindowWidth(width int) Config {
	if width > 0 {
		c.WindowWidth = width
	}
	c.FatIndices = append([]int(nil), c.FatIndices...)
	return c
}

func (c Config) validate() error {
	switch {
	case c.NumKeys <= 0:
		return fmt.Errorf("%w: num keys must be positive", ErrInvalidConfig)
	case c.SkinnyIndex < 0 || c.SkinnyIndex >= c.NumKeys:
		return fmt.Errorf("%w: skinny index %d out of range", ErrInvalidConfig, c.SkinnyIndex)
	case c.SkinnyIndex%2 == 0:
		return fmt.Errorf("%w: skinny index %d must be odd", ErrInvalidConfig, c.SkinnyIndex)
	case c.ReferenceWidth <= 0:
		return fmt.Errorf("%w: reference width must be positive", ErrInvalidConfig)
	}
	for _, i := range c.FatIndices {
		if i < 0 || i >= c.NumKeys || i%2 != 0 {
			return fmt.Errorf("%w: fat index %d must be an even slot", ErrInvalidConfig, i)
		}
	}
	return nil
}

func (c Config) unit() int {
	u := c.WindowWidth / c.ReferenceWidth
	if u < 1 {
		u = 1
	}
	return u
}

func (c Config) shapeOf(i int) Shape {
	switch {
	case i == c.SkinnyIndex:
		return BlackSkinny
	case i%2 == 1:
		return Black
	case c.isFat(i):
		return WhiteFat
	default:
		return White
	}
}

func (c Config) isFat(i int) bool {
	for _, f := range c.FatIndices {
		if f == i {
			return true
		}
	}
	return false
}

func (c Config) topWidth(s Shape) int {
	switch s {
	case Black:
		return c.TopBlack
	case BlackSkinny:
		return c.TopSkinny
	default:
		return c.TopWhite
	}
}

func (c Config) bottomWidth(s Shape) int {
	switch s {
	case White:
		return c.BottomWhite
	case WhiteFat:
		return c.BottomFat
	default:
		return c.BottomSkinny
	}
}
