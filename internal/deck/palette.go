package deck

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Color is a 24-bit sRGB fill color.
type Color struct {
	R, G, B uint8
}

// Hex renders the color as the uppercase RRGGBB form used by DrawingML.
func (c Color) Hex() string {
	return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B)
}

var hexRe = regexp.MustCompile(`^#?([0-9a-fA-F]{6})$`)

// ParseColor parses "#RRGGBB" or "RRGGBB".
func ParseColor(s string) (Color, error) {
	m := hexRe.FindStringSubmatch(s)
	if m == nil {
		return Color{}, fmt.Errorf("invalid color %q: want #RRGGBB", s)
	}
	var c Color
	fmt.Sscanf(m[1], "%02x%02x%02x", &c.R, &c.G, &c.B)
	return c, nil
}

// White is the fill used for unattributed text.
var White = Color{0xFF, 0xFF, 0xFF}

// Palette is the speaker color configuration: explicit per-name colors plus
// a pool cycled through for speakers not listed.
type Palette struct {
	Fixed map[string]Color
	Pool  []Color
}

// DefaultPalette returns the built-in speaker colors.
func DefaultPalette() Palette {
	return Palette{
		Fixed: map[string]Color{
			"仲條": {0x00, 0xFD, 0xFF},
			"三村": {0xFF, 0xFF, 0xFF},
			"星野": {0xFF, 0xFF, 0x00},
		},
		Pool: []Color{
			{0xFF, 0x40, 0xFF},
			{0xFF, 0xA5, 0x00},
			{0xFF, 0xFB, 0x00},
		},
	}
}

// paletteFile is the YAML structure for an external palette.
type paletteFile struct {
	Speakers map[string]string `yaml:"speakers"`
	Pool     []string          `yaml:"pool"`
}

// LoadPalette reads a palette from a YAML file. Entries extend or override
// the defaults; an empty pool keeps the default pool. The file is optional
// config, so a missing, malformed, or partially invalid file never yields an
// unusable palette: the defaults are returned alongside the error and the
// caller can log and keep going.
func LoadPalette(path string) (Palette, error) {
	p := DefaultPalette()

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultPalette(), fmt.Errorf("read palette file: %w", err)
	}

	var f paletteFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return DefaultPalette(), fmt.Errorf("parse palette file: %w", err)
	}

	for name, hex := range f.Speakers {
		c, err := ParseColor(hex)
		if err != nil {
			return DefaultPalette(), fmt.Errorf("speaker %q: %w", name, err)
		}
		p.Fixed[name] = c
	}
	if len(f.Pool) > 0 {
		pool := make([]Color, 0, len(f.Pool))
		for _, hex := range f.Pool {
			c, err := ParseColor(hex)
			if err != nil {
				return DefaultPalette(), fmt.Errorf("pool entry %q: %w", hex, err)
			}
			pool = append(pool, c)
		}
		p.Pool = pool
	}
	return p, nil
}

// Assigner hands out colors per speaker within one conversion. Fixed names
// always get their palette color; new names draw from the pool round-robin
// and keep their color for the rest of the deck.
type Assigner struct {
	palette  Palette
	assigned map[string]Color
	next     int
}

// NewAssigner creates an Assigner over the given palette.
func NewAssigner(p Palette) *Assigner {
	return &Assigner{palette: p, assigned: make(map[string]Color)}
}

// Color returns the color for a speaker name.
func (a *Assigner) Color(name string) Color {
	if name == "" {
		return White
	}
	if c, ok := a.palette.Fixed[name]; ok {
		return c
	}
	if c, ok := a.assigned[name]; ok {
		return c
	}
	if len(a.palette.Pool) == 0 {
		return White
	}
	c := a.palette.Pool[a.next%len(a.palette.Pool)]
	a.assigned[name] = c
	a.next++
	return c
}
