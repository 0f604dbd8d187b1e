// Package contrast implements WCAG colour contrast and CSS length helpers.
package contrast

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MinNonTextRatio is the WCAG 2.x minimum contrast for user interface
// components and focus indicators (SC 1.4.11).
const MinNonTextRatio = 3.0

// Color is an sRGB colour with alpha in [0,1].
type Color struct {
	R, G, B uint8
	A       float64
}

// Common colours
var (
	White       = Color{255, 255, 255, 1}
	Black       = Color{0, 0, 0, 1}
	Transparent = Color{0, 0, 0, 0}
)

var namedColors = map[string]Color{
	"black":       Black,
	"white":       White,
	"transparent": Transparent,
	"red":         {255, 0, 0, 1},
	"green":       {0, 128, 0, 1},
	"blue":        {0, 0, 255, 1},
	"yellow":      {255, 255, 0, 1},
	"gray":        {128, 128, 128, 1},
	"grey":        {128, 128, 128, 1},
	"silver":      {192, 192, 192, 1},
	"navy":        {0, 0, 128, 1},
	"orange":      {255, 165, 0, 1},
	"purple":      {128, 0, 128, 1},
}

// Opaque reports whether the colour fully covers what is beneath it.
func (c Color) Opaque() bool { return c.A >= 1 }

// IsTransparent reports whether the colour has no coverage at all.
func (c Color) IsTransparent() bool { return c.A <= 0 }

// String formats the colour the way browsers report computed values.
func (c Color) String() string {
	if c.Opaque() {
		return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// ParseColor parses computed CSS colour values: rgb()/rgba() in comma or
// space syntax, #rgb/#rrggbb/#rrggbbaa and a small set of keywords.
func ParseColor(s string) (Color, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return Color{}, fmt.Errorf("empty colour")
	}
	if c, ok := namedColors[v]; ok {
		return c, nil
	}
	if strings.HasPrefix(v, "#") {
		return parseHex(v[1:])
	}
	if strings.HasPrefix(v, "rgb(") || strings.HasPrefix(v, "rgba(") {
		return parseRGB(v)
	}
	return Color{}, fmt.Errorf("unsupported colour %q", s)
}

func parseHex(h string) (Color, error) {
	expand := func(s string) string {
		var sb strings.Builder
		for _, r := range s {
			sb.WriteRune(r)
			sb.WriteRune(r)
		}
		return sb.String()
	}
	switch len(h) {
	case 3, 4:
		h = expand(h)
	case 6, 8:
	default:
		return Color{}, fmt.Errorf("invalid hex colour #%s", h)
	}
	n, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid hex colour #%s: %w", h, err)
	}
	c := Color{A: 1}
	if len(h) == 8 {
		c.A = float64(n&0xff) / 255
		n >>= 8
	}
	c.R, c.G, c.B = uint8(n>>16), uint8(n>>8), uint8(n)
	return c, nil
}

func parseRGB(v string) (Color, error) {
	open := strings.IndexByte(v, '(')
	if open < 0 || !strings.HasSuffix(v, ")") {
		return Color{}, fmt.Errorf("malformed colour %q", v)
	}
	body := v[open+1 : len(v)-1]
	body = strings.ReplaceAll(body, "/", " ")
	body = strings.ReplaceAll(body, ",", " ")
	parts := strings.Fields(body)
	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("malformed colour %q", v)
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		f, err := parseChannel(parts[i])
		if err != nil {
			return Color{}, fmt.Errorf("colour %q: %w", v, err)
		}
		ch[i] = f
	}
	c := Color{R: ch[0], G: ch[1], B: ch[2], A: 1}
	if len(parts) == 4 {
		a, err := parseAlpha(parts[3])
		if err != nil {
			return Color{}, fmt.Errorf("colour %q: %w", v, err)
		}
		c.A = a
	}
	return c, nil
}

func parseChannel(s string) (uint8, error) {
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return clampByte(f * 255 / 100), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return clampByte(f), nil
}

func parseAlpha(s string) (float64, error) {
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0, err
		}
		return math.Max(0, math.Min(1, f/100)), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return math.Max(0, math.Min(1, f)), nil
}

func clampByte(f float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, f))))
}

// Over composites c on top of below (source-over).
func (c Color) Over(below Color) Color {
	if c.Opaque() {
		return c
	}
	a := c.A + below.A*(1-c.A)
	if a <= 0 {
		return Transparent
	}
	mix := func(top, bottom uint8) uint8 {
		return clampByte((float64(top)*c.A + float64(bottom)*below.A*(1-c.A)) / a)
	}
	return Color{R: mix(c.R, below.R), G: mix(c.G, below.G), B: mix(c.B, below.B), A: a}
}

// RelativeLuminance returns the WCAG relative luminance of an opaque colour.
func RelativeLuminance(c Color) float64 {
	lin := func(v uint8) float64 {
		s := float64(v) / 255
		if s <= 0.03928 {
			return s / 12.92
		}
		return math.Pow((s+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}

// Ratio returns the WCAG contrast ratio between two opaque colours, in [1,21].
func Ratio(a, b Color) float64 {
	la, lb := RelativeLuminance(a), RelativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// Round2 rounds a ratio to two decimals for reporting.
func Round2(r float64) float64 {
	return math.Round(r*100) / 100
}
