package contrast

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultFontSize is the browser default font size in pixels.
const DefaultFontSize = 16.0

// outline-width keywords as rendered by Chromium
var widthKeywords = map[string]float64{
	"thin":   1,
	"medium": 3,
	"thick":  5,
}

// ToPixels converts a computed CSS length to pixels. Relative units resolve
// against fontSize (em) and rootFontSize (rem); both fall back to 16px.
func ToPixels(value string, fontSize, rootFontSize float64) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "0" || v == "none" {
		return 0, nil
	}
	if px, ok := widthKeywords[v]; ok {
		return px, nil
	}
	if fontSize <= 0 {
		fontSize = DefaultFontSize
	}
	if rootFontSize <= 0 {
		rootFontSize = DefaultFontSize
	}

	units := []struct {
		suffix string
		scale  float64
	}{
		{"rem", rootFontSize},
		{"em", fontSize},
		{"px", 1},
		{"pt", 96.0 / 72.0},
	}
	for _, u := range units {
		if strings.HasSuffix(v, u.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(v, u.suffix), 64)
			if err != nil {
				return 0, fmt.Errorf("invalid length %q: %w", value, err)
			}
			return n * u.scale, nil
		}
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", value)
	}
	return n, nil
}

// FontSizePx parses a computed font-size, defaulting to 16px when unset or invalid.
func FontSizePx(value string) float64 {
	px, err := ToPixels(value, DefaultFontSize, DefaultFontSize)
	if err != nil || px <= 0 {
		return DefaultFontSize
	}
	return px
}
