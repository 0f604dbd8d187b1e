package contrast

import (
	"strconv"
	"strings"
)

// Text contrast minimums (SC 1.4.3)
const (
	MinTextRatio      = 4.5
	MinLargeTextRatio = 3.0
)

// Large text starts at 18pt, or 14pt when bold.
const (
	largeTextPx     = 24.0
	largeBoldTextPx = 18.66
)

// IsLargeText reports whether text of the given computed size and weight
// qualifies for the relaxed large-text minimum.
func IsLargeText(sizePx float64, weight string) bool {
	if sizePx >= largeTextPx {
		return true
	}
	return sizePx >= largeBoldTextPx && isBold(weight)
}

// MinRatioFor returns the contrast minimum for text of the given size and weight.
func MinRatioFor(sizePx float64, weight string) float64 {
	if IsLargeText(sizePx, weight) {
		return MinLargeTextRatio
	}
	return MinTextRatio
}

func isBold(weight string) bool {
	w := strings.ToLower(strings.TrimSpace(weight))
	switch w {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(w)
	return err == nil && n >= 700
}
