package checks

import (
	"fmt"
	"strings"

	"github.com/bobdodd/auto-a11y/internal/contrast"
	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// Finding codes produced by the text contrast check
const (
	CodeTextLowContrast  = "ErrTextLowContrast"
	CodeTextManualReview = "WarnTextContrastManualCheck"
	CodeTextContrastPass = "PassTextContrast"
)

// TextContrast compares the computed colour of visible text with the
// background it is painted on. Only elements whose text is not repeated by
// a child element are evaluated, so a paragraph and its link are judged
// separately.
type TextContrast struct{}

// NewTextContrast creates the text contrast check.
func NewTextContrast() *TextContrast { return &TextContrast{} }

// ID implements Check.
func (*TextContrast) ID() models.CheckID { return models.CheckTextContrast }

// Touchpoint implements Check.
func (*TextContrast) Touchpoint() models.Touchpoint { return models.TouchpointColors }

// Run implements Check.
func (c *TextContrast) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	for _, el := range textLeaves(snap) {
		fg, err := contrast.ParseColor(el.Color)
		if err != nil || fg.IsTransparent() {
			continue
		}

		size := contrast.FontSizePx(el.FontSize)
		surf := resolveSurface(snap, el, false)
		switch surf.kind {
		case surfaceGradient, surfaceImage, surfaceUnparseable:
			out.Warnings = append(out.Warnings, finding(c, CodeTextManualReview, models.ImpactMedium, el,
				"Text is drawn over a background whose colour cannot be computed", "1.4.3"))
			continue
		}

		bg := surf.color
		ratio := contrast.Ratio(fg.Over(bg), bg)
		meta := models.ContrastMetadata{
			Ratio:      contrast.Round2(ratio),
			Foreground: fg.String(),
			Background: bg.String(),
			FontSize:   round2(size),
		}
		minRatio := contrast.MinRatioFor(size, el.FontWeight)
		if ratio < minRatio {
			f := finding(c, CodeTextLowContrast, models.ImpactHigh, el,
				fmt.Sprintf("Text contrast is %.2f:1; at least %.1f:1 is required", meta.Ratio, minRatio), "1.4.3")
			f.Metadata = meta
			out.Violations = append(out.Violations, f)
			continue
		}
		f := finding(c, CodeTextContrastPass, models.ImpactNone, el, "Text has sufficient contrast", "1.4.3")
		f.Metadata = meta
		out.Passes = append(out.Passes, f)
	}
	return out
}

// textLeaves returns visible elements with a text colour whose text is not
// also carried by one of their element children.
func textLeaves(snap *dom.Snapshot) []*dom.Element {
	hasTextChild := make(map[int]bool)
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if el.Parent >= 0 && strings.TrimSpace(el.Text) != "" {
			hasTextChild[el.Parent] = true
		}
	}
	return snap.Filter(func(e *dom.Element) bool {
		return e.Visible && e.Color != "" && strings.TrimSpace(e.Text) != "" && !hasTextChild[e.Index]
	})
}
