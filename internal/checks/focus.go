package checks

import (
	"fmt"
	"math"
	"strings"

	"github.com/bobdodd/auto-a11y/internal/contrast"
	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// Focus outline thresholds in CSS pixels
const (
	MinOutlineWidthPx  = 2.0
	MinOutlineOffsetPx = 2.0
)

// Finding codes produced by the focus-contrast analyzer
const (
	CodeOutlineTooThin      = "ErrFocusOutlineTooThin"
	CodeOutlineOffsetSmall  = "ErrFocusOutlineOffsetTooSmall"
	CodeOutlineLowContrast  = "ErrFocusOutlineLowContrast"
	CodeOutlineManualReview = "WarnFocusOutlineManualCheck"
	CodeOutlineContrastPass = "PassFocusOutlineContrast"
)

// Reasons attached to manual-verification findings
const (
	ReasonControlStacking  = "control-forms-stacking-context"
	ReasonAmbiguousParent  = "parent-background-ambiguous"
	ReasonOutlineEscapes   = "outline-exceeds-parent"
	ReasonGradientSurface  = "gradient-background"
	ReasonImageSurface     = "image-background"
	ReasonUnresolvedColor  = "unresolved-color"
	ReasonUnresolvedWidth  = "unresolved-outline-width"
	ReasonUnresolvedOffset = "unresolved-outline-offset"
)

const (
	surfaceParent = "parent"
	surfaceSelf   = "self"
)

// Verdict is the decision reached for one focusable control.
type Verdict int

// Focus outline verdicts
const (
	VerdictSkip      Verdict = iota // no outline to evaluate
	VerdictPass                     // outline contrast is adequate
	VerdictViolation                // outline fails a measurable rule
	VerdictManual                   // outline cannot be judged automatically
)

// String returns the string representation of Verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictSkip:
		return "skip"
	case VerdictPass:
		return "pass"
	case VerdictViolation:
		return "violation"
	case VerdictManual:
		return "manual"
	default:
		return "unknown"
	}
}

// FocusDecision is the analyzer's output for one control.
type FocusDecision struct {
	Verdict  Verdict
	Code     string
	Metadata models.FocusMetadata
}

// FocusContrast decides whether each focusable control's focus outline has
// adequate contrast against the surface it is drawn on.
type FocusContrast struct {
	minRatio float64
}

// NewFocusContrast creates the analyzer with the WCAG non-text contrast threshold.
func NewFocusContrast() *FocusContrast {
	return &FocusContrast{minRatio: contrast.MinNonTextRatio}
}

// ID implements Check.
func (*FocusContrast) ID() models.CheckID { return models.CheckFocusContrast }

// Touchpoint implements Check.
func (*FocusContrast) Touchpoint() models.Touchpoint { return models.TouchpointFocus }

// Run implements Check.
func (c *FocusContrast) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	for _, el := range snap.Filter(func(e *dom.Element) bool { return e.Focusable && e.Visible && e.Focus != nil }) {
		d := c.Evaluate(snap, el)
		var f models.Finding
		switch d.Verdict {
		case VerdictSkip:
			continue
		case VerdictPass:
			f = finding(c, d.Code, models.ImpactNone, el, "Focus outline has sufficient contrast", "1.4.11", "2.4.7")
			f.Metadata = d.Metadata
			out.Passes = append(out.Passes, f)
		case VerdictViolation:
			f = finding(c, d.Code, models.ImpactHigh, el, describeViolation(d), "1.4.11", "2.4.7")
			f.Metadata = d.Metadata
			out.Violations = append(out.Violations, f)
		case VerdictManual:
			f = finding(c, d.Code, models.ImpactMedium, el,
				fmt.Sprintf("Focus outline needs manual verification (%s)", d.Metadata.Reason), "1.4.11", "2.4.7")
			f.Metadata = d.Metadata
			out.Warnings = append(out.Warnings, f)
		}
	}
	return out
}

func describeViolation(d FocusDecision) string {
	m := d.Metadata
	switch d.Code {
	case CodeOutlineTooThin:
		return fmt.Sprintf("Focus outline is %.2gpx wide; at least %.0fpx is required", m.OutlineWidthPx, MinOutlineWidthPx)
	case CodeOutlineOffsetSmall:
		return fmt.Sprintf("Focus outline offset is %.2gpx; at least %.0fpx is required", m.OutlineOffsetPx, MinOutlineOffsetPx)
	default:
		return fmt.Sprintf("Focus outline contrast is %.2f:1 against %s; at least 3:1 is required", m.Ratio, m.SurfaceColor)
	}
}

// Evaluate runs the decision chain for a single control. The first rule
// that matches decides; later rules are not evaluated.
func (c *FocusContrast) Evaluate(snap *dom.Snapshot, el *dom.Element) FocusDecision {
	if el.Focus == nil {
		return FocusDecision{Verdict: VerdictSkip}
	}
	style := strings.ToLower(strings.TrimSpace(el.Focus.Style))
	if style == "none" || style == "hidden" {
		return FocusDecision{Verdict: VerdictSkip}
	}

	fontSize := contrast.FontSizePx(el.FontSize)
	rootSize := contrast.FontSizePx(snap.RootFontSize)
	width, err := contrast.ToPixels(el.Focus.Width, fontSize, rootSize)
	if err != nil {
		return manual(models.FocusMetadata{Reason: ReasonUnresolvedWidth, OutlineColor: el.Focus.Color})
	}
	offset, offsetErr := contrast.ToPixels(el.Focus.Offset, fontSize, rootSize)
	meta := models.FocusMetadata{
		OutlineWidthPx:  round2(width),
		OutlineOffsetPx: round2(offset),
		OutlineColor:    el.Focus.Color,
	}
	if width <= 0 {
		return FocusDecision{Verdict: VerdictSkip}
	}

	// 1. thickness
	if width < MinOutlineWidthPx {
		return FocusDecision{Verdict: VerdictViolation, Code: CodeOutlineTooThin, Metadata: meta}
	}
	if offsetErr != nil {
		meta.Reason = ReasonUnresolvedOffset
		return manual(meta)
	}
	// 2. separation from the control; offset 0 draws on the control itself
	if offset != 0 && offset < MinOutlineOffsetPx {
		return FocusDecision{Verdict: VerdictViolation, Code: CodeOutlineOffsetSmall, Metadata: meta}
	}

	outline, err := contrast.ParseColor(el.Focus.Color)
	if err != nil {
		meta.Reason = ReasonUnresolvedColor
		return manual(meta)
	}

	// 3. the surface behind the outline
	if offset > 0 {
		meta.Surface = surfaceParent
		return c.againstParent(snap, el, outline, width, offset, meta)
	}
	meta.Surface = surfaceSelf
	return c.againstSelf(snap, el, outline, meta)
}

// 4. outline drawn in the gap between the control and its parent
func (c *FocusContrast) againstParent(snap *dom.Snapshot, el *dom.Element, outline contrast.Color, width, offset float64, meta models.FocusMetadata) FocusDecision {
	if el.StackingContext {
		meta.Reason = ReasonControlStacking
		return manual(meta)
	}
	parent := snap.Parent(el)
	if parent == nil {
		meta.Reason = ReasonAmbiguousParent
		return manual(meta)
	}
	surf := resolveSurface(snap, parent, true)
	switch surf.kind {
	case surfaceAmbiguous:
		meta.Reason = ReasonAmbiguousParent
		return manual(meta)
	case surfaceUnparseable:
		meta.Reason = ReasonUnresolvedColor
		return manual(meta)
	}
	if escapesParent(el.Rect, parent.Rect, offset+width) {
		meta.Reason = ReasonOutlineEscapes
		return manual(meta)
	}
	if d, ok := imageSurface(surf, meta); ok {
		return d
	}
	return c.compare(outline, surf.color, meta)
}

// 5. outline drawn on the control's own background
func (c *FocusContrast) againstSelf(snap *dom.Snapshot, el *dom.Element, outline contrast.Color, meta models.FocusMetadata) FocusDecision {
	surf := resolveSurface(snap, el, false)
	if surf.kind == surfaceUnparseable {
		meta.Reason = ReasonUnresolvedColor
		return manual(meta)
	}
	if d, ok := imageSurface(surf, meta); ok {
		return d
	}
	return c.compare(outline, surf.color, meta)
}

func (c *FocusContrast) compare(outline, bg contrast.Color, meta models.FocusMetadata) FocusDecision {
	fg := outline.Over(bg)
	ratio := contrast.Ratio(fg, bg)
	meta.Ratio = contrast.Round2(ratio)
	meta.SurfaceColor = bg.String()
	if ratio < c.minRatio {
		return FocusDecision{Verdict: VerdictViolation, Code: CodeOutlineLowContrast, Metadata: meta}
	}
	return FocusDecision{Verdict: VerdictPass, Code: CodeOutlineContrastPass, Metadata: meta}
}

func imageSurface(surf surface, meta models.FocusMetadata) (FocusDecision, bool) {
	switch surf.kind {
	case surfaceGradient:
		meta.Reason = ReasonGradientSurface
		return manual(meta), true
	case surfaceImage:
		meta.Reason = ReasonImageSurface
		return manual(meta), true
	}
	return FocusDecision{}, false
}

func manual(meta models.FocusMetadata) FocusDecision {
	return FocusDecision{Verdict: VerdictManual, Code: CodeOutlineManualReview, Metadata: meta}
}

// escapesParent reports whether an outline extending extent px beyond the
// control leaves the parent's box on any side.
func escapesParent(control, parent dom.Rect, extent float64) bool {
	gaps := []float64{
		control.Left() - parent.Left(),
		parent.Right() - control.Right(),
		control.Top() - parent.Top(),
		parent.Bottom() - control.Bottom(),
	}
	for _, g := range gaps {
		if extent > g {
			return true
		}
	}
	return false
}

type surfaceKind int

const (
	surfaceSolid surfaceKind = iota
	surfaceAmbiguous
	surfaceGradient
	surfaceImage
	surfaceUnparseable
)

type surface struct {
	kind  surfaceKind
	color contrast.Color
}

// resolveSurface walks from start towards the root compositing translucent
// backgrounds until an opaque colour is found. With stopAtStacking the walk
// gives up at the first stacking context that is not itself opaque, because
// content from other layers may be painted between it and its ancestors.
// Reaching the root composites over the white canvas.
func resolveSurface(snap *dom.Snapshot, start *dom.Element, stopAtStacking bool) surface {
	var layers []contrast.Color
	for el := start; el != nil; el = snap.Parent(el) {
		if el.Background.HasGradient() {
			return surface{kind: surfaceGradient}
		}
		if el.Background.HasImage() {
			return surface{kind: surfaceImage}
		}
		col := contrast.Transparent
		if strings.TrimSpace(el.Background.Color) != "" {
			parsed, err := contrast.ParseColor(el.Background.Color)
			if err != nil {
				return surface{kind: surfaceUnparseable}
			}
			col = parsed
		}
		if !col.IsTransparent() {
			layers = append(layers, col)
		}
		if col.Opaque() {
			return surface{kind: surfaceSolid, color: composite(layers, col)}
		}
		if stopAtStacking && el.StackingContext {
			return surface{kind: surfaceAmbiguous}
		}
	}
	return surface{kind: surfaceSolid, color: composite(layers, contrast.White)}
}

// composite paints layers (nearest first) over base.
func composite(layers []contrast.Color, base contrast.Color) contrast.Color {
	out := base
	for i := len(layers) - 1; i >= 0; i-- {
		out = layers[i].Over(out)
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
