package checks

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// ImageAlt flags rendered images without an alt attribute.
type ImageAlt struct{}

// ID implements Check.
func (ImageAlt) ID() models.CheckID { return models.CheckImageAlt }

// Touchpoint implements Check.
func (ImageAlt) Touchpoint() models.Touchpoint { return models.TouchpointImages }

// Run implements Check.
func (c ImageAlt) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	for _, img := range snap.ByTag("img") {
		if !img.Visible || img.AttrText("role") == "presentation" || img.AttrText("aria-hidden") == "true" {
			continue
		}
		alt, ok := img.Attr("alt")
		switch {
		case !ok:
			out.Violations = append(out.Violations, finding(c, "ErrImageWithNoAlt", models.ImpactHigh, img,
				"Image has no alt attribute", "1.1.1"))
		case strings.TrimSpace(alt) == "":
			out.Discoveries = append(out.Discoveries, finding(c, "DiscoDecorativeImage", models.ImpactNone, img,
				"Image is marked decorative with an empty alt attribute", "1.1.1"))
		default:
			out.Passes = append(out.Passes, finding(c, "PassImageAlt", models.ImpactNone, img,
				"Image has alternative text", "1.1.1"))
		}
	}
	return out
}

// DocumentLanguage flags documents without a lang attribute.
type DocumentLanguage struct{}

// ID implements Check.
func (DocumentLanguage) ID() models.CheckID { return models.CheckDocumentLanguage }

// Touchpoint implements Check.
func (DocumentLanguage) Touchpoint() models.Touchpoint { return models.TouchpointPage }

// Run implements Check.
func (c DocumentLanguage) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	var root *dom.Element
	if len(snap.Elements) > 0 {
		root = &snap.Elements[0]
	}
	if strings.TrimSpace(snap.Lang) == "" {
		out.Violations = append(out.Violations, finding(c, "ErrNoPageLanguage", models.ImpactHigh, root,
			"Document has no lang attribute", "3.1.1"))
		return out
	}
	out.Passes = append(out.Passes, finding(c, "PassPageLanguage", models.ImpactNone, root,
		fmt.Sprintf("Document language is %q", snap.Lang), "3.1.1"))
	return out
}

// PageTitle flags documents with an empty title.
type PageTitle struct{}

// ID implements Check.
func (PageTitle) ID() models.CheckID { return models.CheckPageTitle }

// Touchpoint implements Check.
func (PageTitle) Touchpoint() models.Touchpoint { return models.TouchpointPage }

// Run implements Check.
func (c PageTitle) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	titles := snap.ByTag("title")
	var el *dom.Element
	if len(titles) > 0 {
		el = titles[0]
	}
	if strings.TrimSpace(snap.Title) == "" {
		out.Violations = append(out.Violations, finding(c, "ErrEmptyPageTitle", models.ImpactHigh, el,
			"Page has no title", "2.4.2"))
		return out
	}
	out.Passes = append(out.Passes, finding(c, "PassPageTitle", models.ImpactNone, el,
		"Page has a title", "2.4.2"))
	return out
}

// LinkName flags links without an accessible name.
type LinkName struct{}

// ID implements Check.
func (LinkName) ID() models.CheckID { return models.CheckLinkName }

// Touchpoint implements Check.
func (LinkName) Touchpoint() models.Touchpoint { return models.TouchpointLinks }

// Run implements Check.
func (c LinkName) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	for _, a := range snap.ByTag("a") {
		if _, ok := a.Attr("href"); !ok || !a.Visible {
			continue
		}
		if accessibleName(snap, a) == "" {
			out.Violations = append(out.Violations, finding(c, "ErrLinkWithNoText", models.ImpactHigh, a,
				"Link has no accessible name", "2.4.4", "4.1.2"))
			continue
		}
		out.Passes = append(out.Passes, finding(c, "PassLinkName", models.ImpactNone, a,
			"Link has an accessible name", "2.4.4"))
	}
	return out
}

// ButtonName flags buttons without an accessible name.
type ButtonName struct{}

// ID implements Check.
func (ButtonName) ID() models.CheckID { return models.CheckButtonName }

// Touchpoint implements Check.
func (ButtonName) Touchpoint() models.Touchpoint { return models.TouchpointButtons }

// Run implements Check.
func (c ButtonName) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	buttons := snap.Filter(func(e *dom.Element) bool {
		if !e.Visible {
			return false
		}
		switch e.Tag {
		case "button":
			return true
		case "input":
			t := strings.ToLower(e.AttrText("type"))
			return t == "button" || t == "submit" || t == "reset"
		}
		return e.AttrText("role") == "button"
	})
	for _, b := range buttons {
		name := accessibleName(snap, b)
		if name == "" && b.Tag == "input" {
			name = b.AttrText("value")
		}
		if name == "" {
			out.Violations = append(out.Violations, finding(c, "ErrButtonNoText", models.ImpactHigh, b,
				"Button has no accessible name", "4.1.2"))
			continue
		}
		out.Passes = append(out.Passes, finding(c, "PassButtonName", models.ImpactNone, b,
			"Button has an accessible name", "4.1.2"))
	}
	return out
}

// FormLabel flags form fields without a programmatic label.
type FormLabel struct{}

// ID implements Check.
func (FormLabel) ID() models.CheckID { return models.CheckFormLabel }

// Touchpoint implements Check.
func (FormLabel) Touchpoint() models.Touchpoint { return models.TouchpointForms }

var unlabelledInputTypes = map[string]bool{
	"hidden": true, "submit": true, "button": true, "reset": true, "image": true,
}

// Run implements Check.
func (c FormLabel) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	for _, field := range snap.ByTag("input", "select", "textarea") {
		if !field.Visible || (field.Tag == "input" && unlabelledInputTypes[strings.ToLower(field.AttrText("type"))]) {
			continue
		}
		if hasLabel(snap, field) {
			out.Passes = append(out.Passes, finding(c, "PassFieldLabel", models.ImpactNone, field,
				"Form field has a label", "1.3.1", "4.1.2"))
			continue
		}
		out.Violations = append(out.Violations, finding(c, "ErrFieldNoLabel", models.ImpactHigh, field,
			"Form field has no label", "1.3.1", "4.1.2"))
	}
	return out
}

// HeadingOrder warns when heading levels skip.
type HeadingOrder struct{}

// ID implements Check.
func (HeadingOrder) ID() models.CheckID { return models.CheckHeadingOrder }

// Touchpoint implements Check.
func (HeadingOrder) Touchpoint() models.Touchpoint { return models.TouchpointHeadings }

// Run implements Check.
func (c HeadingOrder) Run(snap *dom.Snapshot) Outcome {
	var out Outcome
	prev := 0
	for _, h := range snap.ByTag("h1", "h2", "h3", "h4", "h5", "h6") {
		if !h.Visible {
			continue
		}
		level, _ := strconv.Atoi(h.Tag[1:])
		if prev > 0 && level > prev+1 {
			f := finding(c, "WarnSkippedHeadingLevel", models.ImpactMedium, h,
				fmt.Sprintf("Heading level jumps from h%d to h%d", prev, level), "1.3.1")
			f.Metadata = models.GenericMetadata{"previous_level": prev, "level": level}
			out.Warnings = append(out.Warnings, f)
		} else {
			out.Passes = append(out.Passes, finding(c, "PassHeadingOrder", models.ImpactNone, h,
				"Heading follows the document outline", "1.3.1"))
		}
		prev = level
	}
	return out
}

// accessibleName approximates the accessible name computation for the
// attributes the snapshot captures.
func accessibleName(snap *dom.Snapshot, el *dom.Element) string {
	if v := el.AttrText("aria-label"); v != "" {
		return v
	}
	if ids := strings.Fields(el.AttrText("aria-labelledby")); len(ids) > 0 {
		var parts []string
		for _, id := range ids {
			if ref := snap.ByID(id); ref != nil && strings.TrimSpace(ref.Text) != "" {
				parts = append(parts, strings.TrimSpace(ref.Text))
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if t := strings.TrimSpace(el.Text); t != "" {
		return t
	}
	for _, d := range descendants(snap, el) {
		if d.Tag == "img" && d.AttrText("alt") != "" {
			return d.AttrText("alt")
		}
	}
	return el.AttrText("title")
}

func hasLabel(snap *dom.Snapshot, field *dom.Element) bool {
	if field.AttrText("aria-label") != "" || field.AttrText("aria-labelledby") != "" || field.AttrText("title") != "" {
		return true
	}
	if id := field.AttrText("id"); id != "" {
		for _, label := range snap.ByTag("label") {
			if label.AttrText("for") == id && strings.TrimSpace(label.Text) != "" {
				return true
			}
		}
	}
	for _, anc := range snap.Ancestors(field) {
		if anc.Tag == "label" && strings.TrimSpace(anc.Text) != "" {
			return true
		}
	}
	return false
}

// descendants returns the elements below el. Snapshots are in document
// order, so they form the contiguous run after el.
func descendants(snap *dom.Snapshot, el *dom.Element) []*dom.Element {
	var out []*dom.Element
	for i := el.Index + 1; i < len(snap.Elements); i++ {
		cand := &snap.Elements[i]
		if !isDescendant(snap, cand, el) {
			break
		}
		out = append(out, cand)
	}
	return out
}

func isDescendant(snap *dom.Snapshot, cand, anc *dom.Element) bool {
	for p := snap.Parent(cand); p != nil; p = snap.Parent(p) {
		if p.Index == anc.Index {
			return true
		}
	}
	return false
}
