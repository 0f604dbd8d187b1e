// Package dom defines the DOM snapshot the touchpoint checks inspect.
//
// A snapshot is a flattened, serialisable view of a rendered page: one
// Element per DOM element with its computed geometry and the styles the
// checks care about. Snapshots are captured from a live browser tab or
// loaded from pre-captured fixture JSON, so checks never touch the browser.
package dom

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rect is an element's bounding client rectangle in CSS pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Left returns the left edge.
func (r Rect) Left() float64 { return r.X }

// Right returns the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Top returns the top edge.
func (r Rect) Top() float64 { return r.Y }

// Bottom returns the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Background is an element's computed background.
type Background struct {
	Color string `json:"color"`           // computed background-color
	Image string `json:"image,omitempty"` // computed background-image, "none" or empty when absent
}

// HasGradient reports whether the background image is a CSS gradient.
func (b Background) HasGradient() bool {
	return strings.Contains(strings.ToLower(b.Image), "gradient(")
}

// HasImage reports whether the background image is a raster image.
func (b Background) HasImage() bool {
	return strings.Contains(strings.ToLower(b.Image), "url(")
}

// Outline is the computed outline of an element.
type Outline struct {
	Width  string `json:"width"`
	Style  string `json:"style"`
	Color  string `json:"color"`
	Offset string `json:"offset"`
}

// Element is one element of the snapshot.
type Element struct {
	Index           int               `json:"index"`
	Parent          int               `json:"parent"` // index of the parent element, -1 for the root
	Tag             string            `json:"tag"`
	Attrs           map[string]string `json:"attrs,omitempty"`
	Text            string            `json:"text,omitempty"` // normalised text content
	XPath           string            `json:"xpath"`
	HTML            string            `json:"html,omitempty"` // truncated outerHTML
	Visible         bool              `json:"visible"`
	Focusable       bool              `json:"focusable,omitempty"`
	Rect            Rect              `json:"rect"`
	FontSize        string            `json:"font_size,omitempty"` // computed font-size, e.g. "16px"
	FontWeight      string            `json:"font_weight,omitempty"`
	Color           string            `json:"color,omitempty"` // computed text colour
	Background      Background        `json:"background"`
	StackingContext bool              `json:"stacking_context,omitempty"`
	Focus           *Outline          `json:"focus,omitempty"` // outline while the element has focus
}

// Attr returns the attribute value and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	v, ok := e.Attrs[name]
	return v, ok
}

// AttrText returns the trimmed attribute value, empty when absent.
func (e *Element) AttrText(name string) string {
	return strings.TrimSpace(e.Attrs[name])
}

// Snapshot is a flattened DOM in document order.
type Snapshot struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Lang         string    `json:"lang"`
	RootFontSize string    `json:"root_font_size,omitempty"`
	Elements     []Element `json:"elements"`
}

// Parse decodes a JSON snapshot and checks its parent links.
func Parse(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks that element indexes match positions and parents precede children.
func (s *Snapshot) Validate() error {
	for i := range s.Elements {
		el := &s.Elements[i]
		if el.Index != i {
			return fmt.Errorf("element %d has index %d", i, el.Index)
		}
		if el.Parent >= i || el.Parent < -1 {
			return fmt.Errorf("element %d (%s) has invalid parent %d", i, el.Tag, el.Parent)
		}
	}
	return nil
}

// Parent returns the parent of el, or nil for the root.
func (s *Snapshot) Parent(el *Element) *Element {
	if el == nil || el.Parent < 0 || el.Parent >= len(s.Elements) {
		return nil
	}
	return &s.Elements[el.Parent]
}

// Ancestors returns the ancestors of el starting with its parent.
func (s *Snapshot) Ancestors(el *Element) []*Element {
	var out []*Element
	for p := s.Parent(el); p != nil; p = s.Parent(p) {
		out = append(out, p)
	}
	return out
}

// Filter returns the elements matching keep, in document order.
func (s *Snapshot) Filter(keep func(*Element) bool) []*Element {
	var out []*Element
	for i := range s.Elements {
		if keep(&s.Elements[i]) {
			out = append(out, &s.Elements[i])
		}
	}
	return out
}

// ByTag returns the elements with one of the given tag names.
func (s *Snapshot) ByTag(tags ...string) []*Element {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[strings.ToLower(t)] = true
	}
	return s.Filter(func(e *Element) bool { return want[strings.ToLower(e.Tag)] })
}

// ByID returns the element with the given id attribute.
func (s *Snapshot) ByID(id string) *Element {
	if id == "" {
		return nil
	}
	for i := range s.Elements {
		if s.Elements[i].Attrs["id"] == id {
			return &s.Elements[i]
		}
	}
	return nil
}
