package dom

import (
	"fmt"
	"strings"
)

// Builder assembles snapshots in code. Tests and fixture tooling use it to
// describe small documents without a browser.
type Builder struct {
	snap     Snapshot
	counters map[string]int // "<parent>/<tag>" -> sibling count, for xpath positions
}

// NewBuilder starts a snapshot containing html and body elements.
func NewBuilder(url, title, lang string) *Builder {
	b := &Builder{
		snap:     Snapshot{URL: url, Title: title, Lang: lang, RootFontSize: "16px"},
		counters: make(map[string]int),
	}
	html := b.Add(-1, Element{Tag: "html", Rect: Rect{Width: 1280, Height: 800}, Background: Background{Color: "rgba(0, 0, 0, 0)"}})
	b.Add(html, Element{Tag: "body", Rect: Rect{Width: 1280, Height: 800}, Background: Background{Color: "rgba(0, 0, 0, 0)"}})
	return b
}

// Body returns the index of the body element.
func (b *Builder) Body() int { return 1 }

// Add appends el as a child of parent and returns its index. Index, Parent
// and XPath are filled in; Visible defaults to true.
func (b *Builder) Add(parent int, el Element) int {
	idx := len(b.snap.Elements)
	el.Index = idx
	el.Parent = parent
	el.Tag = strings.ToLower(el.Tag)
	key := fmt.Sprintf("%d/%s", parent, el.Tag)
	b.counters[key]++
	if parent < 0 {
		el.XPath = "/" + el.Tag
	} else {
		el.XPath = fmt.Sprintf("%s/%s[%d]", b.snap.Elements[parent].XPath, el.Tag, b.counters[key])
	}
	if el.Rect == (Rect{}) {
		el.Rect = Rect{Width: 100, Height: 20}
	}
	el.Visible = true
	if el.FontSize == "" {
		el.FontSize = "16px"
	}
	b.snap.Elements = append(b.snap.Elements, el)
	return idx
}

// Hide marks the element at idx as not rendered.
func (b *Builder) Hide(idx int) *Builder {
	b.snap.Elements[idx].Visible = false
	return b
}

// Build returns the assembled snapshot.
func (b *Builder) Build() *Snapshot {
	snap := b.snap
	snap.Elements = make([]Element, len(b.snap.Elements))
	copy(snap.Elements, b.snap.Elements)
	return &snap
}
