package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	b := NewBuilder("https://shop.test/", "Shop", "en")
	nav := b.Add(b.Body(), Element{Tag: "NAV"})
	b.Add(nav, Element{Tag: "a", Attrs: map[string]string{"href": "/", "id": "home"}, Text: "Home"})
	b.Add(nav, Element{Tag: "a", Attrs: map[string]string{"href": "/about"}, Text: "About"})
	img := b.Add(b.Body(), Element{Tag: "img", Attrs: map[string]string{"alt": "  logo "}})
	b.Hide(img)
	return b.Build()
}

func TestBuilder_XPaths(t *testing.T) {
	snap := sampleSnapshot()

	want := []string{
		"/html",
		"/html/body[1]",
		"/html/body[1]/nav[1]",
		"/html/body[1]/nav[1]/a[1]",
		"/html/body[1]/nav[1]/a[2]",
		"/html/body[1]/img[1]",
	}
	require.Len(t, snap.Elements, len(want))
	for i, xp := range want {
		assert.Equal(t, xp, snap.Elements[i].XPath)
		assert.Equal(t, i, snap.Elements[i].Index)
	}
	assert.Equal(t, "nav", snap.Elements[2].Tag)
	assert.Equal(t, "16px", snap.Elements[2].FontSize)
	assert.False(t, snap.Elements[5].Visible)
	assert.NoError(t, snap.Validate())
}

func TestBuilder_BuildCopies(t *testing.T) {
	b := NewBuilder("about:blank", "", "")
	first := b.Build()
	b.Add(b.Body(), Element{Tag: "p"})
	second := b.Build()

	assert.Len(t, first.Elements, 2)
	assert.Len(t, second.Elements, 3)
}

func TestSnapshot_Queries(t *testing.T) {
	snap := sampleSnapshot()

	links := snap.ByTag("A")
	require.Len(t, links, 2)
	assert.Equal(t, "About", links[1].Text)

	home := snap.ByID("home")
	require.NotNil(t, home)
	assert.Equal(t, "/", home.AttrText("href"))
	assert.Nil(t, snap.ByID(""))
	assert.Nil(t, snap.ByID("missing"))

	ancestors := snap.Ancestors(home)
	require.Len(t, ancestors, 3)
	assert.Equal(t, "nav", ancestors[0].Tag)
	assert.Equal(t, "html", ancestors[2].Tag)
	assert.Nil(t, snap.Parent(&snap.Elements[0]))

	img := snap.ByTag("img")[0]
	alt, ok := img.Attr("alt")
	assert.True(t, ok)
	assert.Equal(t, "  logo ", alt)
	assert.Equal(t, "logo", img.AttrText("alt"))
	_, ok = img.Attr("src")
	assert.False(t, ok)

	visible := snap.Filter(func(e *Element) bool { return e.Visible })
	assert.Len(t, visible, 5)
}

func TestBackground(t *testing.T) {
	tests := []struct {
		image    string
		gradient bool
		raster   bool
	}{
		{"", false, false},
		{"none", false, false},
		{"linear-gradient(red, blue)", true, false},
		{"URL(\"hero.png\")", false, true},
	}
	for _, tt := range tests {
		bg := Background{Color: "rgb(0, 0, 0)", Image: tt.image}
		assert.Equal(t, tt.gradient, bg.HasGradient(), tt.image)
		assert.Equal(t, tt.raster, bg.HasImage(), tt.image)
	}
}

func TestRect_Edges(t *testing.T) {
	r := Rect{X: 10, Y: 20, Width: 30, Height: 40}
	assert.Equal(t, 10.0, r.Left())
	assert.Equal(t, 40.0, r.Right())
	assert.Equal(t, 20.0, r.Top())
	assert.Equal(t, 60.0, r.Bottom())
}

func TestParse(t *testing.T) {
	snap, err := Parse([]byte(`{"url":"about:blank","title":"t","lang":"en","elements":[
		{"index":0,"parent":-1,"tag":"html","xpath":"/html","visible":true,"rect":{"x":0,"y":0,"width":10,"height":10},"background":{"color":"rgb(255, 255, 255)"}}
	]}`))
	require.NoError(t, err)
	assert.Equal(t, "html", snap.Elements[0].Tag)

	tests := []struct {
		name string
		data string
		want string
	}{
		{"bad json", `{`, "decode snapshot"},
		{"index mismatch", `{"elements":[{"index":3,"parent":-1,"tag":"html"}]}`, "has index 3"},
		{"parent after child", `{"elements":[{"index":0,"parent":0,"tag":"html"}]}`, "invalid parent 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
