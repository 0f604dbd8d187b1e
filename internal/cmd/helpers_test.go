package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bobdodd/auto-a11y/internal/browser"
	"github.com/bobdodd/auto-a11y/internal/browser/browsertest"
	"github.com/bobdodd/auto-a11y/internal/config"
	"github.com/bobdodd/auto-a11y/internal/dom"
)

const shopPages = `project: shop
pages:
  - id: home
    url: https://shop.test/
    checks: [image-alt]
    script:
      id: accept-cookies
      name: accept cookies
      enabled: true
      test_before_execution: true
      test_after_execution: true
      steps:
        - sequence: 1
          action: click
          selector: "#accept"
          timeout_ms: 200
      validation:
        failure_selectors: ["#cookie-banner"]
  - id: about
    url: https://shop.test/about
    checks: [image-alt]
`

// newProject creates a project directory with an empty .a11y home and a
// page definition file, and returns both paths.
func newProject(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("A11Y_HOME", "")
	root := t.TempDir()
	if _, err := config.EnsureHome(root); err != nil {
		t.Fatal(err)
	}
	pagesFile := filepath.Join(root, "pages.yaml")
	if err := os.WriteFile(pagesFile, []byte(shopPages), 0644); err != nil {
		t.Fatal(err)
	}
	return root, pagesFile
}

func cookieBannerPage() *browsertest.FakePage {
	b := dom.NewBuilder("https://shop.test/", "Shop", "en")
	banner := b.Add(b.Body(), dom.Element{Tag: "div", Attrs: map[string]string{"id": "cookie-banner"}})
	b.Add(banner, dom.Element{Tag: "img", Attrs: map[string]string{"src": "cookie.png"}})
	b.Add(banner, dom.Element{Tag: "button", Attrs: map[string]string{"id": "accept"}, Text: "Accept"})

	page := browsertest.NewFakePage(b.Build(), "#cookie-banner", "#accept")
	page.OnClick["#accept"] = func(p *browsertest.FakePage) {
		p.Hide("#cookie-banner", "#accept")
		after := dom.NewBuilder("https://shop.test/", "Shop", "en")
		after.Add(after.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "hero.png"}})
		after.Add(after.Body(), dom.Element{Tag: "img", Attrs: map[string]string{"src": "promo.png"}})
		p.Snap = after.Build()
	}
	return page
}

// useFakeBrowser swaps the browser for an in-memory one until the test ends.
func useFakeBrowser(t *testing.T, newPage func() *browsertest.FakePage) *browsertest.Launcher {
	t.Helper()
	launcher := &browsertest.Launcher{New: newPage}
	prev := launchBrowser
	launchBrowser = func(ctx context.Context, cfg *config.Config) (browser.Launcher, error) {
		return launcher, nil
	}
	t.Cleanup(func() { launchBrowser = prev })
	return launcher
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}
