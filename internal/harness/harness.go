// Package harness validates checks against labelled fixtures and publishes
// which checks can be trusted in production runs.
package harness

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bobdodd/auto-a11y/internal/checks"
	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// SnapshotLoader renders fixture markup into a snapshot.
type SnapshotLoader interface {
	Load(ctx context.Context, html string) (*dom.Snapshot, error)
}

// FixtureResult is the outcome of running one check over one fixture.
type FixtureResult struct {
	Check      models.CheckID     `json:"check"`
	Fixture    string             `json:"fixture"`
	Source     string             `json:"source,omitempty"`
	Kind       models.FixtureKind `json:"kind"`
	Passed     bool               `json:"passed"`
	Violations int                `json:"violations"`
	Passes     int                `json:"passes"`
	Mismatches []string           `json:"mismatches,omitempty"`
}

// CheckReport summarises the fixtures of one check.
type CheckReport struct {
	Check    models.CheckID  `json:"check"`
	Trusted  bool            `json:"trusted"`
	Reason   string          `json:"reason,omitempty"` // set when untrusted without a failing fixture
	Fixtures []FixtureResult `json:"fixtures"`
}

// Passed returns the number of fixtures that matched their expectations.
func (c CheckReport) Passed() int {
	n := 0
	for _, f := range c.Fixtures {
		if f.Passed {
			n++
		}
	}
	return n
}

// Report is the result of one harness run.
type Report struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Checks      []CheckReport `json:"checks"`
}

// EnablementMap returns the trust verdict of every reported check.
func (r *Report) EnablementMap() map[models.CheckID]bool {
	m := make(map[models.CheckID]bool, len(r.Checks))
	for _, c := range r.Checks {
		m[c.Check] = c.Trusted
	}
	return m
}

// Trusted returns the number of trusted checks.
func (r *Report) Trusted() int {
	n := 0
	for _, c := range r.Checks {
		if c.Trusted {
			n++
		}
	}
	return n
}

// FailedFixtures returns the number of fixtures that did not match.
func (r *Report) FailedFixtures() int {
	n := 0
	for _, c := range r.Checks {
		n += len(c.Fixtures) - c.Passed()
	}
	return n
}

// WriteText renders the report for a terminal.
func (r *Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "Fixture validation: %d/%d checks trusted, %d failing fixtures\n\n",
		r.Trusted(), len(r.Checks), r.FailedFixtures()); err != nil {
		return err
	}
	for _, c := range r.Checks {
		mark := "✗"
		if c.Trusted {
			mark = "✓"
		}
		detail := fmt.Sprintf("%d/%d fixtures", c.Passed(), len(c.Fixtures))
		if c.Reason != "" {
			detail = c.Reason
		}
		if _, err := fmt.Fprintf(w, "  %s %-20s %s\n", mark, c.Check, detail); err != nil {
			return err
		}
		for _, f := range c.Fixtures {
			for _, m := range f.Mismatches {
				if _, err := fmt.Fprintf(w, "      - %s: %s\n", f.Fixture, m); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Harness runs checks over fixtures.
type Harness struct {
	registry *checks.Registry
	loader   SnapshotLoader
	now      func() time.Time
}

// New creates a Harness. loader may be nil when every fixture carries a
// pre-captured snapshot.
func New(registry *checks.Registry, loader SnapshotLoader) *Harness {
	if registry == nil {
		panic("check registry cannot be nil")
	}
	return &Harness{registry: registry, loader: loader, now: time.Now}
}

// Run evaluates fixtures against the registry. A check is trusted only when
// it has fixtures and every one of them matches. Checks without fixtures and
// fixtures naming unknown checks are reported untrusted.
func (h *Harness) Run(ctx context.Context, fixtures []models.FixtureRecord) (*Report, error) {
	byCheck := make(map[models.CheckID][]models.FixtureRecord)
	for _, fx := range fixtures {
		byCheck[fx.CheckID] = append(byCheck[fx.CheckID], fx)
	}

	report := &Report{GeneratedAt: h.now().UTC()}
	for _, id := range h.registry.IDs() {
		check, _ := h.registry.Get(id)
		cr := CheckReport{Check: id, Fixtures: []FixtureResult{}}
		for _, fx := range byCheck[id] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cr.Fixtures = append(cr.Fixtures, h.evaluate(ctx, check, fx))
		}
		delete(byCheck, id)

		if len(cr.Fixtures) == 0 {
			cr.Reason = "no fixtures"
		} else {
			cr.Trusted = cr.Passed() == len(cr.Fixtures)
		}
		report.Checks = append(report.Checks, cr)
	}

	unknown := make([]models.CheckID, 0, len(byCheck))
	for id := range byCheck {
		unknown = append(unknown, id)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	for _, id := range unknown {
		cr := CheckReport{Check: id, Reason: "unknown check", Fixtures: []FixtureResult{}}
		for _, fx := range byCheck[id] {
			cr.Fixtures = append(cr.Fixtures, FixtureResult{
				Check: id, Fixture: fx.Name, Source: fx.Source, Kind: fx.Kind,
				Mismatches: []string{"no check is registered under this id"},
			})
		}
		report.Checks = append(report.Checks, cr)
	}
	return report, nil
}

// Refresh loads the fixtures under dir, runs them and publishes the verdicts
// into target. The map is also written to path when path is set.
func (h *Harness) Refresh(ctx context.Context, dir string, target *Enablement, path string) (*Report, error) {
	fixtures, err := LoadFixtures(dir)
	if err != nil {
		return nil, err
	}
	report, err := h.Run(ctx, fixtures)
	if err != nil {
		return nil, err
	}
	if target != nil {
		target.Replace(report.EnablementMap(), report.GeneratedAt)
		if path != "" {
			if err := target.Save(path); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

func (h *Harness) evaluate(ctx context.Context, check checks.Check, fx models.FixtureRecord) FixtureResult {
	res := FixtureResult{Check: fx.CheckID, Fixture: fx.Name, Source: fx.Source, Kind: fx.Kind}

	snap, err := h.snapshot(ctx, fx)
	if err != nil {
		res.Mismatches = append(res.Mismatches, err.Error())
		return res
	}
	out, err := runCheck(check, snap)
	if err != nil {
		res.Mismatches = append(res.Mismatches, err.Error())
		return res
	}

	res.Violations = len(out.Violations)
	res.Passes = len(out.Passes)
	if res.Violations != fx.ExpectedViolations {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("expected %d violations, got %d", fx.ExpectedViolations, res.Violations))
	}
	if res.Passes != fx.ExpectedPasses {
		res.Mismatches = append(res.Mismatches, fmt.Sprintf("expected %d passes, got %d", fx.ExpectedPasses, res.Passes))
	}
	for _, el := range fx.Elements {
		if msg := matchElement(out, el); msg != "" {
			res.Mismatches = append(res.Mismatches, msg)
		}
	}
	res.Passed = len(res.Mismatches) == 0
	return res
}

func (h *Harness) snapshot(ctx context.Context, fx models.FixtureRecord) (*dom.Snapshot, error) {
	if len(fx.Snapshot) > 0 {
		return dom.Parse(fx.Snapshot)
	}
	if h.loader == nil {
		return nil, fmt.Errorf("html fixture needs a browser to render")
	}
	snap, err := h.loader.Load(ctx, fx.HTML)
	if err != nil {
		return nil, fmt.Errorf("render fixture: %w", err)
	}
	return snap, nil
}

func runCheck(c checks.Check, snap *dom.Snapshot) (out checks.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	return c.Run(snap), nil
}

// matchElement returns a mismatch description, or "" when el holds.
func matchElement(out checks.Outcome, el models.ElementExpectation) string {
	lists := map[models.Expectation][]models.Finding{
		models.ExpectViolation: out.Violations,
		models.ExpectWarning:   out.Warnings,
		models.ExpectPass:      out.Passes,
	}

	if el.Expect == models.ExpectNone {
		for _, fs := range [][]models.Finding{out.Violations, out.Warnings, out.Info, out.Discoveries, out.Passes} {
			if f, ok := findAt(fs, el.XPath, ""); ok {
				return fmt.Sprintf("element %s: expected no finding, got %s", el.XPath, f.Code)
			}
		}
		return ""
	}

	if _, ok := findAt(lists[el.Expect], el.XPath, el.Code); ok {
		return ""
	}
	want := string(el.Expect)
	if el.Code != "" {
		want += " " + el.Code
	}
	return fmt.Sprintf("element %s: expected %s", el.XPath, want)
}

func findAt(fs []models.Finding, xpath, code string) (models.Finding, bool) {
	for _, f := range fs {
		if f.XPath == xpath && (code == "" || f.Code == code) {
			return f, true
		}
	}
	return models.Finding{}, false
}
