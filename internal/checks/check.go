// Package checks is the touchpoint check library.
//
// Every check consumes a DOM snapshot and produces an Outcome. The set of
// checks is closed: each models.CheckID has exactly one implementation,
// registered by DefaultRegistry. The focus-contrast analyzer is the richest
// of them; text-contrast shares its background resolution and the others
// are compact rule checks.
package checks

import (
	"fmt"
	"sort"

	"github.com/bobdodd/auto-a11y/internal/dom"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// Check is one rule of the library.
type Check interface {
	ID() models.CheckID
	Touchpoint() models.Touchpoint
	Run(snap *dom.Snapshot) Outcome
}

// Outcome is what a check found in one snapshot.
type Outcome struct {
	Violations  []models.Finding
	Warnings    []models.Finding
	Info        []models.Finding
	Discoveries []models.Finding
	Passes      []models.Finding
}

// Merge appends other's findings to o, preserving order.
func (o *Outcome) Merge(other Outcome) {
	o.Violations = append(o.Violations, other.Violations...)
	o.Warnings = append(o.Warnings, other.Warnings...)
	o.Info = append(o.Info, other.Info...)
	o.Discoveries = append(o.Discoveries, other.Discoveries...)
	o.Passes = append(o.Passes, other.Passes...)
}

// Registry holds the available checks keyed by id.
type Registry struct {
	checks map[models.CheckID]Check
	order  []models.CheckID
}

// NewRegistry creates a registry from the given checks. Registering the same
// id twice is a programming error.
func NewRegistry(checks ...Check) *Registry {
	r := &Registry{checks: make(map[models.CheckID]Check, len(checks))}
	for _, c := range checks {
		if _, dup := r.checks[c.ID()]; dup {
			panic(fmt.Sprintf("check %s registered twice", c.ID()))
		}
		r.checks[c.ID()] = c
		r.order = append(r.order, c.ID())
	}
	return r
}

// DefaultRegistry returns a registry holding one implementation per check id.
func DefaultRegistry() *Registry {
	return NewRegistry(
		ImageAlt{},
		DocumentLanguage{},
		PageTitle{},
		LinkName{},
		ButtonName{},
		FormLabel{},
		HeadingOrder{},
		NewFocusContrast(),
		NewTextContrast(),
	)
}

// Get returns the check registered under id.
func (r *Registry) Get(id models.CheckID) (Check, bool) {
	c, ok := r.checks[id]
	return c, ok
}

// IDs returns the registered ids in registration order.
func (r *Registry) IDs() []models.CheckID {
	out := make([]models.CheckID, len(r.order))
	copy(out, r.order)
	return out
}

// Select returns the checks for the requested ids in registration order,
// ignoring unknown ids. An empty request selects every check.
func (r *Registry) Select(ids []models.CheckID) []Check {
	if len(ids) == 0 {
		out := make([]Check, 0, len(r.order))
		for _, id := range r.order {
			out = append(out, r.checks[id])
		}
		return out
	}
	want := make(map[models.CheckID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Check
	for _, id := range r.order {
		if want[id] {
			out = append(out, r.checks[id])
		}
	}
	return out
}

// Unknown returns the requested ids that are not registered, sorted.
func (r *Registry) Unknown(ids []models.CheckID) []models.CheckID {
	var out []models.CheckID
	for _, id := range ids {
		if _, ok := r.checks[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// finding builds a finding for el with the check's identity filled in.
func finding(c Check, code string, impact models.Impact, el *dom.Element, desc string, wcag ...string) models.Finding {
	f := models.Finding{
		Check:       c.ID(),
		Code:        code,
		Impact:      impact,
		Touchpoint:  c.Touchpoint(),
		Description: desc,
		WCAG:        wcag,
	}
	if el != nil {
		f.XPath = el.XPath
		f.Element = el.Tag
		f.HTML = el.HTML
	}
	return f
}
