package models

import (
	"encoding/json"
	"fmt"
)

// FixtureKind labels what a fixture document demonstrates.
type FixtureKind string

// Fixture kinds
const (
	FixtureViolation FixtureKind = "violation" // the check must flag this document
	FixtureCorrect   FixtureKind = "correct"   // correct usage the check must not flag
)

// Expectation is the per-element outcome a fixture asserts.
type Expectation string

// Element expectations
const (
	ExpectViolation Expectation = "violation"
	ExpectWarning   Expectation = "warning"
	ExpectPass      Expectation = "pass"
	ExpectNone      Expectation = "none" // the element must not appear in any list
)

// ElementExpectation asserts the outcome for one element of a fixture.
type ElementExpectation struct {
	XPath  string      `yaml:"xpath" json:"xpath"`
	Expect Expectation `yaml:"expect" json:"expect"`
	Code   string      `yaml:"code" json:"code,omitempty"` // optional finding code the element must carry
}

// FixtureRecord is a labelled sample document with a known outcome for one check.
type FixtureRecord struct {
	CheckID            CheckID              `yaml:"-" json:"check_id"`
	Name               string               `yaml:"-" json:"name"`
	Source             string               `yaml:"-" json:"source,omitempty"` // file the fixture was loaded from
	Kind               FixtureKind          `yaml:"kind" json:"kind"`
	ExpectedViolations int                  `yaml:"expected_violations" json:"expected_violations"`
	ExpectedPasses     int                  `yaml:"expected_passes" json:"expected_passes"`
	Elements           []ElementExpectation `yaml:"elements" json:"elements,omitempty"`
	HTML               string               `yaml:"-" json:"html,omitempty"`
	Snapshot           json.RawMessage      `yaml:"-" json:"snapshot,omitempty"` // pre-captured DOM snapshot
}

// Validate checks the fixture declaration for missing or contradictory fields.
func (f *FixtureRecord) Validate() error {
	if f.CheckID == "" {
		return fmt.Errorf("fixture %q: check id is required", f.Name)
	}
	switch f.Kind {
	case FixtureViolation:
		if f.ExpectedViolations == 0 {
			return fmt.Errorf("fixture %q: violation fixture must expect at least one violation", f.Name)
		}
	case FixtureCorrect:
		if f.ExpectedViolations != 0 {
			return fmt.Errorf("fixture %q: correct-usage fixture cannot expect violations", f.Name)
		}
	default:
		return fmt.Errorf("fixture %q: unknown kind %q", f.Name, f.Kind)
	}
	if f.HTML == "" && len(f.Snapshot) == 0 {
		return fmt.Errorf("fixture %q: needs an html document or a snapshot", f.Name)
	}
	for _, el := range f.Elements {
		switch el.Expect {
		case ExpectViolation, ExpectWarning, ExpectPass, ExpectNone:
		default:
			return fmt.Errorf("fixture %q: element %s has unknown expectation %q", f.Name, el.XPath, el.Expect)
		}
	}
	return nil
}
