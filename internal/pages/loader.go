// Package pages loads page definitions, the pages to audit together with
// their setup scripts, from YAML files.
package pages

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/bobdodd/auto-a11y/internal/executor"
	"github.com/bobdodd/auto-a11y/internal/models"
)

//go:embed pages.schema.json
var schemaJSON []byte

const schemaURL = "pages.schema.json"

// Catalog is the set of pages defined in one file.
type Catalog struct {
	Project string         `yaml:"project"`
	Pages   []*models.Page `yaml:"pages"`
}

// Find returns the page with the given id, or nil.
func (c *Catalog) Find(id string) *models.Page {
	for _, p := range c.Pages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Select returns the pages with the given ids in the order requested. No ids
// selects every page.
func (c *Catalog) Select(ids []string) ([]*models.Page, error) {
	if len(ids) == 0 {
		return c.Pages, nil
	}
	out := make([]*models.Page, 0, len(ids))
	var unknown []string
	for _, id := range ids {
		p := c.Find(id)
		if p == nil {
			unknown = append(unknown, id)
			continue
		}
		out = append(out, p)
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown pages: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Load reads and validates a page definition file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page definitions: %w", err)
	}
	catalog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// Parse validates data against the page definition schema, decodes it, and
// checks the pages for duplicate ids and inline credentials.
func Parse(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse page definitions: %w", err)
	}

	seen := make(map[string]bool, len(catalog.Pages))
	for _, p := range catalog.Pages {
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
		if p.ProjectID == "" {
			p.ProjectID = catalog.Project
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if err := checkCredentials(p); err != nil {
			return nil, err
		}
	}
	return &catalog, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// validateSchema checks YAML data against the embedded JSON Schema. The
// document is round-tripped through JSON so numbers reach the validator
// in the form it expects.
func validateSchema(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse page definitions: %w", err)
	}
	if doc == nil {
		return fmt.Errorf("page definitions are empty")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("page definitions are not JSON compatible: %w", err)
	}
	var value interface{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return err
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("invalid page definitions: %w", err)
	}
	return nil
}

// checkCredentials rejects TYPE steps that put a literal value into a field
// whose selector or description mentions a password. Such values must be
// ${ENV:NAME} references.
func checkCredentials(p *models.Page) error {
	if p.Script == nil {
		return nil
	}
	for _, step := range p.Script.Steps {
		if step.Action != models.ActionType || step.Value == "" {
			continue
		}
		if !mentionsPassword(step.Selector) && !mentionsPassword(step.Description) {
			continue
		}
		if !executor.HasSecrets(step.Value) {
			return fmt.Errorf("page %s: script %s step %d types a literal password; use ${ENV:NAME}",
				p.ID, p.Script.ID, step.Sequence)
		}
	}
	return nil
}

func mentionsPassword(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "password") || strings.Contains(s, "passwd")
}
