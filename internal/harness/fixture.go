package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/bobdodd/auto-a11y/internal/fileutil"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// FixtureExt is the extension of fixture documents.
const FixtureExt = ".md"

var fixtureHeading = regexp.MustCompile(`^Fixture:\s*(.+)$`)

// fixtureFrontMatter is the YAML header of a fixture document.
type fixtureFrontMatter struct {
	Check models.CheckID `yaml:"check"`
}

// FixtureParser reads fixture documents written in Markdown. A document
// names its check in front matter, then holds one "## Fixture: <name>"
// section per fixture. Each section carries a yaml block of expectations and
// either an html block or a json snapshot block.
type FixtureParser struct {
	markdown goldmark.Markdown
}

// NewFixtureParser creates a FixtureParser.
func NewFixtureParser() *FixtureParser {
	return &FixtureParser{markdown: goldmark.New()}
}

// Parse reads every fixture in r. source labels the records and errors.
func (p *FixtureParser) Parse(r io.Reader, source string) ([]models.FixtureRecord, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	body, front := extractFrontMatter(content)
	if front == nil {
		return nil, fmt.Errorf("%s: missing front matter naming the check", source)
	}
	var fm fixtureFrontMatter
	if err := yaml.Unmarshal(front, &fm); err != nil {
		return nil, fmt.Errorf("%s: failed to parse front matter: %w", source, err)
	}
	if fm.Check == "" {
		return nil, fmt.Errorf("%s: front matter has no check", source)
	}

	doc := p.markdown.Parser().Parse(text.NewReader(body))

	var fixtures []models.FixtureRecord
	seen := make(map[string]bool)
	var current *models.FixtureRecord
	flush := func() error {
		if current == nil {
			return nil
		}
		if seen[current.Name] {
			return fmt.Errorf("%s: duplicate fixture %q", source, current.Name)
		}
		if err := current.Validate(); err != nil {
			return fmt.Errorf("%s: %w", source, err)
		}
		seen[current.Name] = true
		fixtures = append(fixtures, *current)
		current = nil
		return nil
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level != 2 {
				continue
			}
			if err := flush(); err != nil {
				return nil, err
			}
			m := fixtureHeading.FindStringSubmatch(strings.TrimSpace(nodeText(node, body)))
			if m == nil {
				continue
			}
			current = &models.FixtureRecord{CheckID: fm.Check, Name: strings.TrimSpace(m[1]), Source: source}

		case *ast.FencedCodeBlock:
			if current == nil {
				continue
			}
			code := blockText(node, body)
			switch string(node.Language(body)) {
			case "yaml", "yml":
				if err := yaml.Unmarshal(code, current); err != nil {
					return nil, fmt.Errorf("%s: fixture %q: invalid expectations: %w", source, current.Name, err)
				}
			case "html":
				current.HTML = string(code)
			case "json":
				current.Snapshot = json.RawMessage(bytes.TrimSpace(code))
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return fixtures, nil
}

// LoadFixtures parses every fixture document under dir in lexical path
// order. Hidden subdirectories are skipped.
func LoadFixtures(dir string) ([]models.FixtureRecord, error) {
	files, err := fileutil.ScanDirectory(dir, fileutil.ScanOptions{Extensions: []string{FixtureExt}, Recursive: true})
	if err != nil {
		return nil, fmt.Errorf("load fixtures from %s: %w", dir, err)
	}
	parser := NewFixtureParser()
	var all []models.FixtureRecord
	for _, rel := range files {
		fixtures, err := parseFixtureFile(parser, dir, rel)
		if err != nil {
			return nil, fmt.Errorf("load fixtures from %s: %w", dir, err)
		}
		all = append(all, fixtures...)
	}
	return all, nil
}

func parseFixtureFile(parser *FixtureParser, dir, rel string) ([]models.FixtureRecord, error) {
	f, err := os.Open(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parser.Parse(f, rel)
}

// extractFrontMatter splits a leading "---" delimited block from content.
func extractFrontMatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			return bytes.Join(lines[i+1:], []byte("\n")), bytes.Join(lines[1:i], []byte("\n"))
		}
	}
	return content, nil
}

// nodeText collects the plain text below n.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
			continue
		}
		buf.WriteString(nodeText(c, source))
	}
	return buf.String()
}

func blockText(n *ast.FencedCodeBlock, source []byte) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.Bytes()
}
