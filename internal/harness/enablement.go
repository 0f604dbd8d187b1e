package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bobdodd/auto-a11y/internal/filelock"
	"github.com/bobdodd/auto-a11y/internal/models"
)

// View is a point-in-time copy of the enablement map as seen by one run.
type View struct {
	Enabled       map[models.CheckID]bool
	DebugOverride bool // gating bypassed: every check runs and results are unaudited
	GeneratedAt   time.Time
}

// Allows reports whether id may run under this view.
func (v View) Allows(id models.CheckID) bool {
	return v.DebugOverride || v.Enabled[id]
}

// Audited reports whether results produced under this view were gated by
// a fixture validation run. A map that was never validated gates nothing.
func (v View) Audited() bool {
	return !v.DebugOverride && !v.GeneratedAt.IsZero()
}

// Enablement is the shared CheckEnablementMap. Runs read it concurrently;
// a harness refresh replaces it as a whole.
type Enablement struct {
	mu          sync.RWMutex
	enabled     map[models.CheckID]bool
	generatedAt time.Time
}

// NewEnablement creates an empty map. No check is trusted until a harness
// run says so.
func NewEnablement() *Enablement {
	return &Enablement{enabled: make(map[models.CheckID]bool)}
}

type enablementFile struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Checks      map[models.CheckID]bool `json:"checks"`
}

// LoadEnablement reads a map saved by Save. A missing file yields an empty map.
func LoadEnablement(path string) (*Enablement, error) {
	e := NewEnablement()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read enablement map: %w", err)
	}
	var f enablementFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse enablement map %s: %w", path, err)
	}
	e.Replace(f.Checks, f.GeneratedAt)
	return e, nil
}

// Save writes the map to path atomically while holding "<path>.lock", so
// validators in separate processes never interleave their writes.
func (e *Enablement) Save(path string) error {
	e.mu.RLock()
	f := enablementFile{GeneratedAt: e.generatedAt, Checks: copyMap(e.enabled)}
	e.mu.RUnlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode enablement map: %w", err)
	}
	return filelock.LockAndWrite(path, data)
}

// Replace swaps in a new map.
func (e *Enablement) Replace(enabled map[models.CheckID]bool, generatedAt time.Time) {
	next := copyMap(enabled)
	e.mu.Lock()
	e.enabled = next
	e.generatedAt = generatedAt
	e.mu.Unlock()
}

// Get returns the map a run should use. With debugOverride every check is
// enabled and the view reports the override.
func (e *Enablement) Get(debugOverride bool) View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v := View{Enabled: copyMap(e.enabled), DebugOverride: debugOverride, GeneratedAt: e.generatedAt}
	if debugOverride {
		for _, id := range models.AllCheckIDs() {
			v.Enabled[id] = true
		}
	}
	return v
}

// IsEnabled reports whether id is trusted.
func (e *Enablement) IsEnabled(id models.CheckID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled[id]
}

// Sorted returns the ids in the view ordered by id.
func (v View) Sorted() []models.CheckID {
	ids := make([]models.CheckID, 0, len(v.Enabled))
	for id := range v.Enabled {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func copyMap(m map[models.CheckID]bool) map[models.CheckID]bool {
	out := make(map[models.CheckID]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
