package harness

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobdodd/auto-a11y/internal/models"
)

func TestEnablement_Get(t *testing.T) {
	e := NewEnablement()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.Replace(map[models.CheckID]bool{models.CheckImageAlt: true, models.CheckPageTitle: false}, at)

	gated := e.Get(false)
	assert.True(t, gated.Allows(models.CheckImageAlt))
	assert.False(t, gated.Allows(models.CheckPageTitle))
	assert.False(t, gated.Allows(models.CheckFocusContrast), "checks without a verdict are untrusted")
	assert.True(t, gated.Audited())
	assert.Equal(t, at, gated.GeneratedAt)

	debug := e.Get(true)
	for _, id := range models.AllCheckIDs() {
		assert.True(t, debug.Allows(id), id)
		assert.True(t, debug.Enabled[id], id)
	}
	assert.False(t, debug.Audited())
	assert.True(t, debug.DebugOverride)

	assert.False(t, NewEnablement().Get(false).Audited(), "a never validated map audits nothing")

	assert.False(t, e.IsEnabled(models.CheckPageTitle), "the override never leaks into the shared map")
}

func TestEnablement_ViewIsACopy(t *testing.T) {
	e := NewEnablement()
	e.Replace(map[models.CheckID]bool{models.CheckImageAlt: true}, time.Now())

	v := e.Get(false)
	v.Enabled[models.CheckImageAlt] = false

	assert.True(t, e.IsEnabled(models.CheckImageAlt))
}

func TestEnablement_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "enablement.json")
	e := NewEnablement()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.Replace(map[models.CheckID]bool{models.CheckImageAlt: true, models.CheckLinkName: false}, at)

	require.NoError(t, e.Save(path))

	loaded, err := LoadEnablement(path)
	require.NoError(t, err)
	v := loaded.Get(false)
	assert.Equal(t, map[models.CheckID]bool{models.CheckImageAlt: true, models.CheckLinkName: false}, v.Enabled)
	assert.True(t, at.Equal(v.GeneratedAt))
	assert.Equal(t, []models.CheckID{models.CheckImageAlt, models.CheckLinkName}, v.Sorted())
}

func TestEnablement_ConcurrentSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enablement.json")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(trusted bool) {
			defer wg.Done()
			e := NewEnablement()
			e.Replace(map[models.CheckID]bool{models.CheckImageAlt: trusted}, at)
			assert.NoError(t, e.Save(path))
		}(i%2 == 0)
	}
	wg.Wait()

	loaded, err := LoadEnablement(path)
	require.NoError(t, err, "the map is never left half written")
	assert.Len(t, loaded.Get(false).Enabled, 1)
	assert.FileExists(t, path+".lock")
}

func TestLoadEnablement(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		e, err := LoadEnablement(filepath.Join(dir, "nope.json"))
		require.NoError(t, err)
		assert.Empty(t, e.Get(false).Enabled)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
		_, err := LoadEnablement(path)
		assert.Error(t, err)
	})
}

func TestEnablement_ConcurrentReadersDuringRefresh(t *testing.T) {
	e := NewEnablement()
	all := map[models.CheckID]bool{}
	none := map[models.CheckID]bool{}
	for _, id := range models.AllCheckIDs() {
		all[id] = true
		none[id] = false
	}
	e.Replace(all, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				v := e.Get(false)
				trusted := 0
				for _, ok := range v.Enabled {
					if ok {
						trusted++
					}
				}
				// a view is either the old map or the new one, never a mix
				if trusted != 0 && trusted != len(all) {
					t.Errorf("torn view with %d trusted checks", trusted)
					return
				}
			}
		}()
	}
	for j := 0; j < 50; j++ {
		if j%2 == 0 {
			e.Replace(none, time.Now())
		} else {
			e.Replace(all, time.Now())
		}
	}
	wg.Wait()
}
