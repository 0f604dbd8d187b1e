package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"

	"github.com/bobdodd/auto-a11y/internal/filelock"
)

// ScreenshotStore turns captured PNG bytes into the reference kept on a
// result or step outcome.
type ScreenshotStore interface {
	Save(ctx context.Context, name string, png []byte) (string, error)
}

// InlineScreenshots embeds screenshots as data URIs. Large inline data is
// what the size guard drops first.
type InlineScreenshots struct{}

// Save implements ScreenshotStore.
func (InlineScreenshots) Save(ctx context.Context, name string, png []byte) (string, error) {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// DirScreenshots writes screenshots under Dir and returns their paths.
type DirScreenshots struct {
	Dir string
}

// Save implements ScreenshotStore.
func (d DirScreenshots) Save(ctx context.Context, name string, png []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(d.Dir, name+".png")
	if err := filelock.AtomicWrite(path, png); err != nil {
		return "", fmt.Errorf("save screenshot %s: %w", name, err)
	}
	return path, nil
}
