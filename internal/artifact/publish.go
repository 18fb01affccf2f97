package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rHedBull/prism/internal/output"
)

// ErrNothingToPublish is returned when the directory holds no artifacts.
var ErrNothingToPublish = errors.New("no artifacts to publish")

// artifactFiles are published in this order when present.
var artifactFiles = []string{output.NodesFile, output.EdgesFile, output.DiffFile, output.PlanFile}

// Publish uploads the artifacts found in dir under runID and returns the
// published names.
func Publish(ctx context.Context, store Store, dir, runID string) ([]string, error) {
	var published []string
	for _, name := range artifactFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return published, fmt.Errorf("reading %s: %w", name, err)
		}
		if err := store.Put(ctx, runID, name, data); err != nil {
			return published, fmt.Errorf("uploading %s: %w", name, err)
		}
		published = append(published, name)
	}
	if len(published) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNothingToPublish, dir)
	}
	return published, nil
}
