package working_dir

import (
	"os"
	"path/filepath"

	"github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"
)

// WorkingDir is an absolute scratch directory. TempDir is where
// request scoped files get created and torn down.
type WorkingDir struct {
	root string
}

func NewWorkingDir(dir string) (WorkingDir, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return WorkingDir{}, cerr.Field("dir", dir).
			Wrap(err).Error("Failed to convert dir to absolute format")
	}

	if err := os.MkdirAll(absDir, os.ModePerm); err != nil {
		return WorkingDir{}, cerr.Field("dir", absDir).
			Wrap(err).Error("Failed to create working dir")
	}

	return WorkingDir{root: absDir}, nil
}

func (w WorkingDir) Root() string {
	return w.root
}

func (w WorkingDir) TempDir() string {
	return filepath.Join(w.root, "tmp")
}
