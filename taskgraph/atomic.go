package taskgraph

import (
	"io/ioutil"
	"os"
	"path/filepath"
)

// AtomicFile stages writes in a temporary file next to the destination and
// renames it into place on Commit, so a killed run never leaves a partial
// artifact at the final path.  Rename is atomic only within a filesystem,
// which staging in the destination directory guarantees.
type AtomicFile struct {
	f    *os.File
	path string
}

// CreateAtomic creates the destination's directory if needed and opens a
// temporary file in it.
func CreateAtomic(path string) (*AtomicFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return nil, err
	}
	f, err := ioutil.TempFile(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return nil, err
	}
	return &AtomicFile{f: f, path: path}, nil
}

func (a *AtomicFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Commit closes the temporary file and renames it to the destination.
func (a *AtomicFile) Commit() error {
	if err := a.f.Close(); err != nil {
		os.Remove(a.f.Name()) // nolint: errcheck
		return err
	}
	return os.Rename(a.f.Name(), a.path)
}

// Abort discards the staged data.  Safe to call after Commit.
func (a *AtomicFile) Abort() {
	a.f.Close()           // nolint: errcheck
	os.Remove(a.f.Name()) // nolint: errcheck
}

// WriteFileAtomic writes data to path through an AtomicFile.
func WriteFileAtomic(path string, data []byte) error {
	a, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	if _, err := a.Write(data); err != nil {
		a.Abort()
		return err
	}
	return a.Commit()
}
