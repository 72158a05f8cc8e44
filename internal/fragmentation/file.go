package fragmentation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type fileState struct {
	Uncompacted int       `yaml:"uncompacted"`
	UpdatedAt   time.Time `yaml:"updatedAt"`
}

// File keeps the count in a small YAML document next to the index.
type File struct {
	path string
}

func NewFile(path string) *File { return &File{path: path} }

func (f *File) Store(_ context.Context, count int) error {
	data, err := yaml.Marshal(fileState{Uncompacted: count, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshaling fragmentation state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}

func (f *File) Retrieve(context.Context) (int, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading %s: %w", f.path, err)
	}
	var st fileState
	if err := yaml.Unmarshal(data, &st); err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", f.path, err)
	}
	if st.Uncompacted < 0 {
		return 0, false, fmt.Errorf("%s: negative uncompacted count %d", f.path, st.Uncompacted)
	}
	return st.Uncompacted, true, nil
}
