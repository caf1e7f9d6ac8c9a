// Package jsonfile persists small JSON documents on an afero filesystem.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Read decodes the file at path into v. A missing file is not an error; found
// reports whether anything was read.
func Read(fs afero.Fs, path string, v any) (found bool, err error) {
	file, err := fs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(v); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// Version identifies the state of a file on disk. The zero Version means the
// file does not exist.
type Version struct {
	ModTime time.Time
	Size    int64
}

// Stat returns the current Version of the file at path.
func Stat(fs afero.Fs, path string) (Version, error) {
	info, err := fs.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Version{}, nil
	}
	if err != nil {
		return Version{}, fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}
	return Version{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Equal reports whether both versions describe the same file state.
func (v Version) Equal(other Version) bool {
	return v.Size == other.Size && v.ModTime.Equal(other.ModTime)
}

// Write encodes v to a temp file next to path and renames it into place.
func Write(fs afero.Fs, path string, v any) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", filepath.Base(path), err)
	}

	tmp := path + ".tmp"
	file, err := fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		file.Close()
		_ = fs.Remove(tmp)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = fs.Remove(tmp)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}

	if err := file.Close(); err != nil {
		_ = fs.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := fs.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
