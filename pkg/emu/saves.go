// Package emu provides persistence helpers for emulated hardware.
package emu

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Save represents a battery save file.
type Save struct {
	b    []byte // the save file data
	Path string // the path to the save file
}

// LoadSave loads the save file at path. If no save file exists an
// empty Save is returned, which will be created on the first Write.
func LoadSave(path string) (*Save, error) {
	b, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "reading save file")
	}
	return &Save{b: b, Path: path}, nil
}

// Bytes returns the save file data, which is empty for a new save.
func (s *Save) Bytes() []byte {
	return s.b
}

// Exists reports whether the save holds any data.
func (s *Save) Exists() bool {
	return len(s.b) > 0
}

// Write replaces the save file data. The data is written to a
// temporary file in the same folder which is then renamed over the
// save file, so a crash mid-write never corrupts an existing save.
func (s *Save) Write(b []byte) error {
	f, err := os.CreateTemp(filepath.Dir(s.Path), filepath.Base(s.Path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary save file")
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(f.Name())
		return errors.Wrap(err, "writing temporary save file")
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return errors.Wrap(err, "closing temporary save file")
	}
	if err := os.Rename(f.Name(), s.Path); err != nil {
		os.Remove(f.Name())
		return errors.Wrap(err, "replacing save file")
	}

	s.b = append(s.b[:0], b...)
	return nil
}
