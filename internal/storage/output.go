package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// ErrWriteFailed marks a file that could not be persisted to the output directory
var ErrWriteFailed = errors.New("write failed")

// OutputDir is the directory converted images are written into
type OutputDir struct {
	Path      string
	Ext       string
	Overwrite bool
}

// NewOutputDir creates the directory if needed. ext is the extension without the dot.
func NewOutputDir(path, ext string, overwrite bool) (*OutputDir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &OutputDir{
		Path:      path,
		Ext:       ext,
		Overwrite: overwrite,
	}, nil
}

// Begin starts a batch of writes. Stems are unique within one batch.
func (o *OutputDir) Begin() *Batch {
	return &Batch{
		dir:  o,
		used: make(map[string]bool),
	}
}

// List returns the names of regular files in the directory carrying the output extension
func (o *OutputDir) List() ([]string, error) {
	entries, err := os.ReadDir(o.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() || filepath.Ext(e.Name()) != "."+o.Ext {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Batch tracks the stems written during one run. Not safe for concurrent use.
type Batch struct {
	dir  *OutputDir
	used map[string]bool
}

// reserve returns stem, or stem_2, stem_3 ... when it was already written in this batch
func (b *Batch) reserve(stem string) string {
	if b.dir.Overwrite {
		return stem
	}

	candidate := stem
	for n := 2; b.used[candidate]; n++ {
		candidate = stem + "_" + strconv.Itoa(n)
	}
	b.used[candidate] = true
	return candidate
}

// Write persists data as <stem>.<ext> and returns the written path
func (b *Batch) Write(stem string, data []byte) (string, error) {
	name := b.reserve(stem)
	path := filepath.Join(b.dir.Path, name+"."+b.dir.Ext)

	if err := os.WriteFile(path, data, 0644); err != nil {
		delete(b.used, name)
		return "", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	return path, nil
}
