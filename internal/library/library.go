// Package library finds playable files on disk.
package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
	"github.com/sahilm/fuzzy"
)

// Patterns match the files the player can open.
var Patterns = []string{"*.wav", "*.WAV", "*.wav.zst", "*.WAV.zst"}

// ErrNoMatch is returned by Resolve when no entry matches the query.
var ErrNoMatch = errors.New("no matching file")

// Entry is one playable file.
type Entry struct {
	Path    string // absolute path
	Name    string // path relative to the scanned directory
	Size    int64
	ModTime time.Time
}

// Entries implements fuzzy.Source over entry names.
type Entries []Entry

// String returns the name of entry i.
func (e Entries) String(i int) string {
	return e[i].Name
}

// Len returns the number of entries.
func (e Entries) Len() int {
	return len(e)
}

// Match reports whether name looks like a playable file.
func Match(name string) bool {
	base := filepath.Base(name)
	for _, p := range Patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

// Scan walks dir, including hidden and ignored files, and returns the
// playable files sorted by name.
func Scan(ctx context.Context, dir string) (Entries, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to resolve %s: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("unable to scan %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("unable to scan %s: not a directory", dir)
	}

	ch, err := gitcha.FindAllFilesExcept(abs, Patterns, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to scan %s: %w", dir, err)
	}

	var entries Entries
	for {
		select {
		case <-ctx.Done():
			// let the walker finish so it does not block on the channel
			go func() {
				for range ch { //nolint:revive
				}
			}()
			return entries, ctx.Err()
		case res, ok := <-ch:
			if !ok {
				slices.SortFunc(entries, func(a, b Entry) int {
					return strings.Compare(a.Name, b.Name)
				})
				log.Debug("library scan finished", "dir", abs, "files", len(entries))
				return entries, nil
			}
			e := Entry{Path: res.Path, Name: relative(abs, res.Path)}
			if res.Info != nil {
				e.Size = res.Info.Size()
				e.ModTime = res.Info.ModTime()
			}
			entries = append(entries, e)
		}
	}
}

// Resolve returns the entry that best matches query. An exact name match
// wins over fuzzy matches.
func Resolve(entries Entries, query string) (Entry, error) {
	for _, e := range entries {
		if e.Name == query || e.Path == query {
			return e, nil
		}
	}
	matches := fuzzy.FindFrom(query, entries)
	if len(matches) == 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNoMatch, query)
	}
	return entries[matches[0].Index], nil
}

func relative(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
