// Package locate finds the cubemap tiles a job should transform.
package locate

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
	"github.com/bmatcuk/doublestar/v4"
)

// ErrRootNotFound is returned when none of the candidate roots exists.
var ErrRootNotFound = errors.New("root directory not found")

// Mode selects how targets are interpreted.
type Mode string

const (
	// ModeFiles treats targets as file names directly inside the root.
	ModeFiles Mode = "files"
	// ModeRooms looks for the target names inside every immediate subdirectory of the root.
	ModeRooms Mode = "rooms"
	// ModeGlob treats targets as doublestar patterns relative to the root.
	ModeGlob Mode = "glob"
	// ModeWalk walks the whole tree and selects files whose name matches a target, ignoring case.
	ModeWalk Mode = "walk"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFiles, ModeRooms, ModeGlob, ModeWalk:
		return m, nil
	default:
		return "", fmt.Errorf("unknown match mode %q (files, rooms, glob, walk)", s)
	}
}

// RootError lists the candidates that were tried.
type RootError struct {
	Candidates []string
}

func (e *RootError) Error() string {
	return fmt.Sprintf("%s; checked: %s", ErrRootNotFound, strings.Join(e.Candidates, ", "))
}

func (e *RootError) Unwrap() error {
	return ErrRootNotFound
}

// ResolveRoot returns the first candidate that is an existing directory.
func ResolveRoot(candidates []string) (string, error) {
	for _, c := range candidates {
		if fsutil.IsDir(c) {
			return c, nil
		}
	}
	return "", &RootError{Candidates: candidates}
}

// ExistingRoots returns every candidate that is an existing directory, and the missing ones.
func ExistingRoots(candidates []string) (existing, missing []string) {
	for _, c := range candidates {
		if fsutil.IsDir(c) {
			existing = append(existing, c)
		} else {
			missing = append(missing, c)
		}
	}
	return existing, missing
}

// Match is one candidate file.
type Match struct {
	Path    string
	Room    string // parent directory name
	Target  string // file name or pattern that selected it
	Missing bool
}

// Result is the outcome of Find.
type Result struct {
	Root      string
	Matches   []Match
	Unmatched []string // glob patterns without hits
}

// Found returns matches that exist on disk.
func (r Result) Found() []Match {
	var out []Match
	for _, m := range r.Matches {
		if !m.Missing {
			out = append(out, m)
		}
	}
	return out
}

// Missing returns expected files that were not present.
func (r Result) Missing() []Match {
	var out []Match
	for _, m := range r.Matches {
		if m.Missing {
			out = append(out, m)
		}
	}
	return out
}

// Room groups found files by their parent directory name.
type Room struct {
	Name  string
	Files []string
}

// Rooms returns found files grouped by room, in first-seen order.
func (r Result) Rooms() []Room {
	var rooms []Room
	index := make(map[string]int)
	for _, m := range r.Found() {
		i, ok := index[m.Room]
		if !ok {
			i = len(rooms)
			index[m.Room] = i
			rooms = append(rooms, Room{Name: m.Room})
		}
		rooms[i].Files = append(rooms[i].Files, m.Path)
	}
	return rooms
}

// Find collects the files under root selected by mode and targets.
// The order is deterministic: target order for files/rooms, pattern order then
// lexical order for glob, lexical walk order for walk.
func Find(root string, mode Mode, targets []string, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !fsutil.IsDir(root) {
		return Result{}, &RootError{Candidates: []string{root}}
	}

	res := Result{Root: root}
	var err error
	switch mode {
	case ModeFiles:
		res.Matches = findFiles(root, targets)
	case ModeRooms:
		res.Matches, err = findRooms(root, targets)
	case ModeGlob:
		res.Matches, res.Unmatched, err = findGlob(root, targets)
	case ModeWalk:
		res.Matches, err = findWalk(root, targets, logger)
	default:
		err = fmt.Errorf("unknown match mode %q", mode)
	}
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func newMatch(path, target string) Match {
	return Match{
		Path:   path,
		Room:   filepath.Base(filepath.Dir(path)),
		Target: target,
	}
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func findFiles(dir string, names []string) []Match {
	matches := make([]Match, 0, len(names))
	for _, name := range names {
		m := newMatch(filepath.Join(dir, name), name)
		m.Missing = !isRegular(m.Path)
		matches = append(matches, m)
	}
	return matches
}

func findRooms(root string, names []string) ([]Match, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", root, err)
	}

	var matches []Match
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		matches = append(matches, findFiles(filepath.Join(root, e.Name()), names)...)
	}
	return matches, nil
}

func findGlob(root string, patterns []string) ([]Match, []string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)

	var (
		matches   []Match
		unmatched []string
	)
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, nil, fmt.Errorf("invalid glob pattern %q", pattern)
		}

		hits, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to glob %q in %s: %w", pattern, root, err)
		}
		sort.Strings(hits)

		n := 0
		for _, hit := range hits {
			if hidden(hit) {
				continue
			}
			path := filepath.Join(root, filepath.FromSlash(hit))
			if seen[path] || !isRegular(path) {
				continue
			}
			seen[path] = true
			matches = append(matches, newMatch(path, pattern))
			n++
		}
		if n == 0 {
			unmatched = append(unmatched, pattern)
		}
	}
	return matches, unmatched, nil
}

func hidden(slashPath string) bool {
	for _, part := range strings.Split(slashPath, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func findWalk(root string, names []string, logger *slog.Logger) ([]Match, error) {
	want := make(map[string]string, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = n
	}

	var matches []Match
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if target, ok := want[strings.ToLower(d.Name())]; ok {
			matches = append(matches, newMatch(path, target))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return matches, nil
}

// Listing describes the rooms under root and their files. It is printed when
// a job finds nothing, to help spot a wrong layout.
func Listing(root string) (map[string][]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, f.Name())
		}
		out[e.Name()] = names
	}
	return out, nil
}
