package markers

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
)

// DefaultPath is the house catalog location relative to the project root.
const DefaultPath = "public/data/house-assets.json"

// ErrNotFound is returned when the catalog file does not exist.
var ErrNotFound = errors.New("house catalog not found")

// RunOptions configures Run.
type RunOptions struct {
	Logger *slog.Logger
	Now    func() time.Time
	Apply  bool // false computes the result without writing anything
}

// Report is the outcome of Run.
type Report struct {
	Result `yaml:",inline"`
	Path   string `yaml:"path"`
	Backup string `yaml:"backup,omitempty"`
}

// Run updates the catalog at path in place. The original bytes are copied to
// path+".backup" first. Nothing is written when the file is missing or does
// not parse.
func Run(path string, opts RunOptions) (Report, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	rep := Report{Path: path}

	doc, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return rep, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return rep, fmt.Errorf("failed to read %s: %w", path, err)
	}

	out, res, err := Apply(doc)
	if err != nil {
		return rep, fmt.Errorf("%s: %w", path, err)
	}
	rep.Result = res

	for _, h := range res.Updated {
		logger.Debug("Marker positions computed", "house", h.ID, "rooms", h.Rooms)
	}
	for _, id := range res.Skipped {
		logger.Debug("House has no tour360 rooms, left unchanged", "house", id)
	}

	if !opts.Apply {
		return rep, nil
	}

	bk, err := backup.Create(path, backup.Suffix, now())
	if err != nil {
		return rep, fmt.Errorf("failed to back up %s: %w", path, err)
	}
	rep.Backup = bk.Path
	logger.Info("Backup written", "path", bk.Path)

	err = fsutil.WriteAtomic(path, func(w io.Writer) error {
		_, err := w.Write(out)
		return err
	})
	if err != nil {
		return rep, err
	}

	logger.Info("House catalog updated", "path", path, "houses", len(res.Updated))
	return rep, nil
}
