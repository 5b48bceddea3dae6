package rotate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
	"github.com/MeKo-Tech/tourtiles/internal/imageio"
)

var (
	// ErrSourceMissing is returned when the back face to derive from does not exist.
	ErrSourceMissing = errors.New("source image not found")
	// ErrOutputsExist is returned when derived files exist and overwriting was not requested.
	ErrOutputsExist = errors.New("derived images already exist")
)

// FrontOptions configures DeriveFront.
type FrontOptions struct {
	Source    string   // file name inside the room, default "b.webp"
	Outputs   []string // file names to write, default f.webp and f.jpg
	Overwrite bool
}

func (o FrontOptions) withDefaults() FrontOptions {
	if o.Source == "" {
		o.Source = "b.webp"
	}
	if len(o.Outputs) == 0 {
		o.Outputs = []string{"f.webp", "f.jpg"}
	}
	return o
}

// FrontResult reports what DeriveFront did or would do.
type FrontResult struct {
	Source   string
	Written  []string
	Existing []string // outputs present before the run
	Backups  []string
}

// DeriveFront builds the front face of a room by rotating its back face 180°
// and saving it under every output name. Existing outputs are only replaced
// with opts.Overwrite, after a copy of each under the rotator's backup policy.
func (r *Rotator) DeriveFront(ctx context.Context, dir string, opts FrontOptions) (FrontResult, error) {
	opts = opts.withDefaults()
	res := FrontResult{Source: filepath.Join(dir, opts.Source)}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if !fsutil.Exists(res.Source) {
		return res, fmt.Errorf("%w: %s", ErrSourceMissing, res.Source)
	}

	outputs := make([]string, 0, len(opts.Outputs))
	for _, name := range opts.Outputs {
		path := filepath.Join(dir, name)
		if _, err := imageio.FormatFromPath(path); err != nil {
			return res, err
		}
		if fsutil.Exists(path) {
			res.Existing = append(res.Existing, path)
		}
		outputs = append(outputs, path)
	}

	if len(res.Existing) > 0 && !opts.Overwrite {
		return res, fmt.Errorf("%w: %v", ErrOutputsExist, res.Existing)
	}

	if !r.opts.Apply {
		return res, nil
	}

	for _, path := range res.Existing {
		bk, err := backup.Create(path, r.opts.Backup, r.opts.Now())
		if err != nil {
			return res, fmt.Errorf("backup failed: %w", err)
		}
		if bk.Created {
			res.Backups = append(res.Backups, bk.Path)
		}
	}

	img, _, err := imageio.Read(res.Source)
	if err != nil {
		return res, err
	}
	front := Rotate180(img)

	for _, path := range outputs {
		if err := imageio.WriteFile(path, front, r.encodeOptions()); err != nil {
			return res, err
		}
		res.Written = append(res.Written, path)
		r.log().Info("Front image written", "path", path)
	}

	return res, nil
}
