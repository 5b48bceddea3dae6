// Package rotate turns cubemap tiles upside down (180°) in place.
package rotate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/batch"
	"github.com/MeKo-Tech/tourtiles/internal/imageio"
	"github.com/MeKo-Tech/tourtiles/internal/ledger"
	"github.com/disintegration/gift"
	"github.com/dustin/go-humanize"
)

// Angle is the only rotation this package applies.
const Angle = 180

// Rotate180 returns src turned by 180 degrees.
func Rotate180(src image.Image) *image.NRGBA {
	g := gift.New(gift.Rotate180())
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}

// Options configures a Rotator.
type Options struct {
	Ledger   *ledger.Ledger // optional; nil disables the already-rotated check
	Now      func() time.Time
	Logger   *slog.Logger
	Job      string
	Backup   backup.Policy
	Quality  int
	Lossless bool // WebP only
	Apply    bool // false lists the work without touching files
	Force    bool // rotate even when the ledger says the file is already rotated
}

// Rotator rotates files one at a time. It implements batch.Processor.
type Rotator struct {
	opts Options
}

// New creates a Rotator.
func New(opts Options) *Rotator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Backup == "" {
		opts.Backup = backup.None
	}
	return &Rotator{opts: opts}
}

func (r *Rotator) log() *slog.Logger {
	if r.opts.Logger != nil {
		return r.opts.Logger
	}
	return slog.Default()
}

// Process implements batch.Processor.
func (r *Rotator) Process(ctx context.Context, task batch.Task) (batch.Status, error) {
	return r.File(ctx, task.Path)
}

// File rotates the image at path by 180° and writes it back in place.
// The backup, when the policy asks for one, is written before the image.
func (r *Rotator) File(ctx context.Context, path string) (batch.Status, error) {
	if err := ctx.Err(); err != nil {
		return batch.StatusCancelled, err
	}

	if _, err := imageio.FormatFromPath(path); err != nil {
		return batch.StatusFailed, err
	}

	var before string
	if r.opts.Ledger != nil {
		sum, err := ledger.Checksum(path)
		if err != nil {
			return batch.StatusFailed, err
		}
		before = sum

		rotated, err := r.opts.Ledger.IsRotated(path, sum)
		if err != nil {
			return batch.StatusFailed, err
		}
		if rotated && !r.opts.Force {
			r.log().Debug("Already rotated, skipping", "path", path)
			return batch.StatusSkipped, nil
		}
	}

	if !r.opts.Apply {
		return batch.StatusPlanned, nil
	}

	bk, err := backup.Create(path, r.opts.Backup, r.opts.Now())
	if err != nil {
		return batch.StatusFailed, fmt.Errorf("backup failed: %w", err)
	}
	if bk.Created {
		r.log().Info("Backup written", "path", bk.Path, "size", humanize.Bytes(uint64(bk.Size)))
	} else if bk.Path != "" {
		r.log().Debug("Backup already present", "path", bk.Path)
	}

	img, _, err := imageio.Read(path)
	if err != nil {
		return batch.StatusFailed, err
	}

	if err := imageio.WriteFile(path, Rotate180(img), r.encodeOptions()); err != nil {
		return batch.StatusFailed, err
	}

	if r.opts.Ledger != nil {
		after, err := ledger.Checksum(path)
		if err != nil {
			return batch.StatusFailed, err
		}
		entry := ledger.Entry{
			Path:      path,
			Before:    before,
			After:     after,
			Angle:     Angle,
			Job:       r.opts.Job,
			RotatedAt: r.opts.Now(),
		}
		if err := r.opts.Ledger.Record(entry); err != nil {
			return batch.StatusFailed, fmt.Errorf("rotated but not recorded: %w", err)
		}
	}

	return batch.StatusDone, nil
}

func (r *Rotator) encodeOptions() imageio.EncodeOptions {
	return imageio.EncodeOptions{Quality: r.opts.Quality, Lossless: r.opts.Lossless}
}
