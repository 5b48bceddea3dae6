package rotate

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/batch"
	"github.com/MeKo-Tech/tourtiles/internal/imageio"
	"github.com/MeKo-Tech/tourtiles/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 30), G: uint8(y * 40), B: uint8(x*y + 7), A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imageio.WriteFile(path, img, imageio.EncodeOptions{}))
}

func readNRGBA(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	img, _, err := imageio.Read(path)
	require.NoError(t, err)
	out := image.NewNRGBA(img.Bounds())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}

func assertRotated(t *testing.T, orig, got *image.NRGBA) {
	t.Helper()
	w, h := orig.Bounds().Dx(), orig.Bounds().Dy()
	require.Equal(t, orig.Bounds().Size(), got.Bounds().Size())
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			require.Equal(t, orig.NRGBAAt(w-1-x, h-1-y), got.NRGBAAt(x, y), "pixel %d,%d", x, y)
		}
	}
}

func TestRotate180(t *testing.T) {
	src := pattern(5, 3)
	assertRotated(t, src, Rotate180(src))
	assert.Equal(t, src.Pix, Rotate180(Rotate180(src)).Pix)
}

func TestFile_RotatesPNGExactly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room", "u.png")
	src := pattern(6, 4)
	writePNG(t, path, src)

	r := New(Options{Apply: true})
	status, err := r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusDone, status)

	assertRotated(t, src, readNRGBA(t, path))
}

func TestFile_TwiceRestoresOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "d.png")
	src := pattern(7, 5)
	writePNG(t, path, src)

	r := New(Options{Apply: true})
	for i := 0; i < 2; i++ {
		_, err := r.File(context.Background(), path)
		require.NoError(t, err)
	}

	assert.Equal(t, src.Pix, readNRGBA(t, path).Pix)
}

func TestFile_JPEGKeepsSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.jpg")
	require.NoError(t, imageio.WriteFile(path, pattern(16, 8), imageio.EncodeOptions{Quality: 95}))

	r := New(Options{Apply: true, Quality: 95})
	status, err := r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusDone, status)

	img, format, err := imageio.Read(path)
	require.NoError(t, err)
	assert.Equal(t, imageio.FormatJPEG, format)
	assert.Equal(t, image.Pt(16, 8), img.Bounds().Size())
}

// quadrants paints the top-left quarter red on a blue background, coarse
// enough to survive lossy encoding.
func quadrants(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := color.NRGBA{B: 255, A: 255}
			if x < size/2 && y < size/2 {
				c = color.NRGBA{R: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func assertNear(t *testing.T, want, got color.NRGBA, msg string) {
	t.Helper()
	const tolerance = 48
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d <= tolerance && d >= -tolerance
	}
	assert.True(t, near(want.R, got.R) && near(want.G, got.G) && near(want.B, got.B),
		"%s: want ~%v, got %v", msg, want, got)
}

func TestFile_RotatesLossyTiles(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	tests := []struct {
		name string
		file string
	}{
		{name: "jpeg", file: "u.jpg"},
		{name: "webp", file: "d.webp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const size = 32
			path := filepath.Join(t.TempDir(), "bathroom", tt.file)
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, imageio.WriteFile(path, quadrants(size), imageio.EncodeOptions{Quality: 95}))
			orig, err := os.ReadFile(path)
			require.NoError(t, err)

			r := New(Options{Apply: true, Quality: 95, Backup: backup.Suffix})
			status, err := r.File(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, batch.StatusDone, status)

			bk, err := os.ReadFile(path + ".backup")
			require.NoError(t, err)
			assert.Equal(t, orig, bk, "backup must be the untouched file")

			got := readNRGBA(t, path)
			require.Equal(t, image.Pt(size, size), got.Bounds().Size())
			assertNear(t, blue, got.NRGBAAt(4, 4), "top-left after one turn")
			assertNear(t, red, got.NRGBAAt(size-5, size-5), "bottom-right after one turn")

			_, err = r.File(context.Background(), path)
			require.NoError(t, err)

			got = readNRGBA(t, path)
			assertNear(t, red, got.NRGBAAt(4, 4), "top-left after two turns")
			assertNear(t, blue, got.NRGBAAt(size-5, size-5), "bottom-right after two turns")
		})
	}
}

func TestFile_DryRunLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.png")
	writePNG(t, path, pattern(4, 4))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	r := New(Options{Backup: backup.Suffix})
	status, err := r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusPlanned, status)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.NoFileExists(t, path+".backup")
}

func TestFile_BackupIsOriginalBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.png")
	writePNG(t, path, pattern(4, 3))
	orig, err := os.ReadFile(path)
	require.NoError(t, err)

	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New(Options{Apply: true, Backup: backup.Timestamp, Now: func() time.Time { return now }})
	_, err = r.File(context.Background(), path)
	require.NoError(t, err)

	bk, err := os.ReadFile(path + ".backup_20250102_030405")
	require.NoError(t, err)
	assert.Equal(t, orig, bk)
}

func TestFile_Errors(t *testing.T) {
	dir := t.TempDir()
	r := New(Options{Apply: true})

	_, err := r.File(context.Background(), filepath.Join(dir, "missing.jpg"))
	require.Error(t, err)

	corrupt := filepath.Join(dir, "d.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("garbage"), 0o644))
	status, err := r.File(context.Background(), corrupt)
	require.Error(t, err)
	assert.Equal(t, batch.StatusFailed, status)

	got, err := os.ReadFile(corrupt)
	require.NoError(t, err)
	assert.Equal(t, "garbage", string(got), "failed decode must not touch the file")

	_, err = r.File(context.Background(), filepath.Join(dir, "notes.txt"))
	require.ErrorIs(t, err, imageio.ErrUnsupportedFormat)
}

func TestFile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := New(Options{Apply: true}).File(ctx, "u.jpg")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, batch.StatusCancelled, status)
}

func TestFile_LedgerSkipsSecondRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "u.png")
	src := pattern(5, 5)
	writePNG(t, path, src)

	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	r := New(Options{Apply: true, Ledger: l, Job: "test"})

	status, err := r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusDone, status)

	status, err = r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusSkipped, status)
	assertRotated(t, src, readNRGBA(t, path))

	e, ok, err := l.Lookup(path)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "test", e.Job)
	assert.Equal(t, Angle, e.Angle)

	forced := New(Options{Apply: true, Ledger: l, Force: true})
	status, err = forced.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusDone, status)
	assert.Equal(t, src.Pix, readNRGBA(t, path).Pix)
}

func TestFile_LedgerIgnoresReplacedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.png")
	writePNG(t, path, pattern(3, 3))

	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	r := New(Options{Apply: true, Ledger: l})
	_, err = r.File(context.Background(), path)
	require.NoError(t, err)

	// a fresh export replaces the tile; it has never been rotated
	writePNG(t, path, pattern(4, 2))
	status, err := r.File(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, batch.StatusDone, status)
}

func TestProcess_UsesTaskPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u.png")
	writePNG(t, path, pattern(2, 2))

	var p batch.Processor = New(Options{})
	status, err := p.Process(context.Background(), batch.Task{Path: path})
	require.NoError(t, err)
	assert.Equal(t, batch.StatusPlanned, status)
}
