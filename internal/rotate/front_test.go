package rotate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/imageio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveFront_FromBack(t *testing.T) {
	dir := t.TempDir()
	src := pattern(6, 6)
	writePNG(t, filepath.Join(dir, "b.png"), src)

	r := New(Options{Apply: true, Quality: 95})
	res, err := r.DeriveFront(context.Background(), dir, FrontOptions{
		Source:  "b.png",
		Outputs: []string{"f.png", "f.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "f.png"), filepath.Join(dir, "f.jpg")}, res.Written)
	assert.Empty(t, res.Backups)

	assertRotated(t, src, readNRGBA(t, filepath.Join(dir, "f.png")))

	_, format, err := imageio.Read(filepath.Join(dir, "f.jpg"))
	require.NoError(t, err)
	assert.Equal(t, imageio.FormatJPEG, format)
}

func TestDeriveFront_DefaultsToWebP(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imageio.WriteFile(filepath.Join(dir, "b.webp"), pattern(8, 8), imageio.EncodeOptions{Lossless: true}))

	r := New(Options{Apply: true, Lossless: true})
	res, err := r.DeriveFront(context.Background(), dir, FrontOptions{})
	require.NoError(t, err)
	assert.Len(t, res.Written, 2)
	assert.FileExists(t, filepath.Join(dir, "f.webp"))
	assert.FileExists(t, filepath.Join(dir, "f.jpg"))
}

func TestDeriveFront_MissingSource(t *testing.T) {
	r := New(Options{Apply: true})
	_, err := r.DeriveFront(context.Background(), t.TempDir(), FrontOptions{})
	require.ErrorIs(t, err, ErrSourceMissing)
}

func TestDeriveFront_ExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), pattern(4, 4))
	existing := filepath.Join(dir, "f.png")
	require.NoError(t, os.WriteFile(existing, []byte("old front"), 0o644))

	opts := FrontOptions{Source: "b.png", Outputs: []string{"f.png"}}
	r := New(Options{Apply: true, Backup: backup.Suffix})

	res, err := r.DeriveFront(context.Background(), dir, opts)
	require.ErrorIs(t, err, ErrOutputsExist)
	assert.Equal(t, []string{existing}, res.Existing)

	opts.Overwrite = true
	res, err = r.DeriveFront(context.Background(), dir, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{existing + ".backup"}, res.Backups)

	bk, err := os.ReadFile(existing + ".backup")
	require.NoError(t, err)
	assert.Equal(t, "old front", string(bk))
}

func TestDeriveFront_DryRun(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), pattern(4, 4))

	r := New(Options{})
	res, err := r.DeriveFront(context.Background(), dir, FrontOptions{Source: "b.png", Outputs: []string{"f.png"}})
	require.NoError(t, err)
	assert.Empty(t, res.Written)
	assert.NoFileExists(t, filepath.Join(dir, "f.png"))
}

func TestDeriveFront_BackupPolicy(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	tests := []struct {
		name   string
		policy backup.Policy
		want   string // backup file name, "" for none
	}{
		{name: "none", policy: backup.None},
		{name: "suffix", policy: backup.Suffix, want: "f.png.backup"},
		{name: "timestamp", policy: backup.Timestamp, want: "f.png.backup_20250304_050607"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writePNG(t, filepath.Join(dir, "b.png"), pattern(4, 4))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "f.png"), []byte("old front"), 0o644))

			r := New(Options{Apply: true, Backup: tt.policy, Now: func() time.Time { return now }})
			res, err := r.DeriveFront(context.Background(), dir, FrontOptions{
				Source:    "b.png",
				Outputs:   []string{"f.png"},
				Overwrite: true,
			})
			require.NoError(t, err)
			assert.Equal(t, []string{filepath.Join(dir, "f.png")}, res.Written)

			if tt.want == "" {
				assert.Empty(t, res.Backups)
				assert.NoFileExists(t, filepath.Join(dir, "f.png.backup"))
				return
			}
			assert.Equal(t, []string{filepath.Join(dir, tt.want)}, res.Backups)
			bk, err := os.ReadFile(filepath.Join(dir, tt.want))
			require.NoError(t, err)
			assert.Equal(t, "old front", string(bk))
		})
	}
}
