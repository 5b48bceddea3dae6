package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/tourtiles/internal/config"
	"github.com/MeKo-Tech/tourtiles/internal/rotate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frontJob(roots ...string) config.Job {
	return config.Job{
		Name:    "front",
		Kind:    config.KindFront,
		Roots:   roots,
		Targets: []string{"b.png", "f.png"},
		Backup:  "suffix",
		Quality: 95,
	}
}

func TestDeriveFront_Apply(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bathroom")
	tile(t, filepath.Join(dir, "b.png"))

	var out bytes.Buffer
	err := deriveFront(context.Background(), frontJob(filepath.Join(t.TempDir(), "missing"), dir), frontSettings{Out: &out, Apply: true})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "f.png"))
	assert.Contains(t, out.String(), "Created")
	assert.Contains(t, out.String(), "- b.png")
}

func TestDeriveFront_ExistingNeedsOverwrite(t *testing.T) {
	dir := t.TempDir()
	tile(t, filepath.Join(dir, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.png"), []byte("old"), 0o644))

	var out bytes.Buffer
	err := deriveFront(context.Background(), frontJob(dir), frontSettings{Out: &out, Apply: true})
	require.ErrorIs(t, err, rotate.ErrOutputsExist)
	assert.Contains(t, out.String(), "--overwrite")

	out.Reset()
	err = deriveFront(context.Background(), frontJob(dir), frontSettings{Out: &out, Apply: true, Overwrite: true})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "f.png.backup"))
}

func TestDeriveFront_UsesJobBackupPolicy(t *testing.T) {
	dir := t.TempDir()
	tile(t, filepath.Join(dir, "b.png"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.png"), []byte("old"), 0o644))

	job := frontJob(dir)
	job.Backup = "none"

	var out bytes.Buffer
	err := deriveFront(context.Background(), job, frontSettings{Out: &out, Apply: true, Overwrite: true})
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "f.png.backup"))
	assert.NotContains(t, out.String(), "Backup:")
}

func TestDeriveFront_MissingRoom(t *testing.T) {
	var out bytes.Buffer
	err := deriveFront(context.Background(), frontJob(filepath.Join(t.TempDir(), "x")), frontSettings{Out: &out})
	require.Error(t, err)
	assert.Contains(t, out.String(), "not found")
}
