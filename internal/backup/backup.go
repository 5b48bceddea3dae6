// Package backup copies originals aside before they are overwritten.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
)

// Policy selects how backup file names are derived.
type Policy string

const (
	// None writes no backup.
	None Policy = "none"
	// Suffix appends ".backup": u.jpg -> u.jpg.backup. Existing backups are replaced.
	Suffix Policy = "suffix"
	// Stem inserts "_backup" before the extension: u.jpg -> u_backup.jpg.
	// An existing backup is kept, so the first original survives repeated runs.
	Stem Policy = "stem"
	// Timestamp appends ".backup_YYYYMMDD_HHMMSS".
	Timestamp Policy = "timestamp"
)

// TimestampLayout is the time format used by the Timestamp policy.
const TimestampLayout = "20060102_150405"

// ParsePolicy validates a policy name. The empty string means None.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return None, nil
	case None, Suffix, Stem, Timestamp:
		return p, nil
	default:
		return "", fmt.Errorf("unknown backup policy %q (none, suffix, stem, timestamp)", s)
	}
}

// Path returns the backup path for src, or "" for None.
func Path(src string, p Policy, now time.Time) string {
	switch p {
	case Suffix:
		return src + ".backup"
	case Stem:
		ext := filepath.Ext(src)
		return strings.TrimSuffix(src, ext) + "_backup" + ext
	case Timestamp:
		return src + ".backup_" + now.Format(TimestampLayout)
	default:
		return ""
	}
}

// Result describes a backup attempt.
type Result struct {
	Path    string
	Size    int64
	Created bool
}

// Create copies src to its backup path. The copy is byte-identical and keeps
// the source mode and modification time.
func Create(src string, p Policy, now time.Time) (Result, error) {
	dst := Path(src, p, now)
	if dst == "" {
		return Result{}, nil
	}
	if p == Stem && fsutil.Exists(dst) {
		return Result{Path: dst}, nil
	}

	size, err := copyFile(src, dst)
	if err != nil {
		return Result{Path: dst}, err
	}
	return Result{Path: dst, Size: size, Created: true}, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create backup %s: %w", dst, err)
	}

	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close backup %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return n, fmt.Errorf("failed to set times on %s: %w", dst, err)
	}

	return n, nil
}
