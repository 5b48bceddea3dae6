package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/MeKo-Tech/tourtiles/internal/config"
	"github.com/MeKo-Tech/tourtiles/internal/locate"
	"github.com/MeKo-Tech/tourtiles/internal/rotate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultFrontJob = "hemlock-front"

var frontCmd = &cobra.Command{
	Use:   "front [job]",
	Short: "Derive a missing front face from the back face",
	Long: `Build the front tile of a room by rotating its back tile by 180° and
saving it under the job's output names (f.webp and f.jpg by default).

Existing front tiles are only replaced with --overwrite; a .backup copy of each
is written first. Without --apply nothing is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFront,
}

func init() {
	rootCmd.AddCommand(frontCmd)

	frontCmd.Flags().Bool("apply", false, "Write changes (default is a dry run)")
	frontCmd.Flags().Bool("overwrite", false, "Replace existing front tiles")
	frontCmd.Flags().String("root", "", "Use this room directory instead of the job roots")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"front.apply", "apply"},
		{"front.overwrite", "overwrite"},
		{"front.root", "root"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, frontCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runFront(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	jobs, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	name := defaultFrontJob
	if len(args) == 1 {
		name = args[0]
	}
	selected, err := selectJobs(jobs.OfKind(config.KindFront), []string{name}, false)
	if err != nil {
		return err
	}

	return deriveFront(cmd.Context(), selected[0], frontSettings{
		Logger:    logger,
		Out:       cmd.OutOrStdout(),
		Root:      viper.GetString("front.root"),
		Apply:     viper.GetBool("front.apply"),
		Overwrite: viper.GetBool("front.overwrite"),
	})
}

type frontSettings struct {
	Logger    *slog.Logger
	Out       io.Writer
	Root      string
	Apply     bool
	Overwrite bool
}

func deriveFront(ctx context.Context, job config.Job, s frontSettings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	roots := job.Roots
	if s.Root != "" {
		roots = []string{s.Root}
	}
	dir, err := locate.ResolveRoot(roots)
	if err != nil {
		fmt.Fprintf(s.Out, "❌ Room directory not found. Checked:\n")
		for _, c := range roots {
			fmt.Fprintf(s.Out, "  - %s\n", c)
		}
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	fmt.Fprintf(s.Out, "🏠 Room: %s\n", dir)
	printFiles(s.Out, dir)

	source, outputs := job.FrontFiles()
	rot := rotate.New(rotate.Options{
		Logger:   log,
		Job:      job.Name,
		Backup:   job.BackupPolicy(),
		Quality:  job.Quality,
		Lossless: job.Lossless,
		Apply:    s.Apply,
	})

	res, err := rot.DeriveFront(ctx, dir, rotate.FrontOptions{
		Source:    source,
		Outputs:   outputs,
		Overwrite: s.Overwrite,
	})
	if err != nil {
		if len(res.Existing) > 0 && !s.Overwrite {
			fmt.Fprintf(s.Out, "⚠️  Front tiles already exist; rerun with --overwrite to replace them\n")
		}
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	log.Warn("Front face is the back face rotated 180°; check it in the viewer", "room", dir)

	if !s.Apply {
		fmt.Fprintf(s.Out, "🔎 Would create from %s:\n", res.Source)
		for _, o := range outputs {
			fmt.Fprintf(s.Out, "  - %s\n", filepath.Join(dir, o))
		}
		return nil
	}

	for _, b := range res.Backups {
		fmt.Fprintf(s.Out, "💾 Backup: %s\n", b)
	}
	for _, w := range res.Written {
		fmt.Fprintf(s.Out, "✅ Created: %s\n", w)
	}
	return nil
}

func printFiles(w io.Writer, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintf(w, "  could not list %s: %v\n", dir, err)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	fmt.Fprintln(w, "📁 Current files:")
	for _, n := range names {
		fmt.Fprintf(w, "  - %s\n", n)
	}
}
