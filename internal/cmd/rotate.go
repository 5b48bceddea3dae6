package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/backup"
	"github.com/MeKo-Tech/tourtiles/internal/batch"
	"github.com/MeKo-Tech/tourtiles/internal/config"
	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
	"github.com/MeKo-Tech/tourtiles/internal/ledger"
	"github.com/MeKo-Tech/tourtiles/internal/locate"
	"github.com/MeKo-Tech/tourtiles/internal/report"
	"github.com/MeKo-Tech/tourtiles/internal/rotate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// findMatches is swapped out in tests to simulate unreadable roots.
var findMatches = locate.Find

var rotateCmd = &cobra.Command{
	Use:   "rotate [job...]",
	Short: "Rotate cubemap tiles by 180°",
	Long: `Rotate the up/down tiles selected by one or more jobs by 180° in place.

Without --apply the command only lists the files it would rotate. Files already
rotated according to the ledger are skipped unless --force is given.`,
	Example: `  tourtiles rotate pine
  tourtiles rotate pine --apply --backup timestamp
  tourtiles rotate everest neo --apply --report reports/rotate.yaml`,
	RunE: runRotate,
}

func init() {
	rootCmd.AddCommand(rotateCmd)

	rotateCmd.Flags().Bool("apply", false, "Write changes (default is a dry run)")
	rotateCmd.Flags().Bool("all", false, "Run every rotate job")
	rotateCmd.Flags().Bool("force", false, "Rotate files the ledger marks as already rotated")
	rotateCmd.Flags().String("backup", "", "Override the job backup policy (none, suffix, stem, timestamp)")
	rotateCmd.Flags().String("root", "", "Use this root directory instead of the job roots")
	rotateCmd.Flags().Int("quality", 0, "Override the job JPEG/WebP quality (1-100)")
	rotateCmd.Flags().Bool("no-ledger", false, "Do not consult or update the rotation ledger")
	rotateCmd.Flags().Bool("progress", true, "Print one line per file")
	rotateCmd.Flags().Bool("strict", false, "Exit non-zero when any file fails")
	rotateCmd.Flags().String("report", "", "Write a YAML report to this file")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"rotate.apply", "apply"},
		{"rotate.all", "all"},
		{"rotate.force", "force"},
		{"rotate.backup", "backup"},
		{"rotate.root", "root"},
		{"rotate.quality", "quality"},
		{"rotate.no_ledger", "no-ledger"},
		{"rotate.progress", "progress"},
		{"rotate.strict", "strict"},
		{"rotate.report", "report"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, rotateCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// rotateSettings are the command-line overrides applied to every selected job.
type rotateSettings struct {
	Ledger   *ledger.Ledger
	Logger   *slog.Logger
	Out      io.Writer
	Backup   string
	Root     string
	Quality  int
	Apply    bool
	Force    bool
	Progress bool
}

func runRotate(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	jobs, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	selected, err := selectJobs(jobs.OfKind(config.KindRotate), args, viper.GetBool("rotate.all"))
	if err != nil {
		return err
	}

	settings := rotateSettings{
		Logger:   logger,
		Out:      cmd.OutOrStdout(),
		Backup:   viper.GetString("rotate.backup"),
		Root:     viper.GetString("rotate.root"),
		Quality:  viper.GetInt("rotate.quality"),
		Apply:    viper.GetBool("rotate.apply"),
		Force:    viper.GetBool("rotate.force"),
		Progress: viper.GetBool("rotate.progress"),
	}
	if settings.Root != "" && len(selected) > 1 {
		return fmt.Errorf("--root can only be used with a single job")
	}

	if !viper.GetBool("rotate.no_ledger") {
		l, err := openLedger(viper.GetString("ledger.path"), settings.Apply)
		if err != nil {
			return err
		}
		if l != nil {
			defer l.Close()
			settings.Ledger = l
		}
	}

	if !settings.Apply {
		fmt.Fprintln(settings.Out, "🔎 Dry run: nothing will be written (use --apply)")
	}

	run := report.NewRun("rotate", settings.Apply, time.Now())
	failed := 0
	var runErr error
	for _, job := range selected {
		jr, counts, err := rotateJob(cmd.Context(), job, settings)
		run.Jobs = append(run.Jobs, jr)
		failed += counts.Failed
		if err != nil {
			runErr = err
			break
		}
	}

	if path := viper.GetString("rotate.report"); path != "" {
		if err := run.Save(path); err != nil {
			return err
		}
		logger.Info("Report written", "path", path)
	}

	if runErr != nil {
		return runErr
	}
	if failed > 0 && viper.GetBool("rotate.strict") {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// selectJobs picks jobs by name, or all of them.
func selectJobs(jobs config.Jobs, names []string, all bool) (config.Jobs, error) {
	if all {
		if len(names) > 0 {
			return nil, fmt.Errorf("--all cannot be combined with job names")
		}
		return jobs, nil
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no job given; choose one of: %s", strings.Join(jobs.Names(), ", "))
	}

	out := make(config.Jobs, 0, len(names))
	for _, name := range names {
		j, ok := jobs.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown job %q; choose one of: %s", name, strings.Join(jobs.Names(), ", "))
		}
		out = append(out, j)
	}
	return out, nil
}

// openLedger opens the ledger. In dry runs a missing database is not created.
func openLedger(path string, apply bool) (*ledger.Ledger, error) {
	if path == "" {
		return nil, nil
	}
	if !apply && !fsutil.Exists(path) {
		return nil, nil
	}
	return ledger.Open(path)
}

// rotateJob finds and rotates the files of one job. A missing root is fatal
// for the job; per-file failures are only counted.
func rotateJob(ctx context.Context, job config.Job, s rotateSettings) (report.Job, batch.Counts, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}

	jr := report.Job{Name: job.Name}

	policy := job.BackupPolicy()
	if s.Backup != "" {
		p, err := backup.ParsePolicy(s.Backup)
		if err != nil {
			return jr, batch.Counts{}, err
		}
		policy = p
	}
	quality := job.Quality
	if s.Quality != 0 {
		if s.Quality < 1 || s.Quality > 100 {
			return jr, batch.Counts{}, fmt.Errorf("quality %d outside 1..100", s.Quality)
		}
		quality = s.Quality
	}

	roots := job.Roots
	if s.Root != "" {
		roots = []string{s.Root}
	}

	fmt.Fprintf(s.Out, "\n🏠 Job %s", job.Name)
	if job.Description != "" {
		fmt.Fprintf(s.Out, ": %s", job.Description)
	}
	fmt.Fprintln(s.Out)

	allRoots := job.AllRoots && s.Root == ""
	var useRoots []string
	if allRoots {
		existing, missing := locate.ExistingRoots(roots)
		for _, m := range missing {
			log.Warn("Root not found, skipping", "job", job.Name, "root", m)
			fmt.Fprintf(s.Out, "⚠️  Directory not found: %s\n", m)
		}
		useRoots = existing
	} else {
		root, err := locate.ResolveRoot(roots)
		if err != nil {
			jr.Error = err.Error()
			fmt.Fprintf(s.Out, "❌ Directory not found. Checked:\n")
			for _, c := range roots {
				fmt.Fprintf(s.Out, "  - %s\n", c)
			}
			return jr, batch.Counts{}, fmt.Errorf("job %s: %w", job.Name, err)
		}
		useRoots = []string{root}
	}
	jr.Roots = useRoots

	var tasks []batch.Task
	for _, root := range useRoots {
		res, err := findMatches(root, job.MatchMode(), job.Targets, log)
		if err != nil {
			if !allRoots {
				jr.Error = err.Error()
				return jr, batch.Counts{}, fmt.Errorf("job %s: %w", job.Name, err)
			}
			// One unreadable house does not stop the others.
			log.Error("Could not search root, skipping", "job", job.Name, "root", root, "error", err)
			fmt.Fprintf(s.Out, "❌ Could not search %s: %v\n", root, err)
			if jr.Error != "" {
				jr.Error += "; "
			}
			jr.Error += err.Error()
			continue
		}

		for _, m := range res.Missing() {
			log.Warn("File not found", "path", m.Path)
			jr.Missing = append(jr.Missing, m.Path)
		}
		for _, p := range res.Unmatched {
			log.Warn("No files match pattern", "root", root, "pattern", p)
		}

		printRooms(s.Out, root, res.Rooms())
		for _, m := range res.Found() {
			tasks = append(tasks, batch.Task{Path: m.Path, Room: m.Room})
		}
	}

	if len(tasks) == 0 {
		fmt.Fprintf(s.Out, "❌ No files found for %s\n", strings.Join(job.Targets, ", "))
		for _, root := range useRoots {
			printListing(s.Out, root)
		}
		return jr, batch.Counts{}, nil
	}

	rot := rotate.New(rotate.Options{
		Ledger:   s.Ledger,
		Logger:   log,
		Job:      job.Name,
		Backup:   policy,
		Quality:  quality,
		Lossless: job.Lossless,
		Apply:    s.Apply,
		Force:    s.Force,
	})

	progress := batch.NewProgressTo(s.Out, s.Progress)
	runner := batch.New(batch.Config{
		Processor:  rot,
		OnProgress: progress.Callback(),
	})
	results := runner.Run(ctx, tasks)
	counts := batch.Count(results)

	fmt.Fprintf(s.Out, "📊 %s\n", progress.Summary())
	if s.Apply && policy != backup.None && counts.Done > 0 {
		fmt.Fprintf(s.Out, "💾 Backups written next to the originals (policy %s)\n", policy)
	}
	log.Info("Job finished",
		"job", job.Name,
		"found", len(tasks),
		"missing", len(jr.Missing),
		"rotated", counts.Done,
		"skipped", counts.Skipped,
		"failed", counts.Failed,
	)

	jr.Files = report.Files(results)
	if counts.Cancelled > 0 {
		return jr, counts, fmt.Errorf("job %s: %w", job.Name, context.Canceled)
	}
	return jr, counts, nil
}

func printRooms(w io.Writer, root string, rooms []locate.Room) {
	if len(rooms) == 0 {
		return
	}
	total := 0
	for _, r := range rooms {
		total += len(r.Files)
	}
	fmt.Fprintf(w, "📁 %s: %d file(s) in %d room(s)\n", root, total, len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(w, "  🚪 %s: %d\n", r.Name, len(r.Files))
	}
}

func printListing(w io.Writer, root string) {
	listing, err := locate.Listing(root)
	if err != nil {
		fmt.Fprintf(w, "  could not list %s: %v\n", root, err)
		return
	}
	names := make([]string, 0, len(listing))
	for name := range listing {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "📁 Contents of %s:\n", root)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, strings.Join(listing[name], ", "))
	}
}
