package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/tourtiles/internal/markers"
	"github.com/MeKo-Tech/tourtiles/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Generate room-to-room marker positions",
	Long: `Compute markerPositions for every house in the catalog that lists
tour360.rooms. Markers to the other rooms are spread evenly over 360° of yaw.

With --apply the original file is copied to <file>.backup and the catalog is
rewritten with two-space indentation.`,
	RunE: runMarkers,
}

func init() {
	rootCmd.AddCommand(markersCmd)

	markersCmd.Flags().String("file", markers.DefaultPath, "House catalog JSON file")
	markersCmd.Flags().Bool("apply", false, "Write changes (default is a dry run)")
	markersCmd.Flags().String("report", "", "Write a YAML report to this file")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"markers.file", "file"},
		{"markers.apply", "apply"},
		{"markers.report", "report"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, markersCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runMarkers(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	apply := viper.GetBool("markers.apply")
	rep, err := generateMarkers(cmd.OutOrStdout(), logger, viper.GetString("markers.file"), apply)
	if err != nil {
		return err
	}

	if path := viper.GetString("markers.report"); path != "" {
		run := report.NewRun("markers", apply, time.Now())
		run.Markers = rep
		if err := run.Save(path); err != nil {
			return err
		}
		logger.Info("Report written", "path", path)
	}
	return nil
}

func generateMarkers(out io.Writer, log *slog.Logger, path string, apply bool) (markers.Report, error) {
	rep, err := markers.Run(path, markers.RunOptions{Logger: log, Apply: apply})
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return rep, err
	}

	for _, h := range rep.Updated {
		fmt.Fprintf(out, "✅ markerPositions for house %s (%d rooms)\n", h.ID, h.Rooms)
	}
	if rep.Backup != "" {
		fmt.Fprintf(out, "💾 Backup: %s\n", rep.Backup)
	}
	fmt.Fprintf(out, "\n📊 Houses updated: %d\n", len(rep.Updated))
	if apply {
		fmt.Fprintf(out, "🏠 Saved: %s\n", path)
	} else {
		fmt.Fprintln(out, "🔎 Dry run: nothing written (use --apply)")
	}
	return rep, nil
}
