package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
	"github.com/MeKo-Tech/tourtiles/internal/ledger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the rotation ledger",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded rotations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("ledger.path")
		if !fsutil.Exists(path) {
			fmt.Fprintf(cmd.OutOrStdout(), "No ledger at %s\n", path)
			return nil
		}

		l, err := ledger.Open(path)
		if err != nil {
			return err
		}
		defer l.Close()

		entries, err := l.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "%s  %3d°  %-14s %s\n", e.RotatedAt.Format("2006-01-02 15:04:05"), e.Angle, e.Job, e.Path)
		}
		fmt.Fprintf(out, "%d file(s) recorded\n", len(entries))
		return nil
	},
}

var ledgerForgetCmd = &cobra.Command{
	Use:   "forget <path>...",
	Short: "Drop files from the ledger so the next run rotates them again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l, err := ledger.Open(viper.GetString("ledger.path"))
		if err != nil {
			return err
		}
		defer l.Close()

		for _, path := range args {
			removed, err := l.Forget(path)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", path)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "not recorded: %s\n", path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd, ledgerForgetCmd)
}
