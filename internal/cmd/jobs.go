package cmd

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/tourtiles/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the configured jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
			data, err := yaml.Marshal(map[string]config.Jobs{"jobs": jobs})
			if err != nil {
				return fmt.Errorf("failed to marshal jobs: %w", err)
			}
			_, err = out.Write(data)
			return err
		}

		for _, j := range jobs {
			fmt.Fprintf(out, "%-16s %-6s %s\n", j.Name, j.Kind, j.Description)
			fmt.Fprintf(out, "%16s roots:   %s\n", "", strings.Join(j.Roots, ", "))
			fmt.Fprintf(out, "%16s targets: %s (%s, backup %s, quality %d)\n", "",
				strings.Join(j.Targets, ", "), j.Mode, j.Backup, j.Quality)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.Flags().Bool("yaml", false, "Print jobs as a config.yaml snippet")
}
