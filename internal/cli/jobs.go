package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/clipper/internal/registry"
	"github.com/raysh454/clipper/internal/timecode"
)

func newJobsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job ledger",
	}
	cmd.AddCommand(newJobsListCommand(e))
	return cmd
}

func newJobsListCommand(e *env) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.application()
			if err != nil {
				return err
			}
			defer closeApp()

			jobs, err := a.Registry.ListJobs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			}
			return printJobs(cmd, jobs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of jobs (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printJobs(cmd *cobra.Command, jobs []registry.Job) error {
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tWINDOW\tDETAIL")
	for _, j := range jobs {
		window := "-"
		if j.EndSec > 0 {
			window = timecode.FormatSeconds(j.StartSec) + "-" + timecode.FormatSeconds(j.EndSec)
		}
		detail := j.Title
		if j.Error != "" {
			detail = j.Error
		}
		if detail == "" {
			detail = j.SourceURL
		}
		created := time.Unix(j.CreatedAt, 0).Local().Format("2006-01-02 15:04:05")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.Status, created, window, detail)
	}
	return tw.Flush()
}
