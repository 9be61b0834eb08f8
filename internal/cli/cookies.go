package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newCookiesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Inspect or replace the cookie file handed to yt-dlp",
	}
	cmd.AddCommand(newCookiesStatusCommand(e), newCookiesSetCommand(e))
	return cmd
}

func newCookiesStatusCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the cookie file status as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.application()
			if err != nil {
				return err
			}
			defer closeApp()

			st, err := a.Cookies.Status()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
}

func newCookiesSetCommand(e *env) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the cookie file with a Netscape-format export",
		Example: `  clipper cookies set --file ~/Downloads/youtube-cookies.txt
  pbpaste | clipper cookies set --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if file == "-" {
				data, err = io.ReadAll(e.opts.Stdin)
			} else {
				data, err = os.ReadFile(file)
			}
			if err != nil {
				return fmt.Errorf("reading cookies: %w", err)
			}

			a, closeApp, err := e.application()
			if err != nil {
				return err
			}
			defer closeApp()

			if err := a.Cookies.Write(string(data)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cookies updated successfully (%d bytes written to %s)\n", len(data), a.Cookies.Path())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `cookie file to install, or "-" for stdin`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
