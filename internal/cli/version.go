package cli

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/raysh454/clipper/internal/ytdlp"
)

func newVersionCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print clipper and yt-dlp versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "clipper %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)

			a, closeApp, err := e.application()
			if err != nil {
				return err
			}
			defer closeApp()

			v, err := a.Orch.ToolVersion(cmd.Context())
			switch {
			case errors.Is(err, ytdlp.ErrNotInstalled):
				fmt.Fprintf(out, "yt-dlp not found at %q\n", a.Config.YtDlpCfg.Binary)
			case err != nil:
				fmt.Fprintf(out, "yt-dlp error: %v\n", err)
			default:
				fmt.Fprintf(out, "yt-dlp %s\n", v)
			}
			return nil
		},
	}
}
