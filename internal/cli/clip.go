package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raysh454/clipper/internal/app"
	"github.com/raysh454/clipper/internal/clip"
	"github.com/raysh454/clipper/internal/timecode"
)

func newClipCommand(e *env) *cobra.Command {
	var (
		start    string
		end      string
		out      string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "clip <url>",
		Short: "Clip a section of a video into a local MP4 file",
		Example: `  clipper clip "https://youtu.be/dQw4w9WgXcQ" --start 0:42 --end 1:30
  clipper clip "https://youtu.be/dQw4w9WgXcQ" --start 1:00:00 --out ./clips/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := e.application()
			if err != nil {
				return err
			}
			defer closeApp()

			req := clip.Request{
				URL:       args[0],
				StartTime: timecode.String(start),
				EndTime:   timecode.String(end),
				JobID:     uuid.New().String(),
			}

			done := make(chan clipOutcome, 1)
			go func() {
				res, err := a.Orch.Clip(cmd.Context(), req)
				done <- clipOutcome{res, err}
			}()

			var result clipOutcome
			if progress {
				result = followProgress(a.Orch, req.JobID, cmd.ErrOrStderr(), done)
			} else {
				result = <-done
			}
			if result.err != nil {
				return fmt.Errorf("%s: %w", app.UserMessage(result.err), result.err)
			}
			res := result.res
			defer res.Cleanup()

			dest, err := destination(out, res)
			if err != nil {
				return err
			}
			if err := moveFile(res.Path, dest); err != nil {
				return fmt.Errorf("saving clip: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s-%s, %d bytes)\n",
				dest, timecode.FormatSeconds(res.Window.Start), timecode.FormatSeconds(res.Window.End), res.Size)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "start time (HH:MM:SS, MM:SS or seconds; default 0)")
	cmd.Flags().StringVar(&end, "end", "", "end time (default: end of the video)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: current directory)")
	cmd.Flags().BoolVar(&progress, "progress", false, "print download progress to stderr")
	return cmd
}

type clipOutcome struct {
	res *app.ClipResult
	err error
}

// followProgress prints job events until the clip finishes.
func followProgress(o *app.Orchestrator, jobID string, w io.Writer, done <-chan clipOutcome) clipOutcome {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case r := <-done:
			return r
		case <-ticker.C:
		}
		events, unsubscribe, ok := o.Subscribe(jobID)
		if !ok {
			continue
		}
		for ev := range events {
			switch ev.Type {
			case app.JobEventProgress:
				fmt.Fprintf(w, "\rdownloading %5.1f%%", ev.Percent)
			case app.JobEventStatus:
				if ev.Error != "" {
					fmt.Fprintf(w, "\n%s: %s\n", ev.Status, ev.Error)
				}
			}
		}
		unsubscribe()
		fmt.Fprintln(w)
		return <-done
	}
}

// destination picks the output path. The job prefix is dropped from the
// generated name.
func destination(out string, res *app.ClipResult) (string, error) {
	name := strings.TrimPrefix(res.FileName, res.JobID+"_")
	if out == "" {
		return name, nil
	}
	fi, err := os.Stat(out)
	switch {
	case err == nil && fi.IsDir():
		return filepath.Join(out, name), nil
	case err == nil, errors.Is(err, os.ErrNotExist):
		if strings.HasSuffix(out, string(os.PathSeparator)) {
			if err := os.MkdirAll(out, 0o755); err != nil {
				return "", err
			}
			return filepath.Join(out, name), nil
		}
		return out, nil
	default:
		return "", err
	}
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		os.Remove(dst)
		return err
	}
	if err := outFile.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
