// Command fakeytdlp is a stand-in for yt-dlp used for local demos and
// end-to-end checks without network access. It understands the subset of
// flags clipper passes.
//
// Usage: YTDLP_PATH=$(go env GOPATH)/bin/fakeytdlp clipper serve
//
// Behaviour is tuned through the environment:
//
//	FAKEYTDLP_TITLE     title reported by --dump-json (default "Demo clip")
//	FAKEYTDLP_DURATION  video duration in seconds (default 1200)
//	FAKEYTDLP_DELAY     pause between progress lines (default 50ms)
//
// URLs containing "unavailable" or "agegate" fail the way yt-dlp does.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const version = "2099.01.01-fake"

type options struct {
	dumpJSON bool
	version  bool
	sections string
	output   string
	cookies  string
	format   string
	recode   string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var o options
	fs := pflag.NewFlagSet("yt-dlp", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.BoolVar(&o.dumpJSON, "dump-json", false, "")
	fs.BoolVar(&o.version, "version", false, "")
	fs.StringVar(&o.sections, "download-sections", "", "")
	fs.StringVarP(&o.output, "output", "o", "%(title)s.%(ext)s", "")
	fs.StringVar(&o.cookies, "cookies", "", "")
	fs.StringVarP(&o.format, "format", "f", "", "")
	fs.StringVar(&o.recode, "recode-video", "", "")
	fs.Bool("no-warnings", false, "")
	fs.Bool("no-playlist", false, "")
	fs.Bool("no-check-certificate", false, "")
	fs.Bool("force-keyframes-at-cuts", false, "")
	fs.Bool("newline", false, "")
	fs.Bool("progress", false, "")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "yt-dlp: error: %v\n", err)
		return 2
	}

	if o.version {
		fmt.Println(version)
		return 0
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "ERROR: You must provide at least one URL.")
		return 2
	}
	url := fs.Arg(0)

	switch {
	case strings.Contains(url, "unavailable"):
		fmt.Fprintf(os.Stderr, "ERROR: [fake] %s: Video unavailable\n", url)
		return 1
	case strings.Contains(url, "agegate"):
		fmt.Fprintf(os.Stderr, "ERROR: [fake] %s: Sign in to confirm your age. This video may be inappropriate for some users.\n", url)
		return 1
	}

	title := envOr("FAKEYTDLP_TITLE", "Demo clip")
	duration, err := strconv.ParseFloat(envOr("FAKEYTDLP_DURATION", "1200"), 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: bad FAKEYTDLP_DURATION: %v\n", err)
		return 2
	}

	if o.dumpJSON {
		return dumpJSON(url, title, duration)
	}
	return download(o, title)
}

func dumpJSON(url, title string, duration float64) int {
	info := map[string]interface{}{
		"id":          "fake0000001",
		"title":       title,
		"duration":    duration,
		"extractor":   "fake",
		"webpage_url": url,
		"uploader":    "fakeytdlp",
		"is_live":     false,
	}
	if err := json.NewEncoder(os.Stdout).Encode(info); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

func download(o options, title string) int {
	start, end, err := parseSection(o.sections)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: invalid --download-sections %q: %v\n", o.sections, err)
		return 2
	}

	ext := "mp4"
	if o.recode != "" {
		ext = o.recode
	}
	dest := strings.NewReplacer("%(title)s", sanitize(title), "%(ext)s", ext, "%(id)s", "fake0000001").Replace(o.output)
	if dir := filepath.Dir(dest); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return 1
		}
	}

	delay, err := time.ParseDuration(envOr("FAKEYTDLP_DELAY", "50ms"))
	if err != nil {
		delay = 50 * time.Millisecond
	}

	fmt.Printf("[info] fake0000001: Downloading 1 time ranges: %g-%g\n", start, end)
	fmt.Printf("[download] Destination: %s.part\n", dest)
	for pct := 0; pct <= 100; pct += 20 {
		fmt.Printf("[download] %5.1f%% of ~1.00MiB at 2.00MiB/s ETA 00:0%d\n", float64(pct), (100-pct)/20)
		time.Sleep(delay)
	}

	// Roughly one kilobyte per clipped second.
	size := int((end - start) * 1024)
	if size <= 0 {
		size = 1024
	}
	if err := os.WriteFile(dest, make([]byte, size), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: unable to write %s: %v\n", dest, err)
		return 1
	}
	fmt.Printf("[VideoConvertor] Not converting media file %q; already is in target format mp4\n", dest)
	return 0
}

// parseSection reads "*START-END" in seconds.
func parseSection(s string) (float64, float64, error) {
	if s == "" {
		return 0, 0, nil
	}
	s = strings.TrimPrefix(s, "*")
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("expected *START-END")
	}
	start, err := strconv.ParseFloat(from, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseFloat(to, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// sanitize mimics yt-dlp's filename cleanup for the characters that matter.
func sanitize(title string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, title)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
