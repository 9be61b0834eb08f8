package ytdlp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/raysh454/clipper/internal/clip"
	"github.com/raysh454/clipper/internal/logging"
)

var (
	ErrEmptyOutput = errors.New("yt-dlp returned empty output")
	ErrInfoParse   = errors.New("failed to parse video info")
)

// ToolError is a failed invocation. Its message is the tool's own diagnostic
// so that callers can match on known phrases.
type ToolError struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *ToolError) Error() string {
	if msg := strings.TrimSpace(e.Stderr); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(e.Stdout); msg != "" {
		return msg
	}
	return fmt.Sprintf("yt-dlp failed with exit code %d", e.ExitCode)
}

// VideoInfo is the subset of --dump-json output the clipper uses.
type VideoInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	Extractor  string  `json:"extractor"`
	WebpageURL string  `json:"webpage_url"`
	Uploader   string  `json:"uploader,omitempty"`
	IsLive     bool    `json:"is_live,omitempty"`
}

// DownloadRequest describes one section download.
type DownloadRequest struct {
	URL    string
	Window clip.Window
	// OutputTemplate is a yt-dlp --output template, e.g. "/dl/<job>_%(title)s.%(ext)s".
	OutputTemplate string
	// CookiesPath is passed with --cookies when non-empty.
	CookiesPath string
}

// Client builds tool invocations and interprets their results.
type Client struct {
	runner Runner
	cfg    Config
	logger logging.Logger
}

func NewClient(runner Runner, cfg Config, logger logging.Logger) *Client {
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	return &Client{runner: runner, cfg: cfg, logger: logger}
}

// FetchInfo runs the tool in --dump-json mode.
//
// The tool sometimes exits non-zero after printing valid JSON (e.g. on a
// post-processing warning), so a JSON-looking stdout wins over the exit code.
func (c *Client) FetchInfo(ctx context.Context, url, cookiesPath string) (*VideoInfo, error) {
	args := []string{"--dump-json", "--no-warnings", "--no-playlist", "--no-check-certificate"}
	if cookiesPath != "" {
		args = append(args, "--cookies", cookiesPath)
	}
	args = append(args, url)

	res, err := c.runner.Run(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching video info: %w", err)
	}

	out := strings.TrimSpace(res.Stdout)
	if res.ExitCode != 0 && !strings.HasPrefix(out, "{") {
		return nil, fmt.Errorf("fetching video info: %w", &ToolError{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr})
	}
	if out == "" {
		if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyOutput, truncate(stderr, previewLen))
		}
		return nil, fmt.Errorf("%w: the video may be unavailable, private, or region-restricted", ErrEmptyOutput)
	}

	var info VideoInfo
	if err := json.NewDecoder(strings.NewReader(out)).Decode(&info); err != nil {
		c.logger.Warn("decoding video info", logging.Field{Key: "error", Value: err}, logging.Field{Key: "output", Value: truncate(out, previewLen)})
		return nil, fmt.Errorf("%w: the video may be unavailable or private", ErrInfoParse)
	}
	return &info, nil
}

// Download fetches only the requested section and recodes it to MP4.
// onProgress, when non-nil, receives download percentages.
func (c *Client) Download(ctx context.Context, req DownloadRequest, onProgress func(float64)) error {
	args := []string{
		"--download-sections", req.Window.Section(),
		"--force-keyframes-at-cuts",
		"--format", c.cfg.Format,
		"--output", req.OutputTemplate,
		"--no-playlist",
		"--recode-video", "mp4",
		"--newline",
		"--progress",
	}
	if req.CookiesPath != "" {
		args = append(args, "--cookies", req.CookiesPath)
	}
	args = append(args, req.URL)

	var onLine func(string)
	if onProgress != nil {
		onLine = func(line string) {
			if pct, ok := ParseProgress(line); ok {
				onProgress(pct)
			}
		}
	}

	res, err := c.runner.Run(ctx, args, onLine)
	if err != nil {
		return fmt.Errorf("downloading section: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("downloading section: %w", &ToolError{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr})
	}
	return nil
}

// Version returns the tool's reported version.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, []string{"--version"}, nil)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &ToolError{ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

var progressRe = regexp.MustCompile(`^\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a "[download]  42.3% of ..." line.
func ParseProgress(line string) (float64, bool) {
	m := progressRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// UserMessage maps a tool failure to the short text shown to clients.
// Matching is on phrases the tool is known to print; anything else gets a
// generic message.
func UserMessage(err error) string {
	if errors.Is(err, ErrNotInstalled) {
		return "Video tool is not installed on the server."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Video processing timed out."
	}

	msg := "Failed to process video."
	text := err.Error()
	if strings.Contains(text, "Video unavailable") {
		msg = "Video is unavailable or private."
	}
	if strings.Contains(text, "Sign in to confirm") {
		msg = "Video is age-restricted."
	}
	return msg
}
