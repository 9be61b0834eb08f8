package ytdlp

import "time"

// DefaultFormat prefers MP4 video with M4A audio so recoding is usually a remux.
const DefaultFormat = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"

type Config struct {
	// Binary is the executable to run, looked up in PATH when not absolute.
	Binary string

	// PrefixArgs are placed before every argument list, e.g. ["-m", "yt_dlp"]
	// when Binary is a Python interpreter.
	PrefixArgs []string

	// Env entries are appended to the server's environment.
	Env []string

	// WorkDir is the working directory of the subprocess.
	WorkDir string

	// Timeout bounds a single invocation. Zero disables it.
	Timeout time.Duration

	// Format is passed to --format for downloads.
	Format string
}

func DefaultConfig() Config {
	return Config{
		Binary:  "yt-dlp",
		Timeout: 15 * time.Minute,
		Format:  DefaultFormat,
	}
}
