package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/raysh454/clipper/internal/clip"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/ytdlp"
)

// Config contains the runtime configuration shared by the server and the CLI.
type Config struct {
	// ListenAddr is the HTTP listen address of the API server.
	ListenAddr string

	// StaticDir optionally serves a built front-end from the server root.
	StaticDir string

	// StorageRoot is the base path for the ledger database and work files.
	StorageRoot string

	// DownloadDir holds the transient output files, one per job. Defaults to
	// <StorageRoot>/downloads.
	DownloadDir string

	// WorkDir holds per-job scratch files such as cookie snapshots. Defaults
	// to <StorageRoot>/work.
	WorkDir string

	// CookiesFile is the credential file edited through the API. Defaults to
	// <StorageRoot>/cookies.txt.
	CookiesFile string

	// MaxClipDuration caps the requested window length.
	MaxClipDuration time.Duration

	// MaxConcurrentJobs bounds how many clips run at once.
	MaxConcurrentJobs int

	// FileRetention is how old an orphaned output file must be before the
	// janitor removes it.
	FileRetention time.Duration

	// JobRetentionTime is how long finished jobs stay in the ledger.
	JobRetentionTime time.Duration

	// JanitorInterval is the period of the cleanup loop.
	JanitorInterval time.Duration

	YtDlpCfg ytdlp.Config
	LogCfg   logging.Config
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        ":3001",
		StorageRoot:       "~/.local/share/clipper",
		MaxClipDuration:   clip.DefaultMaxDuration,
		MaxConcurrentJobs: 4,
		FileRetention:     time.Hour,
		JobRetentionTime:  30 * 24 * time.Hour,
		JanitorInterval:   10 * time.Minute,
		YtDlpCfg:          ytdlp.DefaultConfig(),
		LogCfg:            logging.DefaultConfig(),
	}
}

// LoadConfig builds a Config from defaults, an optional .env file and the
// environment. When envFile is empty a ".env" in the working directory is
// used if present. Derived paths are filled in later by Resolve.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := DefaultConfig()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.ListenAddr = ":" + v
	}
	setString(&c.ListenAddr, getenv("CLIPPER_ADDR"))
	setString(&c.StaticDir, getenv("CLIPPER_STATIC_DIR"))
	setString(&c.StorageRoot, getenv("CLIPPER_STORAGE_ROOT"))
	setString(&c.DownloadDir, getenv("CLIPPER_DOWNLOAD_DIR"))
	setString(&c.CookiesFile, getenv("CLIPPER_COOKIES_FILE"))
	setString(&c.YtDlpCfg.Binary, getenv("YTDLP_PATH"))
	setString(&c.LogCfg.Level, getenv("CLIPPER_LOG_LEVEL"))
	setString(&c.LogCfg.Format, getenv("CLIPPER_LOG_FORMAT"))

	if v := getenv("YTDLP_ARGS"); v != "" {
		c.YtDlpCfg.PrefixArgs = strings.Fields(v)
	}
	if v := getenv("CLIPPER_MAX_CLIP_MINUTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CLIPPER_MAX_CLIP_MINUTES %q", v)
		}
		c.MaxClipDuration = time.Duration(n) * time.Minute
	}
	if v := getenv("CLIPPER_MAX_CONCURRENT_JOBS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid CLIPPER_MAX_CONCURRENT_JOBS %q", v)
		}
		c.MaxConcurrentJobs = n
	}
	if v := getenv("CLIPPER_TOOL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid CLIPPER_TOOL_TIMEOUT %q", v)
		}
		c.YtDlpCfg.Timeout = d
	}
	return nil
}

// Resolve expands "~" and fills paths derived from StorageRoot.
func (c *Config) Resolve() error {
	root, err := expandPath(c.StorageRoot)
	if err != nil {
		return fmt.Errorf("expanding storage root path: %w", err)
	}
	c.StorageRoot = root

	if c.DownloadDir == "" {
		c.DownloadDir = filepath.Join(root, "downloads")
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(root, "work")
	}
	if c.CookiesFile == "" {
		c.CookiesFile = filepath.Join(root, "cookies.txt")
	}
	for _, p := range []*string{&c.DownloadDir, &c.WorkDir, &c.CookiesFile, &c.StaticDir} {
		if *p == "" {
			continue
		}
		if *p, err = expandPath(*p); err != nil {
			return err
		}
	}
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 1
	}
	return nil
}

// DatabasePath is the location of the job ledger.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StorageRoot, "clipper.db")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
