package server

import (
	"github.com/raysh454/clipper/internal/app"
	"github.com/raysh454/clipper/internal/logging"
	"github.com/raysh454/clipper/internal/ytdlp"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server. Empty means
	// AppConfig.ListenAddr.
	ListenAddr string

	// StaticDir, when set, is served at "/" with an index.html fallback for
	// client-side routes. Empty means AppConfig.StaticDir.
	StaticDir string

	AppConfig *app.Config
	Logger    logging.Logger

	// Runner replaces the yt-dlp subprocess runner (tests).
	Runner ytdlp.Runner
}
