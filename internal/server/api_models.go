package server

import "github.com/raysh454/clipper/internal/registry"

// ClipRequest is the payload of POST /api/clip. Times accept "HH:MM:SS",
// "MM:SS", plain seconds as a string, or a JSON number.
type ClipRequest struct {
	URL       string `json:"url" example:"https://www.youtube.com/watch?v=dQw4w9WgXcQ"`
	StartTime string `json:"startTime" example:"0:42"`
	EndTime   string `json:"endTime" example:"1:30"`
	JobID     string `json:"jobId,omitempty" example:"3f1c2a9e-8d4b-4f7e-9a61-0c5d2b7e4f10"`
}

// UpdateCookiesRequest replaces the cookie file content.
type UpdateCookiesRequest struct {
	Cookies string `json:"cookies" example:"# Netscape HTTP Cookie File"`
}

// UpdateCookiesResponse confirms a cookie update.
type UpdateCookiesResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Cookies updated successfully"`
}

// JobResponse is a ledger row, enriched with live progress while the job is
// still running on this instance.
type JobResponse struct {
	registry.Job
	Active  bool    `json:"active"`
	Percent float64 `json:"percent,omitempty" example:"42.5"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"Invalid start or end time."`
}

// VideoErrorResponse is returned when the extraction tool fails.
type VideoErrorResponse struct {
	Error   string `json:"error" example:"Video is unavailable or private."`
	Details string `json:"details" example:"ERROR: [youtube] dQw4w9WgXcQ: Video unavailable"`
}
