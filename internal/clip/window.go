package clip

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/raysh454/clipper/internal/timecode"
)

// DefaultMaxDuration caps the length of a single clip.
const DefaultMaxDuration = 20 * time.Minute

var (
	ErrInvalidRange        = errors.New("invalid start or end time")
	ErrStartBeyondDuration = errors.New("start time is beyond video duration")
)

// TooLongError reports a requested window longer than the allowed maximum.
type TooLongError struct {
	Requested float64
	Max       time.Duration
}

func (e *TooLongError) Error() string {
	return fmt.Sprintf("clip too long: %.0fs requested, max %s", e.Requested, e.Max)
}

// IsValidation reports whether err is caused by bad user input rather than by
// the extraction tool.
func IsValidation(err error) bool {
	var tooLong *TooLongError
	return errors.Is(err, ErrMissingURL) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrStartBeyondDuration) ||
		errors.Is(err, timecode.ErrInvalidTime) ||
		errors.As(err, &tooLong)
}

// UserMessage returns the text shown to clients for a validation error, or ""
// when err is not one.
func UserMessage(err error) string {
	var tooLong *TooLongError
	switch {
	case errors.Is(err, ErrMissingURL):
		return "URL is required"
	case errors.As(err, &tooLong):
		return fmt.Sprintf("Clip too long (%dm). Max allowed is %d minutes.",
			int(math.Floor(tooLong.Requested/60)), int(tooLong.Max/time.Minute))
	case errors.Is(err, ErrStartBeyondDuration):
		return "Start time is beyond video duration."
	case errors.Is(err, ErrInvalidRange), errors.Is(err, timecode.ErrInvalidTime):
		return "Invalid start or end time."
	}
	return ""
}

// Request is a clip request as submitted by a client.
type Request struct {
	URL       string         `json:"url"`
	StartTime timecode.Value `json:"startTime"`
	EndTime   timecode.Value `json:"endTime"`
	// JobID optionally lets the caller pick the job identifier up front so it
	// can subscribe to progress before the response arrives.
	JobID string `json:"jobId,omitempty"`
}

// Window is a validated time range in seconds.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (w Window) Duration() float64 {
	return w.End - w.Start
}

// Section renders the window in the tool's download-sections syntax.
func (w Window) Section() string {
	return "*" + formatSeconds(w.Start) + "-" + formatSeconds(w.End)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ResolveWindow turns the requested start/end into a Window for a video of the
// given duration (seconds, 0 when unknown).
//
// A missing start means 0. A missing or zero end means the end of the video.
// Checks run in order: ordering, maximum length, start within the video.
func ResolveWindow(start, end timecode.Value, duration float64, max time.Duration) (Window, error) {
	if max <= 0 {
		max = DefaultMaxDuration
	}

	startSec, err := start.Resolve()
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	endSec, err := end.Resolve()
	if err != nil {
		return Window{}, fmt.Errorf("%w: %w", ErrInvalidRange, err)
	}
	if endSec == 0 {
		endSec = duration
	}

	if startSec < 0 || !(endSec > startSec) {
		return Window{}, ErrInvalidRange
	}

	if length := endSec - startSec; length > max.Seconds() {
		return Window{}, &TooLongError{Requested: length, Max: max}
	}

	if duration > 0 && startSec > duration {
		return Window{}, ErrStartBeyondDuration
	}

	return Window{Start: startSec, End: endSec}, nil
}
