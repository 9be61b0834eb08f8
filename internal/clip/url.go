package clip

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var ErrMissingURL = errors.New("url is required")

const watchURLPrefix = "https://www.youtube.com/watch?v="

// NormalizeURL prepares a user supplied video URL for the extraction tool.
//
// When the URL carries a "v" query parameter only the video id survives:
//
//	https://youtube.com/watch?v=abc&list=PL1&t=30  -> https://www.youtube.com/watch?v=abc
//	https://m.youtube.com/watch?feature=share&v=abc -> https://www.youtube.com/watch?v=abc
//
// The id is query-escaped so a decoded "&" cannot reintroduce parameters.
// Other URLs keep their path and query; scheme and host are lowercased and the
// host is converted to its ASCII form. Input that does not parse as an absolute
// URL is handed to the tool untouched, since it may still understand it.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrMissingURL
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw, nil
	}

	if id := strings.TrimSpace(u.Query().Get("v")); id != "" {
		return watchURLPrefix + url.QueryEscape(id), nil
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	if port := u.Port(); port != "" {
		host = host + ":" + port
	}
	u.Host = host
	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}
