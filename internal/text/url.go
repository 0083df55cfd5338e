package text

import (
	"net/url"
	"strings"
)

// IsHTTPProtocol reports whether rawURL parses as an absolute http or
// https URL with a host.
func IsHTTPProtocol(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// NormalizeURL canonicalizes a URL for use as a document identity:
// lowercase scheme and host, default ports dropped, fragment dropped,
// path and query preserved. Returns the input unchanged if it does not parse.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	return u.String()
}
