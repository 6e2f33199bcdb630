package browser

import (
	"net/url"
	"strings"
)

const redacted = "***"

// RemoteURL appends the access token to the CDP endpoint the way Browserless
// expects it.
func RemoteURL(endpoint, token string) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "token=" + url.QueryEscape(token)
}

// RedactURL masks every token-like query parameter of raw so it can be logged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	q := u.Query()
	changed := false
	for key := range q {
		switch strings.ToLower(key) {
		case "token", "apikey", "api_key", "access_token":
			q.Set(key, redacted)
			changed = true
		}
	}
	if u.User != nil {
		u.User = url.User(redacted)
		changed = true
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	// Encoding escapes the mask.
	return strings.ReplaceAll(u.String(), url.QueryEscape(redacted), redacted)
}
