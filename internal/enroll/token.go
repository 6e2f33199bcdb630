// internal/enroll/token.go
package enroll

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	json "github.com/json-iterator/go"
)

// parseProfileBody decodes the profile response. A body that is not JSON
// yields nil, which is not an error for the flow.
func parseProfileBody(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil
	}
	return v
}

// findToken returns the first alias present on the top-level object as a
// non-empty string.
func findToken(doc any, aliases []string) *string {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	for _, alias := range aliases {
		if s, ok := obj[alias].(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Tokens with
// no exp or that are not JWTs yield nil.
func tokenExpiry(token string) *time.Time {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if strings.Count(token, ".") != 2 {
		return nil
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	t := exp.Time.UTC()
	return &t
}
