package enroll

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindToken(t *testing.T) {
	aliases := []string{"token", "accessToken", "authToken", "jwt"}
	tests := []struct {
		name string
		body string
		want string
	}{
		{"first alias", `{"token":"a","jwt":"d"}`, "a"},
		{"later alias", `{"authToken":"c","jwt":"d"}`, "c"},
		{"empty value skipped", `{"token":"","jwt":"d"}`, "d"},
		{"non-string skipped", `{"token":{"value":"x"},"accessToken":"b"}`, "b"},
		{"none", `{"user":"john"}`, ""},
		{"array body", `["token"]`, ""},
		{"not json", `token=abc`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := findToken(parseProfileBody([]byte(tt.body)), aliases)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseProfileBody(t *testing.T) {
	got := parseProfileBody([]byte(`{"profile":{"id":7,"roles":["owner"]}}`))
	want := map[string]any{"profile": map[string]any{"id": float64(7), "roles": []any{"owner"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseProfileBody mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, parseProfileBody(nil))
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "merchant",
		"exp": exp.Unix(),
	}).SignedString([]byte("unknown-to-us"))
	require.NoError(t, err)

	got := tokenExpiry(signed)
	require.NotNil(t, got)
	assert.True(t, exp.Equal(*got))

	got = tokenExpiry("Bearer " + signed)
	require.NotNil(t, got, "bearer prefix is ignored")

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "m"}).SignedString([]byte("k"))
	require.NoError(t, err)
	assert.Nil(t, tokenExpiry(noExp))
	assert.Nil(t, tokenExpiry("opaque-session-token"))
	assert.Nil(t, tokenExpiry("a.b.c"))
}
