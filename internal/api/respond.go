// internal/api/respond.go
package api

import (
	"net/http"

	json "github.com/json-iterator/go"
)

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorKind string `json:"errorKind,omitempty"`
}

func respondWithError(w http.ResponseWriter, status int, msg, kind string) {
	respondWithJSON(w, status, errorBody{Error: msg, ErrorKind: kind})
}

// method rejects any other method with 405 and an Allow header.
func method(allowed string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed {
			w.Header().Set("Allow", allowed)
			respondWithError(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
			return
		}
		next(w, r)
	}
}
