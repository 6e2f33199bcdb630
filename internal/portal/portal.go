// internal/portal/portal.go
package portal

import (
	"context"
	"fmt"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/browser"
	"github.com/xkilldash9x/merchant-enroll/internal/errs"
)

// StepResult is the JSON-shaped outcome of one portal API call as reported
// back to the caller. A failed step carries an "error" entry.
type StepResult map[string]any

// Failed reports whether the step carries a truthy "error" entry.
func (s StepResult) Failed() bool {
	return truthy(s["error"])
}

// HasSuccessIndicator reports whether the portal answered with any positive
// signal rather than just an empty object.
func (s StepResult) HasSuccessIndicator() bool {
	for _, key := range []string{"success", "verified", "status", "message"} {
		if truthy(s[key]) {
			return true
		}
	}
	return false
}

// Call describes one authenticated portal call.
type Call struct {
	Name string
	// Action completes "Failed to <Action>: <status>".
	Action string
	// OKMessage is reported when a 2xx response has no JSON body.
	OKMessage     string
	Method        string
	URL           string
	Authorization string
	Body          any
}

// Do runs c through r and folds the outcome into a StepResult. The returned
// error is non-nil exactly when the step failed and is classified as a
// remote call failure; it is informational and already reflected in the
// result.
func Do(ctx context.Context, r browser.Requester, c Call, logger *zap.Logger) (StepResult, error) {
	log := logger.With(zap.String("call", c.Name))
	resp, err := r.Do(ctx, browser.APIRequest{
		Method:  c.Method,
		URL:     c.URL,
		Headers: map[string]string{"Authorization": c.Authorization},
		JSON:    c.Body,
	})
	if err != nil {
		log.Warn("Portal call failed.", zap.Error(err))
		msg := err.Error()
		if msg == "" {
			msg = "Failed to " + c.Action
		}
		return StepResult{"error": msg}, errs.New(errs.KindRemoteCall, c.Name, err)
	}

	if !resp.OK() {
		log.Warn("Portal call returned non-success status.", zap.Int("status", resp.Status))
		return StepResult{
			"error":  fmt.Sprintf("Failed to %s: %d", c.Action, resp.Status),
			"status": resp.Status,
		}, errs.Newf(errs.KindRemoteCall, c.Name, "status %d", resp.Status)
	}

	var decoded any
	if err := json.Unmarshal(resp.Body, &decoded); err != nil || decoded == nil {
		log.Debug("Portal call succeeded without a JSON body.", zap.Int("status", resp.Status))
		return StepResult{"status": resp.Status, "message": c.OKMessage}, nil
	}
	result, ok := decoded.(map[string]any)
	if !ok {
		// Arrays and scalars are kept but cannot carry an error entry.
		result = StepResult{"status": resp.Status, "message": c.OKMessage, "data": decoded}
	}
	log.Debug("Portal call succeeded.", zap.Int("status", resp.Status))
	return result, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}
