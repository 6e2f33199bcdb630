// internal/enroll/result.go
package enroll

import (
	"time"

	"github.com/xkilldash9x/merchant-enroll/internal/errs"
)

// Identity is the account the flow signs up with. Every field is already
// resolved; defaults are filled in by the caller.
type Identity struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	PhoneNumber string
}

// Result is what a registration run recovered. Fields that were never
// reached stay nil.
type Result struct {
	Success         bool              `json:"success"`
	EmailUsed       string            `json:"emailUsed"`
	PhoneNumberUsed string            `json:"phoneNumberUsed"`
	AuthHeader      *string           `json:"authHeader"`
	DetectedToken   *string           `json:"detectedToken"`
	TokenExpiresAt  *time.Time        `json:"tokenExpiresAt,omitempty"`
	RequestHeaders  map[string]string `json:"requestHeaders"`
	ResponseJSON    any               `json:"responseJson"`
	// VerificationResponse holds the send-code outcome; absent when the code
	// was not requested.
	VerificationResponse map[string]any `json:"verificationResponse,omitempty"`

	Error     string    `json:"error,omitempty"`
	ErrorKind errs.Kind `json:"errorKind,omitempty"`
	// Err is the classified failure behind Error.
	Err error `json:"-"`
}

// Credential returns the value to present as Authorization on follow-up
// calls: the captured header as-is, else the detected token as a bearer.
func (r *Result) Credential() (string, bool) {
	if r.AuthHeader != nil && *r.AuthHeader != "" {
		return *r.AuthHeader, true
	}
	if r.DetectedToken != nil && *r.DetectedToken != "" {
		return "Bearer " + *r.DetectedToken, true
	}
	return "", false
}

// VerificationSent reports whether the portal accepted the send-code call.
func (r *Result) VerificationSent() bool {
	if r.VerificationResponse == nil {
		return false
	}
	_, failed := r.VerificationResponse["error"]
	return !failed
}

func (r *Result) fail(err error) *Result {
	r.Success = false
	r.Err = err
	r.Error = err.Error()
	r.ErrorKind = errs.KindOf(err)
	return r
}

// Failed builds the result for a run that could not start, such as when no
// browser session was available.
func Failed(id Identity, err error) *Result {
	return (&Result{EmailUsed: id.Email, PhoneNumberUsed: id.PhoneNumber}).fail(err)
}
