// internal/api/decode.go
package api

import (
	"bytes"
	"io"
	"net/http"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/merchant-enroll/internal/errs"
	"github.com/xkilldash9x/merchant-enroll/internal/otp"
	"github.com/xkilldash9x/merchant-enroll/internal/service"
)

const maxRequestBody = 1 << 20

// field binds a JSON property to the string it fills.
type field struct {
	name string
	dst  *string
}

func registrationFields(req *service.RegistrationRequest) []field {
	return []field{
		{"firstName", &req.FirstName},
		{"lastName", &req.LastName},
		{"email", &req.Email},
		{"password", &req.Password},
		{"phoneNumber", &req.PhoneNumber},
	}
}

func verificationFields(req *otp.Request) []field {
	return []field{
		{"otpCode", &req.OTPCode},
		{"phoneNumber", &req.PhoneNumber},
		{"newPhoneNumber", &req.NewPhoneNumber},
		{"authToken", &req.AuthToken},
		{"email", &req.Email},
	}
}

// decodeBody fills fields from an optional JSON object body. Strings and
// numbers are both accepted; a number keeps its literal text. A missing or
// malformed body leaves every field empty. Any other value type is a
// validation error naming the field.
func (h *Handler) decodeBody(r *http.Request, fields []field) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		h.logger.Debug("Ignoring malformed request body.", zap.Error(err))
		return nil
	}
	for _, f := range fields {
		raw, ok := obj[f.name]
		if !ok {
			continue
		}
		v, ok := scalarText(raw)
		if !ok {
			return errs.Newf(errs.KindValidation, "decode request", "%s must be a string or number", f.name)
		}
		*f.dst = v
	}
	return nil
}

// scalarText returns the text of a JSON string or number. null is empty.
func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", true
	}
	switch c := raw[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case c == '-' || (c >= '0' && c <= '9'):
		return string(raw), true
	case bytes.Equal(raw, []byte("null")):
		return "", true
	}
	return "", false
}
