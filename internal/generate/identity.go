package generate

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultFirstName = "John"
	DefaultLastName  = "Doe"

	phonePrefix = "401"
	phoneDigits = 6
)

// PhoneNumber returns "401" followed by six digits, each in the range 0-5.
func PhoneNumber() (string, error) {
	var b strings.Builder
	b.WriteString(phonePrefix)
	for i := 0; i < phoneDigits; i++ {
		d, err := randomInt(6)
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		b.WriteByte(byte('0' + d))
	}
	return b.String(), nil
}

// Email returns the plus-addressed default registration email for now.
func Email(now time.Time) string {
	return fmt.Sprintf("john.doe+%d@example.com", now.UnixMilli())
}
