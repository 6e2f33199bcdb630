// internal/generate/password.go
package generate

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	UpperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	LowerChars   = "abcdefghijklmnopqrstuvwxyz"
	DigitChars   = "0123456789"
	SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	DefaultPasswordLength = 16
)

var ErrNoCategories = errors.New("at least one character category must be enabled")

// PasswordOptions selects the length and character categories of a password.
type PasswordOptions struct {
	Length         int
	IncludeUpper   bool
	IncludeLower   bool
	IncludeDigits  bool
	IncludeSpecial bool
}

// DefaultPasswordOptions returns a 16 character policy with every category enabled.
func DefaultPasswordOptions() PasswordOptions {
	return PasswordOptions{
		Length:         DefaultPasswordLength,
		IncludeUpper:   true,
		IncludeLower:   true,
		IncludeDigits:  true,
		IncludeSpecial: true,
	}
}

func (o PasswordOptions) categories() []string {
	var sets []string
	if o.IncludeUpper {
		sets = append(sets, UpperChars)
	}
	if o.IncludeLower {
		sets = append(sets, LowerChars)
	}
	if o.IncludeDigits {
		sets = append(sets, DigitChars)
	}
	if o.IncludeSpecial {
		sets = append(sets, SpecialChars)
	}
	return sets
}

// Password returns a password of exactly opts.Length characters holding at
// least one character from every enabled category. All randomness comes from
// crypto/rand.
func Password(opts PasswordOptions) (string, error) {
	sets := opts.categories()
	if len(sets) == 0 {
		return "", ErrNoCategories
	}
	if opts.Length < len(sets) {
		return "", fmt.Errorf("password length %d cannot hold %d required categories", opts.Length, len(sets))
	}

	var pool string
	for _, s := range sets {
		pool += s
	}

	password := make([]byte, 0, opts.Length)
	for _, charset := range sets {
		c, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}
	for len(password) < opts.Length {
		c, err := randomChar(pool)
		if err != nil {
			return "", err
		}
		password = append(password, c)
	}

	// Fisher-Yates so the mandatory characters are not always up front.
	for i := len(password) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure during shuffle: %w", err)
		}
		password[i], password[j] = password[j], password[i]
	}
	return string(password), nil
}

func randomChar(charset string) (byte, error) {
	n, err := randomInt(len(charset))
	if err != nil {
		return 0, fmt.Errorf("crypto/rand failure: %w", err)
	}
	return charset[n], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
