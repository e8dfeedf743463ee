// Package statetoken generates and checks the single-use anti-forgery token
// bound to one login attempt.
package statetoken

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
)

const tokenLength = 16

// Generate produces a cryptographically random token, unique per login attempt.
func Generate() (string, error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", errors.Wrap(err, "[Generate] rand.Read")
	}
	return hex.EncodeToString(bytes), nil
}

// Validate compares a received state against the expected one in constant
// time. Empty values never validate.
func Validate(received, expected string) bool {
	if received == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(expected)) == 1
}
