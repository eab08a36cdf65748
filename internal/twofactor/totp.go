// Package twofactor implements the pure parts of the TOTP subsystem:
// shared-secret generation, RFC 6238 code computation and verification with
// bounded clock-skew tolerance, and one-time recovery code generation.
// Persistence of recovery codes lives in the store layer.
package twofactor

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/dkrasnov/gatekeeper/internal/common"
)

const (
	// Period is the TOTP time-step length.
	Period = 30 * time.Second

	// Digits is the length of a generated code.
	Digits = 6

	// SkewSteps is the number of adjacent time steps accepted on either
	// side of the current one. One step keeps the usability of slightly
	// drifted clocks without accepting stale codes.
	SkewSteps = 1

	secretBytes = 20
)

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random base32 shared secret, independent of
// any prior secret. 20 random bytes encode to 32 base32 characters.
func GenerateSecret() (string, error) {
	raw, err := common.RandBytes(secretBytes)
	if err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// CodeAt computes the TOTP code for the time step containing at, using
// HMAC-SHA-512 over the base32-decoded secret.
func CodeAt(secret string, at time.Time) (string, error) {
	key, err := b32.DecodeString(strings.ToUpper(strings.TrimSpace(secret)))
	if err != nil {
		return "", fmt.Errorf("decoding secret: %w", err)
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(at.Unix())/uint64(Period.Seconds()))

	mac := hmac.New(sha512.New, key)
	mac.Write(counter[:])
	sum := mac.Sum(nil)

	// Dynamic truncation per RFC 4226 §5.3.
	offset := sum[len(sum)-1] & 0x0f
	bin := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", Digits, bin%1_000_000), nil
}

// Verify reports whether code matches the TOTP value for the step containing
// at or one of the SkewSteps adjacent steps. Comparison is constant-time.
// It never mutates state.
func Verify(secret, code string, at time.Time) bool {
	if len(code) != Digits {
		return false
	}
	match := false
	for step := -SkewSteps; step <= SkewSteps; step++ {
		expected, err := CodeAt(secret, at.Add(time.Duration(step)*Period))
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			match = true
		}
	}
	return match
}
