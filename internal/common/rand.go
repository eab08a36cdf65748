package common

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

// RandHexString generates a random hexadecimal string from size random
// bytes. The resulting string is twice as long as size, so RandHexString(32)
// yields a 64-character value carrying 256 bits of entropy.
func RandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// RandBytes returns size cryptographically random bytes.
func RandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandString returns a random string of length n drawn from alphabet.
// Each position is chosen with crypto/rand, free of modulo bias.
func RandString(n int, alphabet string) (string, error) {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
