// Package token generates opaque credentials for reset tokens, session IDs
// and personal link IDs.
package token

import (
	"crypto/rand"
	"math/big"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// DefaultLength yields roughly 190 bits of entropy over the 62-symbol
// alphabet, enough that guessing stays infeasible even without rate limits.
const DefaultLength = 32

// Generate returns a random alphanumeric string of the given length drawn
// from a cryptographically secure source. Panics only if the system random
// source is unreadable, which is not a recoverable condition.
func Generate(length int) string {
	if length <= 0 {
		length = DefaultLength
	}

	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("token: crypto/rand unavailable: " + err.Error())
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}

// New returns a token of the default length.
func New() string {
	return Generate(DefaultLength)
}
