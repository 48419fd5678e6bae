package random

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// Alphabet is the character set used for generated identifiers.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// ClientIDLength is the length of a Plex client identifier.
const ClientIDLength = 40

var ErrInvalidLength = errors.New("invalid_length")

var alphabetSize = big.NewInt(int64(len(Alphabet)))

// String returns a string of the given length drawn uniformly from Alphabet.
func String(length int) (string, error) {
	if length < 0 {
		return "", ErrInvalidLength
	}

	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// ClientID returns a fresh client identifier.
func ClientID() (string, error) {
	return String(ClientIDLength)
}
