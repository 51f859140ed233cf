package token

import (
	"crypto/rand"
	"fmt"
)

// Base62 alphabet (0-9, a-z, A-Z).
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// FeedbackTokenLength is the length of invoice feedback-link tokens. Long
// enough that tokens cannot be guessed or enumerated.
const FeedbackTokenLength = 16

// Generate creates a cryptographically secure random Base62 token.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid token length: %d", length)
	}

	// Rejection sampling to avoid modulo bias.
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	tok := make([]byte, length)
	buf := make([]byte, length*2)
	written := 0

	for written < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}

		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			tok[written] = alphabet[int(b)%len(alphabet)]
			written++
			if written == length {
				break
			}
		}
	}

	return string(tok), nil
}

// GenerateFeedbackToken creates a token for an invoice feedback link.
func GenerateFeedbackToken() (string, error) {
	return Generate(FeedbackTokenLength)
}
