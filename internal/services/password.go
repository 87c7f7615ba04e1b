package services

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/edusphere/apiserver/internal/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	// passwordSymbols is the punctuation set a strong password draws from.
	passwordSymbols = `!@#$%^&*()_+[]{};':"\|,.<>/?`

	minPasswordLength = 8

	generatedPasswordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789@#$!&"

	defaultHashCost     = 10
	defaultHashAttempts = 3
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidEmail reports whether candidate, once trimmed, has a local@domain.tld shape.
func IsValidEmail(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	return candidate != "" && emailPattern.MatchString(candidate)
}

// IsStrongPassword reports whether candidate, once trimmed, is at least eight
// characters and mixes lower case, upper case, digits and symbols.
func IsStrongPassword(candidate string) bool {
	candidate = strings.TrimSpace(candidate)
	if utf8.RuneCountInString(candidate) < minPasswordLength {
		return false
	}

	var lower, upper, digit, symbol bool
	for _, r := range candidate {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// Hasher produces bcrypt hashes, retrying transient failures of the
// underlying primitive without backoff.
type Hasher struct {
	cost     int
	attempts int
	generate func(password []byte, cost int) ([]byte, error)
}

func NewHasher() *Hasher {
	return &Hasher{
		cost:     defaultHashCost,
		attempts: defaultHashAttempts,
		generate: bcrypt.GenerateFromPassword,
	}
}

// Hash returns the bcrypt hash of plaintext or ErrHashingFailed.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Join(ErrHashingFailed, err)
		}
		hashed, err := h.generate([]byte(plaintext), h.cost)
		if err == nil {
			return string(hashed), nil
		}
		lastErr = err
		logger.FromContext(ctx).Warn().Err(err).Int("attempt", attempt).Msg("password hashing attempt failed")
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			break
		}
	}
	return "", errors.Join(ErrHashingFailed, lastErr)
}

// VerifyPassword reports whether plaintext matches hash.
func VerifyPassword(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// GenerateRandomPassword draws length characters uniformly from a fixed
// alphabet using crypto/rand.
func GenerateRandomPassword(length int) (string, error) {
	if length <= 0 {
		length = minPasswordLength
	}
	max := big.NewInt(int64(len(generatedPasswordAlphabet)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = generatedPasswordAlphabet[n.Int64()]
	}
	return string(out), nil
}
