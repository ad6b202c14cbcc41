package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"sync"
)

// Token format: trk_admin_{secret}
// Example: trk_admin_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const tokenSecretLen = 32 // hex encoded 16 bytes

var (
	// ErrInvalidTokenFormat indicates the token format is invalid.
	ErrInvalidTokenFormat = errors.New("invalid admin token format")

	tokenFormatRegex = regexp.MustCompile(`^trk_admin_[a-f0-9]{32}$`)
)

// GeneratedToken contains a newly generated admin token.
type GeneratedToken struct {
	Plaintext string // show once only
	Hash      string // Argon2id hash for ADMIN_TOKEN_HASH
}

// GenerateAdminToken creates a new admin token and its hash.
func GenerateAdminToken() (*GeneratedToken, error) {
	secret := make([]byte, tokenSecretLen/2)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	plaintext := "trk_admin_" + hex.EncodeToString(secret)

	hash, err := HashToken(plaintext)
	if err != nil {
		return nil, fmt.Errorf("hash token: %w", err)
	}

	return &GeneratedToken{Plaintext: plaintext, Hash: hash}, nil
}

// ValidateTokenFormat checks the token shape before any hashing.
func ValidateTokenFormat(token string) error {
	if !tokenFormatRegex.MatchString(token) {
		return ErrInvalidTokenFormat
	}
	return nil
}

// Verifier checks presented tokens against the configured hash.
// Accepted tokens are remembered by digest so Argon2 runs once per token.
type Verifier struct {
	hash     string
	accepted sync.Map
}

// NewVerifier creates a Verifier. An empty hash rejects every token.
func NewVerifier(encodedHash string) *Verifier {
	return &Verifier{hash: encodedHash}
}

// Enabled reports whether a hash is configured.
func (v *Verifier) Enabled() bool {
	return v.hash != ""
}

// Verify reports whether token matches the configured hash.
func (v *Verifier) Verify(token string) bool {
	if v.hash == "" || ValidateTokenFormat(token) != nil {
		return false
	}

	digest := QuickHash(token)
	if _, ok := v.accepted.Load(digest); ok {
		return true
	}

	ok, err := VerifyToken(token, v.hash)
	if err != nil || !ok {
		return false
	}
	v.accepted.Store(digest, struct{}{})
	return true
}
