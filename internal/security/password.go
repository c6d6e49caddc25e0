package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	keyLength  = 32 // 256-bit digest

	passwordCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*"
)

// HashResult carries a derived credential. Degraded marks digests produced
// by the non-cryptographic fallback; they verify like any other digest but
// offer no brute-force resistance and should never appear outside tests or
// a broken platform.
type HashResult struct {
	Digest   string
	Salt     string
	Degraded bool
}

type deriveFunc func(password, salt []byte, iterations, keyLen int) ([]byte, error)

func pbkdf2Derive(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// PasswordHasher derives and verifies salted password digests using
// PBKDF2-HMAC-SHA-256. It holds no state beyond its parameters and touches
// no storage.
type PasswordHasher struct {
	iterations int
	rand       io.Reader
	derive     deriveFunc
	log        zerolog.Logger
}

func NewPasswordHasher(iterations int, log zerolog.Logger) *PasswordHasher {
	if iterations <= 0 {
		iterations = 100000
	}
	return &PasswordHasher{
		iterations: iterations,
		rand:       rand.Reader,
		derive:     pbkdf2Derive,
		log:        log,
	}
}

// GenerateSalt returns 16 bytes from the CSPRNG.
func (h *PasswordHasher) GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(h.rand, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// HashPassword derives a hex-encoded digest for password under salt. When the
// derivation primitive fails it degrades to a deterministic non-cryptographic
// hash of password+hex(salt) instead of surfacing the error; the returned
// flag reports that security-degraded path.
func (h *PasswordHasher) HashPassword(password string, salt []byte) (digest string, degraded bool) {
	key, err := h.derive([]byte(password), salt, h.iterations, keyLength)
	if err != nil {
		h.log.Error().Err(err).Msg("pbkdf2 derivation failed, falling back to weak hash")
		return simpleHash(password + hex.EncodeToString(salt)), true
	}
	return hex.EncodeToString(key), false
}

// CreatePasswordHash generates a fresh salt and derives the digest. The only
// error is salt-entropy exhaustion; derivation itself never fails the caller.
func (h *PasswordHasher) CreatePasswordHash(password string) (HashResult, error) {
	salt, err := h.GenerateSalt()
	if err != nil {
		return HashResult{}, err
	}

	digest, degraded := h.HashPassword(password, salt)
	return HashResult{
		Digest:   digest,
		Salt:     hex.EncodeToString(salt),
		Degraded: degraded,
	}, nil
}

// VerifyPassword re-derives the digest from the stored salt and compares in
// constant time. Any fault verifies as false, never as an error.
func (h *PasswordHasher) VerifyPassword(password, storedDigest, storedSalt string) bool {
	salt, err := hex.DecodeString(storedSalt)
	if err != nil {
		h.log.Warn().Err(err).Msg("stored salt is not valid hex")
		return false
	}

	digest, _ := h.HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(storedDigest)) == 1
}

// GenerateSecurePassword draws length characters from a 70-character alphabet
// via a modulo map over CSPRNG bytes.
func (h *PasswordHasher) GenerateSecurePassword(length int) (string, error) {
	if length <= 0 {
		length = 12
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(h.rand, buf); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}

	out := make([]byte, length)
	for i, b := range buf {
		out[i] = passwordCharset[int(b)%len(passwordCharset)]
	}
	return string(out), nil
}

// simpleHash is the 32-bit rolling fallback hash. Deterministic and fast,
// not collision- or preimage-resistant.
func simpleHash(input string) string {
	var hash int32
	for _, ch := range input {
		hash = (hash << 5) - hash + int32(ch)
	}

	v := int64(hash)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 16)
}
