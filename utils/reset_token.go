package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

const resetTokenBytes = 32

// ResetToken is a freshly generated password reset token. Plain goes to the
// account owner once; only Hash and ExpiresAt are stored.
type ResetToken struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}

type ResetTokenService struct {
	ttl time.Duration
	now func() time.Time
}

func NewResetTokenService(ttl time.Duration) *ResetTokenService {
	return &ResetTokenService{ttl: ttl, now: time.Now}
}

func (s *ResetTokenService) WithClock(now func() time.Time) *ResetTokenService {
	s.now = now
	return s
}

func (s *ResetTokenService) TTL() time.Duration { return s.ttl }

func (s *ResetTokenService) Generate() (ResetToken, error) {
	buf := make([]byte, resetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, fmt.Errorf("generate reset token: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return ResetToken{
		Plain:     plain,
		Hash:      HashResetToken(plain),
		ExpiresAt: s.now().Add(s.ttl),
	}, nil
}

// HashResetToken is the SHA-256 hex digest used to look tokens up.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
