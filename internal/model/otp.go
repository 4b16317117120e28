package model

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose scopes a challenge so a code issued for one flow cannot be
// spent in another.
type OTPPurpose string

const (
	OTPLogin         OTPPurpose = "login"
	OTPRegistration  OTPPurpose = "registration"
	OTPRedemption    OTPPurpose = "redemption"
	OTPPasswordReset OTPPurpose = "password_reset"
)

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPLogin, OTPRegistration, OTPRedemption, OTPPasswordReset:
		return true
	}
	return false
}

// OTPChallenge is a stored one-time code. Only the bcrypt hash of the code
// is persisted.
type OTPChallenge struct {
	ID         uuid.UUID  `json:"id"`
	Identifier string     `json:"identifier"`
	CodeHash   string     `json:"-"`
	Purpose    OTPPurpose `json:"purpose"`
	ExpiresAt  time.Time  `json:"expires_at"`
	IsUsed     bool       `json:"is_used"`
	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Locked reports whether the challenge has exhausted its attempts.
func (c *OTPChallenge) Locked(maxAttempts int) bool {
	return c.Attempts >= maxAttempts
}

// OTPIssue is the result of issuing a challenge.
type OTPIssue struct {
	ChallengeID uuid.UUID
	Code        string
	ExpiresAt   time.Time
}
