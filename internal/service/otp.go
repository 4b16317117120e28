package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/coupon-wallet/internal/model"
)

const (
	otpDigits = 6

	DefaultOTPTTL         = 10 * time.Minute
	DefaultOTPMaxAttempts = 5
)

var otpSpace = big.NewInt(1_000_000)

// OTPRepositoryInterface defines the interface for OTP challenge data access.
type OTPRepositoryInterface interface {
	Insert(ctx context.Context, c *model.OTPChallenge) error
	ListOutstanding(ctx context.Context, identifier string, purpose model.OTPPurpose, now time.Time) ([]model.OTPChallenge, error)
	MarkUsed(ctx context.Context, id uuid.UUID, maxAttempts int, now time.Time) (bool, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
}

// Throttle limits how often a key may be acted on. Allow reports false when
// the key was already used inside interval.
type Throttle interface {
	Allow(ctx context.Context, key string, interval time.Duration) (bool, error)
}

// OTPOptions tunes an OTPManager. Zero values fall back to the defaults.
type OTPOptions struct {
	TTL            time.Duration
	MaxAttempts    int
	HashCost       int
	ResendInterval time.Duration
}

// OTPManager issues and verifies one-time codes bound to an identifier and
// a purpose. Codes are stored only as bcrypt hashes.
type OTPManager struct {
	repo     OTPRepositoryInterface
	throttle Throttle
	opts     OTPOptions
	now      func() time.Time
}

// NewOTPManager creates an OTPManager. throttle may be nil, in which case
// resends are not rate limited.
func NewOTPManager(repo OTPRepositoryInterface, throttle Throttle, opts OTPOptions) *OTPManager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultOTPTTL
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOTPMaxAttempts
	}
	if opts.HashCost < bcrypt.MinCost || opts.HashCost > bcrypt.MaxCost {
		opts.HashCost = bcrypt.DefaultCost
	}
	return &OTPManager{repo: repo, throttle: throttle, opts: opts, now: time.Now}
}

// WithClock replaces the time source. Primarily used for testing.
func (m *OTPManager) WithClock(now func() time.Time) *OTPManager {
	m.now = now
	return m
}

// Issue creates a new challenge for identifier and purpose and returns the
// plaintext code. Earlier outstanding challenges stay valid until they
// expire; Verify always prefers the newest.
// Returns ErrTooFrequent if a code was issued for the same identifier and
// purpose within the resend interval.
func (m *OTPManager) Issue(ctx context.Context, identifier string, purpose model.OTPPurpose) (*model.OTPIssue, error) {
	if identifier == "" || !purpose.Valid() {
		return nil, ErrInvalidRequest
	}

	if m.throttle != nil && m.opts.ResendInterval > 0 {
		allowed, err := m.throttle.Allow(ctx, throttleKey(identifier, purpose), m.opts.ResendInterval)
		if err != nil {
			log.Warn().Err(err).Str("purpose", string(purpose)).Msg("otp throttle unavailable, allowing issue")
		} else if !allowed {
			return nil, ErrTooFrequent
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.opts.HashCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	now := m.now().UTC()
	challenge := &model.OTPChallenge{
		ID:         uuid.New(),
		Identifier: identifier,
		CodeHash:   string(hash),
		Purpose:    purpose,
		ExpiresAt:  now.Add(m.opts.TTL),
		CreatedAt:  now,
	}
	if err := m.repo.Insert(ctx, challenge); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	return &model.OTPIssue{ChallengeID: challenge.ID, Code: code, ExpiresAt: challenge.ExpiresAt}, nil
}

// Verify checks code against the outstanding challenges for identifier and
// purpose and consumes the matching one.
//
// A wrong code counts against the newest outstanding challenge; once that
// challenge reaches the attempt cap every further call fails with
// ErrAttemptsExceeded, even with the right code. Any other failure,
// including an identifier with no challenges, is ErrInvalidOrExpired.
func (m *OTPManager) Verify(ctx context.Context, identifier, code string, purpose model.OTPPurpose) error {
	now := m.now().UTC()
	challenges, err := m.repo.ListOutstanding(ctx, identifier, purpose, now)
	if err != nil {
		return fmt.Errorf("load otp challenges: %w", err)
	}
	if len(challenges) == 0 {
		return ErrInvalidOrExpired
	}

	newest := challenges[0]
	if newest.Locked(m.opts.MaxAttempts) {
		return ErrAttemptsExceeded
	}

	for i := range challenges {
		c := &challenges[i]
		if c.Locked(m.opts.MaxAttempts) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
			continue
		}
		used, err := m.repo.MarkUsed(ctx, c.ID, m.opts.MaxAttempts, now)
		if err != nil {
			return fmt.Errorf("consume otp: %w", err)
		}
		if !used {
			return ErrInvalidOrExpired
		}
		return nil
	}

	attempts, err := m.repo.IncrementAttempts(ctx, newest.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpired) {
			return ErrInvalidOrExpired
		}
		return fmt.Errorf("record otp attempt: %w", err)
	}
	log.Debug().
		Str("purpose", string(purpose)).
		Int("attempts", attempts).
		Msg("otp verification failed")
	return ErrInvalidOrExpired
}

func throttleKey(identifier string, purpose model.OTPPurpose) string {
	return "otp:" + string(purpose) + ":" + identifier
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
