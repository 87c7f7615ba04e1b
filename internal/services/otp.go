package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer"
	"github.com/edusphere/apiserver/internal/store"
)

var otpSpace = big.NewInt(1_000_000)

// OTPService issues and consumes one-time email verification codes.
type OTPService struct {
	users   UserRepository
	cache   *cache.Cache
	mailer  mailer.Sender
	ttl     time.Duration
	timeout time.Duration
	newCode func() (string, error)
}

func NewOTPService(users UserRepository, c *cache.Cache, sender mailer.Sender, ttl, timeout time.Duration) *OTPService {
	return &OTPService{
		users:   users,
		cache:   c,
		mailer:  sender,
		ttl:     ttl,
		timeout: timeout,
		newCode: generateOTP,
	}
}

// Request emails a fresh code to an unregistered address, greeting name
// when given. While a code is active for email the call succeeds without
// issuing a new one. The code is stored only once delivery succeeded.
func (s *OTPService) Request(ctx context.Context, email, name string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if !IsValidEmail(email) {
		return ErrInvalidEmail
	}

	if err := s.ensureUnregistered(ctx, email); err != nil {
		return err
	}

	key := cache.OTPKey(email)
	cctx, cancel := withTimeout(ctx, s.timeout)
	_, err := s.cache.Get(cctx, key)
	cancel()
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, cache.ErrMiss):
		return fmt.Errorf("read otp: %w", err)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}

	if name = strings.TrimSpace(name); name == "" {
		name = email
	}
	subject, body, err := mailer.OTPEmail(name, code, s.ttl)
	if err != nil {
		return fmt.Errorf("render otp email: %w", err)
	}
	mctx, cancel := withTimeout(ctx, s.timeout)
	sent := s.mailer.Send(mctx, email, subject, body)
	cancel()
	if !sent {
		return ErrEmailDeliveryFailed
	}

	cctx, cancel = withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.cache.Set(cctx, key, code, s.ttl); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	logger.FromContext(ctx).Info().Str("email", email).Msg("otp issued")
	return nil
}

// Consume checks supplied against the active code for email and deletes it
// on a match, so each code verifies at most once.
func (s *OTPService) Consume(ctx context.Context, email, supplied string) error {
	key := cache.OTPKey(email)

	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	code, err := s.cache.Get(cctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrOtpExpiredOrMissing
		}
		return fmt.Errorf("read otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(supplied)) != 1 {
		return ErrOtpMismatch
	}

	removed, err := s.cache.Delete(cctx, key)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	if !removed {
		// Another request consumed it first.
		return ErrOtpExpiredOrMissing
	}
	return nil
}

func (s *OTPService) ensureUnregistered(ctx context.Context, email string) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return ErrAccountExists
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("lookup user: %w", err)
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
