package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer"
	"github.com/edusphere/apiserver/internal/store"
	"github.com/google/uuid"
)

// ResetService runs the two-phase password reset. The pending token lives on
// the user record, not in the cache.
type ResetService struct {
	users       UserRepository
	cache       *cache.Cache
	mailer      mailer.Sender
	hasher      *Hasher
	ttl         time.Duration
	frontendURL string
	timeout     time.Duration
	now         func() time.Time
	newToken    func() string
}

func NewResetService(
	users UserRepository,
	c *cache.Cache,
	sender mailer.Sender,
	hasher *Hasher,
	ttl time.Duration,
	frontendURL string,
	timeout time.Duration,
) *ResetService {
	return &ResetService{
		users:       users,
		cache:       c,
		mailer:      sender,
		hasher:      hasher,
		ttl:         ttl,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		timeout:     timeout,
		now:         time.Now,
		newToken:    uuid.NewString,
	}
}

type ResetInput struct {
	NewPassword     string
	ConfirmPassword string
	Token           string
}

// Request stores a fresh reset token on the account for email and mails the
// link. If the mail cannot be delivered the token is cleared again.
func (s *ResetService) Request(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if !IsValidEmail(email) {
		return ErrInvalidEmail
	}

	lctx, cancel := withTimeout(ctx, s.timeout)
	user, err := s.users.GetByEmail(lctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoAccountFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	token := s.newToken()
	uctx, cancel := withTimeout(ctx, s.timeout)
	err = s.users.SetReset(uctx, user.ID, token, s.now().Add(s.ttl))
	cancel()
	if err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	subject, body, err := mailer.ResetEmail(s.ResetURL(token), s.ttl)
	sent := false
	if err == nil {
		mctx, cancel := withTimeout(ctx, s.timeout)
		sent = s.mailer.Send(mctx, user.Email, subject, body)
		cancel()
	}
	if !sent {
		logger.FromContext(ctx).Warn().Str("user_id", user.ID).Msg("reset email failed, clearing token")
		dctx, cancel := detached(ctx, s.timeout)
		defer cancel()
		if err := s.users.ClearReset(dctx, user.ID, token); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.FromContext(ctx).Error().Err(err).Str("user_id", user.ID).Msg("clear reset token failed")
		}
		return ErrEmailDeliveryFailed
	}
	return nil
}

// Complete sets a new password for the holder of an unexpired token. Input
// is validated before the store is touched. Wrong and expired tokens are
// indistinguishable to the caller.
func (s *ResetService) Complete(ctx context.Context, in ResetInput) error {
	in.Token = strings.TrimSpace(in.Token)
	if in.NewPassword == "" || in.ConfirmPassword == "" || in.Token == "" {
		return ErrMissingFields
	}
	if !IsStrongPassword(in.NewPassword) {
		return ErrWeakPassword
	}
	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}

	now := s.now()
	lctx, cancel := withTimeout(ctx, s.timeout)
	user, err := s.users.GetByResetToken(lctx, in.Token, now)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredLink
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return err
	}

	uctx, cancel := withTimeout(ctx, s.timeout)
	err = s.users.CompleteReset(uctx, user.ID, in.Token, hash, now)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidOrExpiredLink
		}
		return fmt.Errorf("complete reset: %w", err)
	}

	invalidateLogin(ctx, s.cache, user.Email, s.timeout)
	logger.FromContext(ctx).Info().Str("user_id", user.ID).Msg("password reset completed")
	return nil
}

// ResetURL is the frontend page that completes a reset for token.
func (s *ResetService) ResetURL(token string) string {
	return s.frontendURL + "/change-password/" + token
}
