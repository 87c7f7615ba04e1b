package services

import (
	"context"
	"time"

	"github.com/edusphere/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	// GetByResetToken matches token and an expiry after now in one lookup.
	GetByResetToken(ctx context.Context, token string, now time.Time) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetReset(ctx context.Context, id, token string, expiry time.Time) error
	// ClearReset drops the pending reset only while the user still holds
	// token, so a newer reset is never wiped.
	ClearReset(ctx context.Context, id, token string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// CompleteReset stores passwordHash and clears the reset pair only if
	// the user still holds token unexpired at now.
	CompleteReset(ctx context.Context, id, token, passwordHash string, now time.Time) error
	Delete(ctx context.Context, id string) error
}

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile types.Profile) (types.Profile, error)
	Delete(ctx context.Context, id string) error
}

// withTimeout bounds one external call. A non-positive d leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// detached keeps request values but survives request cancellation, for
// compensating writes that must run after the client has gone away.
func detached(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return withTimeout(context.WithoutCancel(ctx), d)
}
