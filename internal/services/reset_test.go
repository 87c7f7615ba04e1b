package services

import (
	"context"
	"testing"
	"time"

	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/store"
	"github.com/edusphere/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resetToken = "0b6f5a52-4a57-4b9a-9f0e-5f1f7c3f1d2a"

func TestResetRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signup(t, testEmail, testPassword)
	h.resets.newToken = func() string { return resetToken }

	_, err := h.accounts.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)

	require.NoError(t, h.resets.Request(ctx, testEmail))
	msg, ok := h.mail.Last(testEmail)
	require.True(t, ok)
	assert.Contains(t, msg.Body, "https://edusphere.dev/change-password/"+resetToken)

	stored, err := h.mem.Users().GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.True(t, stored.HasPendingReset(time.Now()))

	in := ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: resetToken}
	require.NoError(t, h.resets.Complete(ctx, in))

	stored, err = h.mem.Users().GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetToken)
	assert.Nil(t, stored.ResetExpiry)

	_, err = h.cache.Get(ctx, cache.UserKey(testEmail))
	assert.ErrorIs(t, err, cache.ErrMiss)

	_, err = h.accounts.Login(ctx, testEmail, "Newpass1!")
	assert.NoError(t, err)

	in.NewPassword, in.ConfirmPassword = "Another1!", "Another1!"
	assert.ErrorIs(t, h.resets.Complete(ctx, in), ErrInvalidOrExpiredLink, "a token is single use")
}

func TestResetRequestValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.resets.Request(ctx, ""), ErrEmailRequired)
	assert.ErrorIs(t, h.resets.Request(ctx, "bad"), ErrInvalidEmail)
	assert.ErrorIs(t, h.resets.Request(ctx, testEmail), ErrNoAccountFound)
	assert.Empty(t, h.mail.Messages())
}

func TestResetTokenExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signup(t, testEmail, testPassword)
	h.resets.newToken = func() string { return resetToken }

	start := time.Now()
	h.resets.now = func() time.Time { return start }
	require.NoError(t, h.resets.Request(ctx, testEmail))

	h.resets.now = func() time.Time { return start.Add(5*time.Minute + time.Second) }
	err := h.resets.Complete(ctx, ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: resetToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredLink)

	_, err = h.accounts.Login(ctx, testEmail, testPassword)
	assert.NoError(t, err, "password unchanged")
}

func TestResetClearsTokenWhenEmailFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.signup(t, testEmail, testPassword)
	h.resets.newToken = func() string { return resetToken }

	h.mail.SetFail(true)
	assert.ErrorIs(t, h.resets.Request(ctx, testEmail), ErrEmailDeliveryFailed)

	stored, err := h.mem.Users().GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetToken)
	assert.Nil(t, stored.ResetExpiry)

	err = h.resets.Complete(ctx, ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: resetToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredLink)
}

// senderFunc adapts a function to mailer.Sender.
type senderFunc func(ctx context.Context, to, subject, htmlBody string) bool

func (f senderFunc) Send(ctx context.Context, to, subject, htmlBody string) bool {
	return f(ctx, to, subject, htmlBody)
}

func TestResetRollbackKeepsConcurrentPasswordChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.signup(t, testEmail, testPassword)

	h.resets.mailer = senderFunc(func(ctx context.Context, _, _, _ string) bool {
		require.NoError(t, h.accounts.ChangePassword(ctx, user.ID, ChangePasswordInput{
			OldPassword:        testPassword,
			NewPassword:        "Changed1!",
			ConfirmNewPassword: "Changed1!",
		}))
		return false
	})
	assert.ErrorIs(t, h.resets.Request(ctx, testEmail), ErrEmailDeliveryFailed)

	_, err := h.accounts.Login(ctx, testEmail, "Changed1!")
	assert.NoError(t, err)
	_, err = h.accounts.Login(ctx, testEmail, testPassword)
	assert.ErrorIs(t, err, ErrWrongPassword)

	stored, err := h.mem.Users().GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.Empty(t, stored.ResetToken)
}

func TestResetRollbackKeepsNewerToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.signup(t, testEmail, testPassword)
	h.resets.newToken = func() string { return resetToken }

	const newer = "5c1e3f0a-9d2b-4c6e-8a7f-1b2c3d4e5f60"
	h.resets.mailer = senderFunc(func(ctx context.Context, _, _, _ string) bool {
		require.NoError(t, h.mem.Users().SetReset(ctx, user.ID, newer, time.Now().Add(5*time.Minute)))
		return false
	})
	assert.ErrorIs(t, h.resets.Request(ctx, testEmail), ErrEmailDeliveryFailed)

	stored, err := h.mem.Users().GetByEmail(ctx, testEmail)
	require.NoError(t, err)
	assert.Equal(t, newer, stored.ResetToken)
	assert.True(t, stored.HasPendingReset(time.Now()))
}

func TestChangePasswordKeepsPendingReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	user := h.signup(t, testEmail, testPassword)
	h.resets.newToken = func() string { return resetToken }

	require.NoError(t, h.resets.Request(ctx, testEmail))
	require.NoError(t, h.accounts.ChangePassword(ctx, user.ID, ChangePasswordInput{
		OldPassword:        testPassword,
		NewPassword:        "Changed1!",
		ConfirmNewPassword: "Changed1!",
	}))

	require.NoError(t, h.resets.Complete(ctx, ResetInput{
		NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: resetToken,
	}))
	_, err := h.accounts.Login(ctx, testEmail, "Newpass1!")
	assert.NoError(t, err)
}

// untouchedUsers fails the test on any token lookup.
type untouchedUsers struct {
	UserRepository
	t *testing.T
}

func (u untouchedUsers) GetByResetToken(context.Context, string, time.Time) (types.User, error) {
	u.t.Error("store consulted before input validation")
	return types.User{}, store.ErrNotFound
}

func TestResetCompleteValidatesBeforeLookup(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.resets.users = untouchedUsers{UserRepository: h.mem.Users(), t: t}

	tests := []struct {
		name string
		in   ResetInput
		want error
	}{
		{"missing token", ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!"}, ErrMissingFields},
		{"blank token", ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: "  "}, ErrMissingFields},
		{"missing confirm", ResetInput{NewPassword: "Newpass1!", Token: resetToken}, ErrMissingFields},
		{"weak", ResetInput{NewPassword: "weak", ConfirmPassword: "weak", Token: resetToken}, ErrWeakPassword},
		{"mismatch", ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1?", Token: resetToken}, ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, h.resets.Complete(ctx, tt.in), tt.want)
		})
	}
}

func TestResetCompleteUnknownToken(t *testing.T) {
	h := newHarness(t)
	err := h.resets.Complete(context.Background(), ResetInput{NewPassword: "Newpass1!", ConfirmPassword: "Newpass1!", Token: "nope"})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredLink)
}

func TestResetURLTrimsSlash(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "https://edusphere.dev/change-password/abc", h.resets.ResetURL("abc"))
}
