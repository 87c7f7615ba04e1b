package services

import (
	"context"
	"testing"
	"time"

	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/mailer/mailertest"
	"github.com/edusphere/apiserver/internal/store"
	"github.com/edusphere/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "a@b.com"
	testPassword = "Abcdef1!"
)

type harness struct {
	mem      *store.Memory
	cache    *cache.Cache
	mail     *mailertest.Recorder
	hasher   *Hasher
	otp      *OTPService
	sessions *SessionIssuer
	accounts *AccountService
	resets   *ResetService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mem := store.NewMemory()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	c := cache.New(mc)
	rec := &mailertest.Recorder{}

	hasher := NewHasher()
	hasher.cost = bcrypt.MinCost

	otp := NewOTPService(mem.Users(), c, rec, 5*time.Minute, time.Second)
	sessions := NewSessionIssuer("test-secret", time.Hour)
	accounts := NewAccountService(mem.Users(), mem.Profiles(), c, rec, hasher, otp, sessions, AccountConfig{
		LoginCacheTTL: 10 * time.Minute,
		FrontendURL:   "https://edusphere.dev",
		Timeout:       time.Second,
	})
	resets := NewResetService(mem.Users(), c, rec, hasher, 5*time.Minute, "https://edusphere.dev/", time.Second)

	return &harness{
		mem:      mem,
		cache:    c,
		mail:     rec,
		hasher:   hasher,
		otp:      otp,
		sessions: sessions,
		accounts: accounts,
		resets:   resets,
	}
}

// issuedOTP requests a code for email and reads it back from the cache.
func (h *harness) issuedOTP(t *testing.T, email string) string {
	t.Helper()
	require.NoError(t, h.otp.Request(context.Background(), email, ""))
	code, err := h.cache.Get(context.Background(), cache.OTPKey(email))
	require.NoError(t, err)
	return code
}

func (h *harness) signup(t *testing.T, email, password string) types.User {
	t.Helper()
	user, err := h.accounts.Signup(context.Background(), SignupInput{
		FirstName:       "A",
		LastName:        "B",
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
		OTP:             h.issuedOTP(t, email),
	})
	require.NoError(t, err)
	return user
}
