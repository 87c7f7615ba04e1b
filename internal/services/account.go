package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer"
	"github.com/edusphere/apiserver/internal/store"
	"github.com/edusphere/apiserver/types"
)

const (
	avatarBaseURL           = "https://api.dicebear.com/7.x/initials/svg"
	generatedPasswordLength = 8
)

// AccountConfig holds the tunables of AccountService.
type AccountConfig struct {
	// LoginCacheTTL is how long a login lookup snapshot stays cached.
	LoginCacheTTL time.Duration
	// FrontendURL is the base of links placed in emails.
	FrontendURL string
	// Timeout bounds each store, cache and mail call.
	Timeout time.Duration
}

// AccountService implements signup, login and password change.
type AccountService struct {
	users    UserRepository
	profiles ProfileRepository
	cache    *cache.Cache
	mailer   mailer.Sender
	hasher   *Hasher
	otp      *OTPService
	sessions *SessionIssuer
	cfg      AccountConfig
}

func NewAccountService(
	users UserRepository,
	profiles ProfileRepository,
	c *cache.Cache,
	sender mailer.Sender,
	hasher *Hasher,
	otp *OTPService,
	sessions *SessionIssuer,
	cfg AccountConfig,
) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		cache:    c,
		mailer:   sender,
		hasher:   hasher,
		otp:      otp,
		sessions: sessions,
		cfg:      cfg,
	}
}

type SignupInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	AccountType     types.Role
	OTP             string
}

type GoogleSignupInput struct {
	FirstName   string
	LastName    string
	Email       string
	AccountType types.Role
}

type ChangePasswordInput struct {
	OldPassword        string
	NewPassword        string
	ConfirmNewPassword string
}

// LoginResult is an issued session and the user it belongs to, without
// the password hash.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      types.User
}

// loginSnapshot is the cached form of a login lookup. Unlike types.User it
// serializes the password hash.
type loginSnapshot struct {
	ID           string         `json:"id"`
	FirstName    string         `json:"firstName"`
	LastName     string         `json:"lastName"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"password"`
	AccountType  types.Role     `json:"accountType"`
	ProfileID    string         `json:"profileId,omitempty"`
	Profile      *types.Profile `json:"additionalDetails,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

func snapshotOf(u types.User) loginSnapshot {
	return loginSnapshot{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		AccountType:  u.AccountType,
		ProfileID:    u.ProfileID,
		Profile:      u.Profile,
		CreatedAt:    u.CreatedAt,
	}
}

func (s loginSnapshot) user() types.User {
	return types.User{
		ID:           s.ID,
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Email:        s.Email,
		PasswordHash: s.PasswordHash,
		AccountType:  s.AccountType,
		ProfileID:    s.ProfileID,
		Profile:      s.Profile,
		CreatedAt:    s.CreatedAt,
	}
}

// Signup verifies the OTP for email and creates the account. The gates run
// in a fixed order and the first failing one is reported. When the welcome
// email cannot be delivered the user and profile are removed again.
func (s *AccountService) Signup(ctx context.Context, in SignupInput) (types.User, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.LastName == "" || in.Email == "" || in.Password == "" || in.ConfirmPassword == "" {
		return types.User{}, ErrMissingFields
	}
	if strings.TrimSpace(in.OTP) == "" {
		return types.User{}, ErrOtpRequired
	}
	if !IsValidEmail(in.Email) {
		return types.User{}, ErrInvalidEmail
	}
	if !IsStrongPassword(in.Password) {
		return types.User{}, ErrWeakPassword
	}
	if in.Password != in.ConfirmPassword {
		return types.User{}, ErrPasswordMismatch
	}
	role, err := resolveRole(in.AccountType)
	if err != nil {
		return types.User{}, err
	}
	if err := s.ensureUnregistered(ctx, in.Email); err != nil {
		return types.User{}, err
	}
	if err := s.otp.Consume(ctx, in.Email, strings.TrimSpace(in.OTP)); err != nil {
		return types.User{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.provision(ctx, in.FirstName, in.LastName, in.Email, hash, role)
	if err != nil {
		return types.User{}, err
	}

	subject, body, err := mailer.WelcomeEmail(fullName(user), s.loginURL(), "")
	if err != nil || !s.send(ctx, user.Email, subject, body) {
		s.rollback(ctx, user)
		return types.User{}, ErrSignupFailed
	}

	logger.FromContext(ctx).Info().Str("user_id", user.ID).Msg("user signed up")
	user.PasswordHash = ""
	return user, nil
}

// GoogleSignup logs in an existing account for email, or provisions one with
// a generated password that is emailed once, then logs it in.
func (s *AccountService) GoogleSignup(ctx context.Context, in GoogleSignupInput) (LoginResult, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)

	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return LoginResult{}, ErrMissingFields
	}
	if !IsValidEmail(in.Email) {
		return LoginResult{}, ErrInvalidEmail
	}
	role, err := resolveRole(in.AccountType)
	if err != nil {
		return LoginResult{}, err
	}

	if err := s.ensureUnregistered(ctx, in.Email); err != nil {
		if errors.Is(err, ErrAccountExists) {
			return s.LoginVerified(ctx, in.Email)
		}
		return LoginResult{}, err
	}

	password, err := GenerateRandomPassword(generatedPasswordLength)
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate password: %w", err)
	}
	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return LoginResult{}, err
	}

	user, err := s.provision(ctx, in.FirstName, in.LastName, in.Email, hash, role)
	if errors.Is(err, ErrAccountExists) {
		return s.LoginVerified(ctx, in.Email)
	}
	if err != nil {
		return LoginResult{}, err
	}

	subject, body, err := mailer.WelcomeEmail(fullName(user), s.loginURL(), password)
	if err != nil || !s.send(ctx, user.Email, subject, body) {
		s.rollback(ctx, user)
		return LoginResult{}, ErrSignupFailed
	}

	logger.FromContext(ctx).Info().Str("user_id", user.ID).Msg("user signed up via google")
	return s.LoginVerified(ctx, in.Email)
}

// Login checks password against the account for email. The lookup is served
// from the login cache when present and populates it otherwise.
func (s *AccountService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrMissingFields
	}
	if !IsValidEmail(email) {
		return LoginResult{}, ErrInvalidEmail
	}

	user, err := s.lookupForLogin(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return LoginResult{}, ErrWrongPassword
	}
	return s.issue(user)
}

// LoginVerified issues a session for an identity asserted by an external
// provider. It reads the store directly.
func (s *AccountService) LoginVerified(ctx context.Context, email string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return LoginResult{}, ErrEmailRequired
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}
	return s.issue(user)
}

// ChangePassword replaces the password of userID after checking the old one
// and drops the cached login snapshot.
func (s *AccountService) ChangePassword(ctx context.Context, userID string, in ChangePasswordInput) error {
	if in.OldPassword == "" || in.NewPassword == "" || in.ConfirmNewPassword == "" {
		return ErrMissingFields
	}
	if !IsStrongPassword(in.NewPassword) {
		return ErrWeakPassword
	}
	if in.NewPassword != in.ConfirmNewPassword {
		return ErrPasswordMismatch
	}

	lctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	user, err := s.users.GetByID(lctx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(in.OldPassword, user.PasswordHash) {
		return ErrWrongPassword
	}

	hash, err := s.hasher.Hash(ctx, in.NewPassword)
	if err != nil {
		return err
	}

	uctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	err = s.users.UpdatePassword(uctx, user.ID, hash)
	cancel()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	invalidateLogin(ctx, s.cache, user.Email, s.cfg.Timeout)
	logger.FromContext(ctx).Info().Str("user_id", user.ID).Msg("password changed")
	return nil
}

func (s *AccountService) lookupForLogin(ctx context.Context, email string) (types.User, error) {
	log := logger.FromContext(ctx)
	key := cache.UserKey(email)

	cctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	raw, err := s.cache.Get(cctx, key)
	cancel()
	switch {
	case err == nil:
		var snap loginSnapshot
		if jerr := json.Unmarshal([]byte(raw), &snap); jerr == nil {
			log.Debug().Str("email", email).Msg("login cache hit")
			return snap.user(), nil
		}
		log.Warn().Str("email", email).Msg("discarding unreadable login cache entry")
	case !errors.Is(err, cache.ErrMiss):
		log.Warn().Err(err).Msg("login cache read failed")
	}

	sctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	user, err := s.users.GetByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrUserNotFound
		}
		return types.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if payload, err := json.Marshal(snapshotOf(user)); err == nil {
		cctx, cancel := withTimeout(ctx, s.cfg.Timeout)
		if err := s.cache.Set(cctx, key, string(payload), s.cfg.LoginCacheTTL); err != nil {
			log.Warn().Err(err).Msg("login cache write failed")
		}
		cancel()
	}
	return user, nil
}

func (s *AccountService) issue(user types.User) (LoginResult, error) {
	token, expiresAt, err := s.sessions.Issue(types.Claims{
		ID:          user.ID,
		Email:       user.Email,
		AccountType: user.AccountType,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session: %w", err)
	}
	user.PasswordHash = ""
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *AccountService) ensureUnregistered(ctx context.Context, email string) error {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
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

// provision creates the placeholder profile and the user referencing it.
// A uniqueness conflict from the store is reported as ErrAccountExists.
func (s *AccountService) provision(ctx context.Context, firstName, lastName, email, hash string, role types.Role) (types.User, error) {
	pctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	profile, err := s.profiles.Create(pctx, types.Profile{Image: AvatarURL(firstName, lastName)})
	cancel()
	if err != nil {
		return types.User{}, fmt.Errorf("create profile: %w", err)
	}

	uctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	user, err := s.users.Create(uctx, types.User{
		FirstName:    firstName,
		LastName:     lastName,
		Email:        email,
		PasswordHash: hash,
		AccountType:  role,
		ProfileID:    profile.ID,
	})
	cancel()
	if err != nil {
		s.deleteProfile(ctx, profile.ID)
		if errors.Is(err, store.ErrAlreadyExists) {
			return types.User{}, ErrAccountExists
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	user.Profile = &profile
	return user, nil
}

// rollback removes a freshly provisioned user and its profile.
func (s *AccountService) rollback(ctx context.Context, user types.User) {
	log := logger.FromContext(ctx)
	log.Warn().Str("user_id", user.ID).Msg("welcome email failed, rolling back signup")

	dctx, cancel := detached(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.users.Delete(dctx, user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("user_id", user.ID).Msg("rollback: delete user failed")
	}
	if user.ProfileID != "" {
		s.deleteProfile(ctx, user.ProfileID)
	}
}

func (s *AccountService) deleteProfile(ctx context.Context, id string) {
	dctx, cancel := detached(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.profiles.Delete(dctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		logger.FromContext(ctx).Error().Err(err).Str("profile_id", id).Msg("delete profile failed")
	}
}

func (s *AccountService) send(ctx context.Context, to, subject, body string) bool {
	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	return s.mailer.Send(ctx, to, subject, body)
}

func (s *AccountService) loginURL() string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/login"
}

// invalidateLogin drops the cached login snapshot of email. Failures are
// logged only; the entry then lapses with its TTL.
func invalidateLogin(ctx context.Context, c *cache.Cache, email string, timeout time.Duration) {
	cctx, cancel := detached(ctx, timeout)
	defer cancel()
	if _, err := c.Delete(cctx, cache.UserKey(email)); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("login cache invalidation failed")
	}
}

func resolveRole(role types.Role) (types.Role, error) {
	if strings.TrimSpace(string(role)) == "" {
		return types.RoleStudent, nil
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// AvatarURL is the generated initials avatar for a new profile.
func AvatarURL(firstName, lastName string) string {
	q := url.Values{}
	q.Set("seed", firstName+" "+lastName)
	return avatarBaseURL + "?" + q.Encode()
}

func fullName(u types.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
