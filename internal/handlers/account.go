package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/edusphere/apiserver/internal/services"
	"github.com/edusphere/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// signupOverrides reports format failures on signup as unprocessable.
var signupOverrides = statusOverrides{
	services.ErrInvalidEmail: http.StatusUnprocessableEntity,
	services.ErrWeakPassword: http.StatusUnprocessableEntity,
}

// CookieConfig controls the session cookie set on login. Its lifetime is
// independent of the token expiry.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// AccountHandler serves the credential endpoints.
type AccountHandler struct {
	otp      *services.OTPService
	accounts *services.AccountService
	resets   *services.ResetService
	cookie   CookieConfig
	now      func() time.Time
}

func NewAccountHandler(
	otp *services.OTPService,
	accounts *services.AccountService,
	resets *services.ResetService,
	cookie CookieConfig,
) *AccountHandler {
	return &AccountHandler{
		otp:      otp,
		accounts: accounts,
		resets:   resets,
		cookie:   cookie,
		now:      time.Now,
	}
}

// AccountRouter registers the credential routes on r.
func AccountRouter(r chi.Router, h *AccountHandler, auth func(http.Handler) http.Handler) {
	r.Post("/sendotp", h.SendOTP)
	r.Post("/signup", h.Signup)
	r.Post("/google-signup", h.GoogleSignup)
	r.Post("/login", h.Login)
	r.Post("/reset-password-token", h.ResetPasswordToken)
	r.Post("/reset-password", h.ResetPassword)
	r.With(auth).Post("/change-password", h.ChangePassword)
}

type SendOTPRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type SignupRequest struct {
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	Password        string     `json:"password"`
	ConfirmPassword string     `json:"confirmPassword"`
	AccountType     types.Role `json:"accountType"`
	OTP             string     `json:"otp"`
}

type GoogleSignupRequest struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Email       string     `json:"email"`
	AccountType types.Role `json:"accountType"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetTokenRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
	Token           string `json:"token"`
}

type ChangePasswordRequest struct {
	OldPassword        string `json:"oldPassword"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

func (h *AccountHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.otp.Request(r.Context(), req.Email, strings.TrimSpace(req.FirstName+" "+req.LastName)); err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "OTP Sent Successfully", nil)
}

func (h *AccountHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.accounts.Signup(r.Context(), services.SignupInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		AccountType:     req.AccountType,
		OTP:             req.OTP,
	})
	if err != nil {
		writeServiceError(w, r, err, signupOverrides)
		return
	}
	writeSuccess(w, http.StatusCreated, "User registered successfully", user)
}

func (h *AccountHandler) GoogleSignup(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.accounts.GoogleSignup(r.Context(), services.GoogleSignupInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		AccountType: req.AccountType,
	})
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	h.writeSession(w, result, "Logged in successfully")
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	h.writeSession(w, result, "Logged in successfully")
}

func (h *AccountHandler) ResetPasswordToken(w http.ResponseWriter, r *http.Request) {
	var req ResetTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.resets.Request(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Email sent successfully. Please check your email to continue", nil)
}

func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.resets.Complete(r.Context(), services.ResetInput{
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
		Token:           req.Token,
	})
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successful", nil)
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "User can't be verified")
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.accounts.ChangePassword(r.Context(), claims.ID, services.ChangePasswordInput{
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		ConfirmNewPassword: req.ConfirmNewPassword,
	})
	if err != nil {
		writeServiceError(w, r, err, nil)
		return
	}
	writeSuccess(w, http.StatusOK, "Password updated successfully", nil)
}

// writeSession sets the session cookie and returns the token in the body.
func (h *AccountHandler) writeSession(w http.ResponseWriter, result services.LoginResult, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    result.Token,
		Path:     "/",
		Expires:  h.now().Add(h.cookie.TTL),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Token:   result.Token,
		Data:    result.User,
	})
}
