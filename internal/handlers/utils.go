package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/services"
	"github.com/edusphere/apiserver/types"
)

const maxJSONBody = 1 << 20

type contextKey string

const contextClaimsKey contextKey = "claims"

func withClaims(ctx context.Context, claims types.Claims) context.Context {
	return context.WithValue(ctx, contextClaimsKey, claims)
}

// ClaimsFromContext returns the session claims attached by the
// authorization gate.
func ClaimsFromContext(ctx context.Context) (types.Claims, bool) {
	claims, ok := ctx.Value(contextClaimsKey).(types.Claims)
	return claims, ok
}

// Response is the envelope of every API response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorStatus struct {
	status  int
	message string
}

var errorStatusMap = map[error]errorStatus{
	services.ErrMissingFields:    {http.StatusBadRequest, "All fields are required"},
	services.ErrEmailRequired:    {http.StatusBadRequest, "Email is required"},
	services.ErrOtpRequired:      {http.StatusBadRequest, "OTP is required"},
	services.ErrInvalidEmail:     {http.StatusBadRequest, "Invalid email format"},
	services.ErrWeakPassword:     {http.StatusBadRequest, "Password must be at least 8 characters and contain an uppercase letter, a lowercase letter, a number and a symbol"},
	services.ErrPasswordMismatch: {http.StatusBadRequest, "Password and Confirm Password do not match"},
	services.ErrInvalidRole:      {http.StatusBadRequest, "Invalid account type"},

	services.ErrAccountExists:        {http.StatusConflict, "User already exists. Please sign in to continue"},
	services.ErrOtpExpiredOrMissing:  {http.StatusGone, "OTP has expired or was not requested"},
	services.ErrOtpMismatch:          {http.StatusUnauthorized, "Invalid OTP"},
	services.ErrUserNotFound:         {http.StatusNotFound, "User is not registered. Please sign up to continue"},
	services.ErrWrongPassword:        {http.StatusUnauthorized, "Password is incorrect"},
	services.ErrNoAccountFound:       {http.StatusBadRequest, "No account is registered with this email"},
	services.ErrInvalidOrExpiredLink: {http.StatusBadRequest, "Invalid or expired link"},

	services.ErrHashingFailed:       {http.StatusInternalServerError, "Error in hashing password"},
	services.ErrEmailDeliveryFailed: {http.StatusInternalServerError, "Error occurred while sending email"},
	services.ErrSignupFailed:        {http.StatusInternalServerError, "User cannot be registered. Please try again"},

	services.ErrTagExists:           {http.StatusConflict, "Tag already exists"},
	services.ErrFileRequired:        {http.StatusBadRequest, "Please Enter Valid Data"},
	services.ErrFileTooLarge:        {http.StatusBadRequest, "File size exceeds 2MB"},
	services.ErrUnsupportedFileType: {http.StatusBadRequest, "File format not supported"},
	services.ErrUploadFailed:        {http.StatusInternalServerError, "Failed to upload image"},
}

// statusOverrides replaces the default status of selected errors for one
// endpoint. Messages stay the same.
type statusOverrides map[error]int

func lookupError(err error, overrides statusOverrides) errorStatus {
	for target, st := range errorStatusMap {
		if errors.Is(err, target) {
			if status, ok := overrides[target]; ok {
				st.status = status
			}
			return st
		}
	}
	return errorStatus{http.StatusInternalServerError, "Something went wrong. Please try again"}
}

// writeServiceError maps err through errorStatusMap. Unmapped errors are
// logged and reported as an opaque 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, overrides statusOverrides) {
	st := lookupError(err, overrides)
	if st.status >= http.StatusInternalServerError {
		logger.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, st.status, st.message)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// decodeJSON reads a JSON request body into dst. An empty body leaves dst
// untouched so the services report the missing fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, "ok", nil)
}
