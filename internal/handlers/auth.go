package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/types"
)

const tokenCookieName = "token"

// TokenVerifier checks a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (types.Claims, error)
}

// RequireAuth is the authorization gate. The token is taken from the body
// field "token" (JSON or multipart), then the "token" cookie, then the
// Authorization bearer header. Verification failures are not distinguished.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := requestToken(w, r)
			if tokenString == "" {
				writeError(w, http.StatusBadRequest, "Token Missing")
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				logger.FromRequest(r).Debug().Err(err).Msg("session token rejected")
				writeError(w, http.StatusBadRequest, "Token Verification Failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits only sessions whose account type is role. It must run
// behind RequireAuth.
func RequireRole(role types.Role, denied string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				logger.FromRequest(r).Error().Str("path", r.URL.Path).Msg("role gate reached without claims")
				writeError(w, http.StatusInternalServerError, "User Role Can't be Verified")
				return
			}
			if claims.AccountType != role {
				writeError(w, http.StatusBadRequest, denied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(w http.ResponseWriter, r *http.Request) string {
	if token := bodyToken(w, r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token
		}
	}
	token, _ := bearerToken(r)
	return token
}

// bodyToken reads the "token" field of a JSON or multipart body. A JSON body
// is restored and a multipart form stays parsed for the next handler.
func bodyToken(w http.ResponseWriter, r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		return jsonBodyToken(r)
	case "multipart/form-data":
		if err := parseUploadForm(w, r); err != nil {
			return ""
		}
		if values := r.MultipartForm.Value["token"]; len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func jsonBodyToken(r *http.Request) string {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Token)
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
