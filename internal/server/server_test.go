package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/edusphere/apiserver/config"
	"github.com/edusphere/apiserver/internal/cache"
	"github.com/edusphere/apiserver/internal/handlers"
	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/internal/mailer/mailertest"
	"github.com/edusphere/apiserver/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubObjects struct{}

func (stubObjects) Upload(_ context.Context, _ []byte, folder, filename, _ string) (string, string, error) {
	key := folder + "/" + filename
	return key, "https://cdn.edusphere.dev/" + key, nil
}

func (stubObjects) Delete(context.Context, string) error { return nil }

type testAPI struct {
	t      *testing.T
	router http.Handler
	repos  repositories
	cache  *cache.Cache
	mail   *mailertest.Recorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	cfg := config.Config{
		Env:                 "dev",
		ExternalCallTimeout: time.Second,
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenTTL:      time.Hour,
			CookieTTL:     72 * time.Hour,
			OTPTTL:        5 * time.Minute,
			ResetTTL:      5 * time.Minute,
			LoginCacheTTL: 10 * time.Minute,
		},
		Frontend: config.FrontendConfig{LocalURL: "http://localhost:3000"},
		Storage:  config.StorageConfig{UploadFolder: "EduSphere"},
	}

	repos := memoryRepositories()
	mc := cache.NewMemoryCache()
	c := cache.New(mc)
	t.Cleanup(func() { _ = c.Close() })
	rec := &mailertest.Recorder{}

	svc := newServices(cfg, repos, c, rec, stubObjects{}, notify.NewDirect(rec))
	router := NewRouter(logger.Nop(), svc, handlers.CookieConfig{TTL: cfg.Auth.CookieTTL})

	return &testAPI{t: t, router: router, repos: repos, cache: c, mail: rec}
}

func (a *testAPI) do(req *http.Request) (*httptest.ResponseRecorder, handlers.Response) {
	a.t.Helper()
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)

	var resp handlers.Response
	if rr.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr, resp
}

func (a *testAPI) postJSON(path string, body any, token string) (*httptest.ResponseRecorder, handlers.Response) {
	a.t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(a.t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.do(req)
}

func (a *testAPI) get(path, token string) (*httptest.ResponseRecorder, handlers.Response) {
	a.t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.do(req)
}

func (a *testAPI) otpFor(email string) string {
	a.t.Helper()
	rr, _ := a.postJSON("/api/v1/sendotp", map[string]string{"email": email}, "")
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())
	code, err := a.cache.Get(context.Background(), cache.OTPKey(email))
	require.NoError(a.t, err)
	return code
}

func (a *testAPI) signupAndLogin(email, role string) string {
	a.t.Helper()
	rr, _ := a.postJSON("/api/v1/signup", map[string]string{
		"firstName":       "A",
		"lastName":        "B",
		"email":           email,
		"password":        "Abcdef1!",
		"confirmPassword": "Abcdef1!",
		"accountType":     role,
		"otp":             a.otpFor(email),
	}, "")
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())

	rr, resp := a.postJSON("/api/v1/login", map[string]string{"email": email, "password": "Abcdef1!"}, "")
	require.Equal(a.t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotEmpty(a.t, resp.Token)
	return resp.Token
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rr, resp := api.get("/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, resp.Success)
}

func TestSignupExample(t *testing.T) {
	api := newTestAPI(t)

	rr, resp := api.postJSON("/api/v1/signup", map[string]string{
		"firstName":       "A",
		"lastName":        "B",
		"email":           "a@b.com",
		"password":        "Abcdef1!",
		"confirmPassword": "Abcdef1!",
		"otp":             api.otpFor("a@b.com"),
	}, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.True(t, resp.Success)

	var raw struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &raw))
	assert.NotContains(t, raw.Data, "password")
	assert.Equal(t, "a@b.com", raw.Data["email"])
	assert.Equal(t, "Student", raw.Data["accountType"])
}

func TestSignupStatuses(t *testing.T) {
	api := newTestAPI(t)
	base := map[string]string{
		"firstName": "A", "lastName": "B", "email": "a@b.com",
		"password": "Abcdef1!", "confirmPassword": "Abcdef1!", "otp": "123456",
	}
	with := func(key, value string) map[string]string {
		out := map[string]string{}
		for k, v := range base {
			out[k] = v
		}
		out[key] = value
		return out
	}

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"missing field", with("firstName", ""), http.StatusBadRequest},
		{"missing otp", with("otp", ""), http.StatusBadRequest},
		{"invalid email", with("email", "nope"), http.StatusUnprocessableEntity},
		{"weak password", with("password", "weak"), http.StatusUnprocessableEntity},
		{"mismatch", with("confirmPassword", "Abcdef1?"), http.StatusBadRequest},
		{"otp never issued", base, http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := api.postJSON("/api/v1/signup", tt.body, "")
			assert.Equal(t, tt.want, rr.Code, rr.Body.String())
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}

	api.otpFor("a@b.com")
	rr, _ := api.postJSON("/api/v1/signup", with("otp", "abcdef"), "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestSendOTPStatuses(t *testing.T) {
	api := newTestAPI(t)
	api.signupAndLogin("taken@b.com", "")

	rr, _ := api.postJSON("/api/v1/sendotp", map[string]string{"email": "bad"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.postJSON("/api/v1/sendotp", map[string]string{"email": "taken@b.com"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr, _ = api.postJSON("/api/v1/sendotp", map[string]string{
		"email": "named@b.com", "firstName": "Ada", "lastName": "Lovelace",
	}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	msg, ok := api.mail.Last("named@b.com")
	require.True(t, ok)
	assert.Contains(t, msg.Body, "Ada Lovelace")

	api.mail.SetFail(true)
	rr, _ = api.postJSON("/api/v1/sendotp", map[string]string{"email": "new@b.com"}, "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	api.signupAndLogin("a@b.com", "")

	rr, resp := api.postJSON("/api/v1/login", map[string]string{"email": "a@b.com", "password": "Abcdef1!"}, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), `"password"`)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, "token", cookie.Name)
	assert.Equal(t, resp.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), cookie.Expires, time.Minute)

	rr, _ = api.postJSON("/api/v1/login", map[string]string{"email": "a@b.com", "password": "Wrong1!x"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr, _ = api.postJSON("/api/v1/login", map[string]string{"email": "nobody@b.com", "password": "Abcdef1!"}, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr, _ = api.postJSON("/api/v1/login", map[string]string{"email": "a@b.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthorizationGate(t *testing.T) {
	api := newTestAPI(t)
	token := api.signupAndLogin("a@b.com", "Student")

	rr, resp := api.get("/api/v1/student", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Token Missing", resp.Message)

	rr, _ = api.get("/api/v1/student", "garbage")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, resp = api.get("/api/v1/student", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	claims, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", claims["email"])

	rr, resp = api.get("/api/v1/admin", token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Access Denied : Admin Only", resp.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/student", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	rr, _ = api.do(req)
	assert.Equal(t, http.StatusOK, rr.Code, "cookie is accepted")
}

func TestBodyTokenTakesPrecedence(t *testing.T) {
	api := newTestAPI(t)
	token := api.signupAndLogin("a@b.com", "")

	body, err := json.Marshal(map[string]string{
		"token":              token,
		"oldPassword":        "Abcdef1!",
		"newPassword":        "Newpass1!",
		"confirmNewPassword": "Newpass1!",
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/change-password", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer not-a-token")

	rr, _ := api.do(req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, _ = api.postJSON("/api/v1/login", map[string]string{"email": "a@b.com", "password": "Newpass1!"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestChangePasswordStatuses(t *testing.T) {
	api := newTestAPI(t)
	token := api.signupAndLogin("a@b.com", "")

	rr, _ := api.postJSON("/api/v1/change-password", map[string]string{
		"oldPassword": "Wrong1!x", "newPassword": "Newpass1!", "confirmNewPassword": "Newpass1!",
	}, token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, _ = api.postJSON("/api/v1/change-password", map[string]string{
		"oldPassword": "Abcdef1!", "newPassword": "weak", "confirmNewPassword": "weak",
	}, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.postJSON("/api/v1/change-password", map[string]string{}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)
	api.signupAndLogin("a@b.com", "")

	rr, _ := api.postJSON("/api/v1/reset-password-token", map[string]string{"email": "nobody@b.com"}, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.postJSON("/api/v1/reset-password-token", map[string]string{"email": "a@b.com"}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user, err := api.repos.users.GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	require.NotEmpty(t, user.ResetToken)

	msg, ok := api.mail.Last("a@b.com")
	require.True(t, ok)
	assert.Contains(t, msg.Body, "http://localhost:3000/change-password/"+user.ResetToken)

	body := map[string]string{"newPassword": "Newpass1!", "confirmPassword": "Newpass1!", "token": user.ResetToken}
	rr, _ = api.postJSON("/api/v1/reset-password", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr, resp := api.postJSON("/api/v1/reset-password", body, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Invalid or expired link", resp.Message)

	rr, _ = api.postJSON("/api/v1/login", map[string]string{"email": "a@b.com", "password": "Newpass1!"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGoogleSignup(t *testing.T) {
	api := newTestAPI(t)
	body := map[string]string{"firstName": "Ada", "lastName": "L", "email": "ada@b.com", "accountType": "Instructor"}

	rr, resp := api.postJSON("/api/v1/google-signup", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEmpty(t, resp.Token)
	assert.Len(t, rr.Result().Cookies(), 1)

	rr, _ = api.postJSON("/api/v1/google-signup", body, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, api.mail.Messages(), 1)
}

func TestTags(t *testing.T) {
	api := newTestAPI(t)
	admin := api.signupAndLogin("admin@b.com", "Admin")
	student := api.signupAndLogin("student@b.com", "Student")

	tag := map[string]string{"name": "go", "description": "The Go language"}

	rr, _ := api.postJSON("/api/v1/tags", tag, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = api.postJSON("/api/v1/tags", tag, student)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = api.postJSON("/api/v1/tags", tag, admin)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr, _ = api.postJSON("/api/v1/tags", tag, admin)
	assert.Equal(t, http.StatusConflict, rr.Code)
	rr, _ = api.postJSON("/api/v1/tags", map[string]string{"name": "rust"}, admin)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, resp := api.get("/api/v1/tags", "")
	require.Equal(t, http.StatusOK, rr.Code)
	tags, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, tags, 1)
}

func multipartUpload(t *testing.T, filename string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestImageUpload(t *testing.T) {
	api := newTestAPI(t)
	token := api.signupAndLogin("a@b.com", "")
	fields := map[string]string{"name": "Ada", "email": "a@b.com", "tag": "avatars"}

	upload := func(filename string, data []byte, fields map[string]string, token string) (*httptest.ResponseRecorder, handlers.Response) {
		body, contentType := multipartUpload(t, filename, data, fields)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/imageupload", body)
		req.Header.Set("Content-Type", contentType)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return api.do(req)
	}

	rr, _ := upload("me.png", []byte("png"), fields, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, resp := upload("me.png", []byte("png"), fields, token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(data["imageUrl"].(string), "https://cdn.edusphere.dev/EduSphere/"))

	msg, ok := api.mail.Last("a@b.com")
	require.True(t, ok)
	assert.Equal(t, "New File Uploaded", msg.Subject)

	withToken := map[string]string{"token": token}
	for k, v := range fields {
		withToken[k] = v
	}
	rr, _ = upload("me.png", []byte("png"), withToken, "")
	assert.Equal(t, http.StatusOK, rr.Code, "token read from the form field")

	rr, resp = upload("", nil, fields, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Please Enter Valid Data", resp.Message)

	rr, _ = upload("notes.pdf", []byte("pdf"), fields, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = upload("big.png", bytes.Repeat([]byte{1}, 2<<20+1), fields, token)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
