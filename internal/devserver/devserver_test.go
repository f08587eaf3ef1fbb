package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wellnest/core/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnvelope struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors"`
}

func newBackend(t *testing.T) (*Backend, map[string]string) {
	t.Helper()
	b := New(config.DevServerConfig{JWTSecret: "test-secret", TokenTTL: time.Hour, Seed: true}, "test", zerolog.Nop())
	codes := map[string]string{}
	b.OnCode = func(purpose, email, code string) { codes[purpose+":"+email] = code }
	return b, codes
}

func call(t *testing.T, b *Backend, method, path, token string, body any) (int, testEnvelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func registerAndLogin(t *testing.T, b *Backend, codes map[string]string) string {
	t.Helper()
	status, _ := call(t, b, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "s3cret-pass", "password_confirmation": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(t, b, http.MethodPost, "/api/verify-email", "", map[string]string{
		"email": "ana@example.com", "code": codes["verify:ana@example.com"],
	})
	require.Equal(t, http.StatusOK, status)

	status, env := call(t, b, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ana@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), data.ExpiresAt, time.Minute)
	return data.Token
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := hashPassword("correct horse")
	require.NoError(t, err)

	ok, err := verifyPassword("correct horse", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = verifyPassword("wrong horse", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = verifyPassword("x", []byte("not-a-hash"))
	assert.Error(t, err)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now()
	token, exp, err := generateAccessToken("k", "usr_1", "sid_1", now, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Minute), exp)

	claims, err := parseAccessToken(token, "k", now)
	require.NoError(t, err)
	assert.Equal(t, "usr_1", claims.UserID)
	assert.Equal(t, "sid_1", claims.SessionID)

	_, err = parseAccessToken(token, "other", now)
	assert.Error(t, err)

	_, err = parseAccessToken(token, "k", now.Add(2*time.Minute))
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	b, _ := newBackend(t)

	status, env := call(t, b, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "short", "password_confirmation": "other",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.False(t, env.Success)
	assert.Len(t, env.Errors["password"], 2)
}

func TestLoginRequiresVerification(t *testing.T) {
	b, _ := newBackend(t)

	call(t, b, http.MethodPost, "/api/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "s3cret-pass", "password_confirmation": "s3cret-pass",
	})
	status, env := call(t, b, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ana@example.com", "password": "s3cret-pass",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, ErrNotVerified.Error(), env.Message)

	status, _ = call(t, b, http.MethodPost, "/api/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	b, codes := newBackend(t)

	status, env := call(t, b, http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	token := registerAndLogin(t, b, codes)
	status, _ = call(t, b, http.MethodGet, "/api/bookings", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(t, b, http.MethodPost, "/api/logout", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = call(t, b, http.MethodGet, "/api/bookings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session revoked", env.Message)
}

func TestBookingCreatesNotificationAndConversation(t *testing.T) {
	b, codes := newBackend(t)
	token := registerAndLogin(t, b, codes)

	status, env := call(t, b, http.MethodPost, "/api/bookings", token, map[string]any{
		"service_id": "svc_vinyasa",
		"starts_at":  time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = call(t, b, http.MethodGet, "/api/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"unread":1}`, string(env.Data))

	status, env = call(t, b, http.MethodGet, "/api/conversations", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "Vinyasa Flow")
}

func TestServiceSearch(t *testing.T) {
	b, _ := newBackend(t)

	_, env := call(t, b, http.MethodGet, "/api/services?category=massage", "", nil)
	var data struct {
		Services []struct {
			ID string `json:"id"`
		} `json:"services"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Services, 2)

	_, env = call(t, b, http.MethodGet, "/api/services?postcode=e1%207qq&search=flow", "", nil)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Services, 1)
	assert.Equal(t, "svc_vinyasa", data.Services[0].ID)
}

func TestInvestLimits(t *testing.T) {
	b, codes := newBackend(t)
	token := registerAndLogin(t, b, codes)

	status, env := call(t, b, http.MethodPost, "/api/investments", token, map[string]any{
		"location_id": "loc_bankside", "amount": "25.00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, []string{ErrOverSubscribed.Error()}, env.Errors["amount"])

	status, _ = call(t, b, http.MethodPost, "/api/investments", token, map[string]any{
		"location_id": "loc_shoreditch", "amount": "25.00",
	})
	assert.Equal(t, http.StatusCreated, status)
}

func TestHealth(t *testing.T) {
	b, _ := newBackend(t)
	status, env := call(t, b, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}
