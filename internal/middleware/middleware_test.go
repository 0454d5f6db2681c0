package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilvik/vivum-demo-v1/pkg/logger"
)

const secret = "test-secret"

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestCheckInviteCode(t *testing.T) {
	assert.NoError(t, CheckInviteCode("12345", "12345"))
	assert.ErrorIs(t, CheckInviteCode("12345", "1234"), ErrInvalidInviteCode)
	assert.ErrorIs(t, CheckInviteCode("12345", ""), ErrInvalidInviteCode)
	assert.ErrorIs(t, CheckInviteCode("", ""), ErrInvalidInviteCode)
}

func TestAuth(t *testing.T) {
	now := time.Now()
	token, userID, expiresAt, err := IssueToken(secret, time.Hour, now)
	require.NoError(t, err)
	assert.NotEmpty(t, userID)
	assert.WithinDuration(t, now.Add(time.Hour), expiresAt, time.Second)

	expired, _, _, err := IssueToken(secret, -time.Minute, now)
	require.NoError(t, err)
	forged, _, _, err := IssueToken("other-secret", time.Hour, now)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{name: "valid bearer", header: "Bearer " + token, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + token, status: http.StatusOK},
		{name: "query token", query: "?access_token=" + token, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + forged, status: http.StatusUnauthorized},
		{name: "none algorithm", header: "Bearer " + unsigned, status: http.StatusUnauthorized},
	}

	handler := Auth(secret)(echoUser())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID, rec.Body.String())
			}
		})
	}
}

func TestLogging_SetsCorrelationID(t *testing.T) {
	var seen string
	handler := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rec.Header().Get("X-Correlation-ID"))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))
}

func TestLogging_PassesFlusher(t *testing.T) {
	handler := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := w.(http.Flusher)
		assert.True(t, ok)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestUserRateLimit(t *testing.T) {
	token, _, _, err := IssueToken(secret, time.Hour, time.Now())
	require.NoError(t, err)
	handler := Auth(secret)(UserRateLimit(2, time.Minute)(echoUser()))

	codes := make([]int, 3)
	for i := range codes {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes[i] = rec.Code
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent(""))
	assert.NoError(t, ValidateMessageContent("what about cancer?"))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", MaxMessageLength+1)))
	assert.Error(t, ValidateMessageContent("\xff\xfe"))
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("0190a5e4-7c1b-7f3a-9d2e-1b2c3d4e5f60"))
	assert.Error(t, ValidateSessionID("not-a-uuid"))
}
