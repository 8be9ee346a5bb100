package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wahook/pkg/state"
)

const secret = "test-secret"

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"subject":    c.GetString(state.CurrentSubject),
			"request_id": c.GetString(state.RequestID),
		})
	})
	return r
}

func do(r http.Handler, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCheckAuth_EmptySecretDisablesCheck(t *testing.T) {
	w := do(newEngine(CheckAuth("")), nil)
	assert.Equal(t, 200, w.Code)
}

func TestCheckAuth(t *testing.T) {
	valid, err := IssueToken(secret, "operator", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "operator", -time.Hour)
	require.NoError(t, err)
	wrongKey, err := IssueToken("other-secret", "operator", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "operator"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{name: "valid token", header: "Bearer " + valid, code: 200},
		{name: "missing header", header: "", code: 401},
		{name: "wrong scheme", header: "Basic " + valid, code: 400},
		{name: "no token part", header: "Bearer", code: 400},
		{name: "expired", header: "Bearer " + expired, code: 401},
		{name: "wrong signing key", header: "Bearer " + wrongKey, code: 401},
		{name: "missing exp claim", header: "Bearer " + noExp, code: 401},
		{name: "garbage", header: "Bearer not.a.jwt", code: 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			w := do(newEngine(CheckAuth(secret)), h)
			assert.Equal(t, tt.code, w.Code)
			if tt.code == 200 {
				assert.Contains(t, w.Body.String(), `"subject":"operator"`)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID())

	w := do(r, http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, w.Body.String(), `"request_id":"abc-123"`)

	w = do(r, nil)
	generated := w.Header().Get("X-Request-ID")
	assert.Len(t, generated, 36)
	assert.Contains(t, w.Body.String(), generated)
}
