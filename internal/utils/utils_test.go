package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserAgent(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		info := ParseUserAgent("")
		assert.Equal(t, "unknown", info.DeviceType)
		assert.Equal(t, "unknown device", info.Label())
	})

	t.Run("Desktop Chrome", func(t *testing.T) {
		info := ParseUserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		assert.Equal(t, "desktop", info.DeviceType)
		assert.Equal(t, "Chrome", info.Browser)
		assert.False(t, info.IsBot)
	})
}

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret(16)
	require.NoError(t, err)
	assert.Len(t, secret, 32)

	jwtSecret, redisPassword, err := GenerateServerSecrets()
	require.NoError(t, err)
	assert.Len(t, jwtSecret, 64)
	assert.NotEqual(t, jwtSecret, redisPassword)
}

func TestGetRealIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newContext := func(headers map[string]string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:1234"
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		c.Request = req
		return c
	}

	assert.Equal(t, "203.0.113.9", GetRealIP(newContext(map[string]string{"X-Real-IP": "203.0.113.9"})))
	assert.Equal(t, "198.51.100.7", GetRealIP(newContext(map[string]string{"X-Forwarded-For": "10.1.1.1, 198.51.100.7"})))
	assert.Equal(t, "10.0.0.5", GetRealIP(newContext(nil)))
	assert.Equal(t, "Unknown", GetUserAgent(newContext(nil)))
}
