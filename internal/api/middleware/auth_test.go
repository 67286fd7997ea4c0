package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth(keys, nil))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestAPIKeyAuth(t *testing.T) {
	cases := []struct {
		name    string
		keys    []string
		headers map[string]string
		query   string
		want    int
	}{
		{"未配置密钥放行", nil, nil, "", http.StatusOK},
		{"缺少密钥", []string{"secret-key-1"}, nil, "", http.StatusUnauthorized},
		{"X-API-Key", []string{"secret-key-1"}, map[string]string{"X-API-Key": "secret-key-1"}, "", http.StatusOK},
		{"Bearer", []string{"a", "secret-key-2"}, map[string]string{"Authorization": "Bearer secret-key-2"}, "", http.StatusOK},
		{"无效密钥", []string{"secret-key-1"}, map[string]string{"X-API-Key": "nope"}, "", http.StatusForbidden},
		{"普通请求不接受查询参数", []string{"k"}, nil, "?api_key=k", http.StatusUnauthorized},
		{"WebSocket 查询参数", []string{"k"}, map[string]string{"Upgrade": "websocket"}, "?api_key=k", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			newRouter(tc.keys).ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcd****6789", maskAPIKey("abcdef0123456789"))
}
