package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	cfgpkg "github.com/taoyao-code/zvt-tap/internal/config"
	appmetrics "github.com/taoyao-code/zvt-tap/internal/metrics"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealthzReadyzMetrics(t *testing.T) {
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}
	reg := appmetrics.NewRegistry()
	srv := New(cfg, "/metrics", appmetrics.Handler(reg), func() bool { return true }, nil)

	if rr := serve(srv, http.MethodGet, "/healthz"); rr.Code != http.StatusOK {
		t.Fatalf("/healthz code=%d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("/readyz code=%d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/metrics"); rr.Code != http.StatusOK {
		t.Fatalf("/metrics code=%d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/debug/pprof/"); rr.Code != http.StatusNotFound {
		t.Fatalf("pprof 未启用时应为 404, code=%d", rr.Code)
	}
}

func TestReadyzNotReady(t *testing.T) {
	cfg := cfgpkg.HTTPConfig{Addr: ":0"}
	srv := New(cfg, "", nil, func() bool { return false }, nil)

	if rr := serve(srv, http.MethodGet, "/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("/readyz not-ready code=%d", rr.Code)
	}
}

func TestRegisterAndPprof(t *testing.T) {
	cfg := cfgpkg.HTTPConfig{Addr: ":0", Pprof: cfgpkg.HTTPPprof{Enable: true, Prefix: "/dbg/"}}
	srv := New(cfg, "", nil, nil, nil)
	srv.Register(func(r *gin.Engine) {
		r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	})

	if rr := serve(srv, http.MethodGet, "/ping"); rr.Code != http.StatusOK || rr.Body.String() != "pong" {
		t.Fatalf("/ping code=%d body=%q", rr.Code, rr.Body.String())
	}
	if rr := serve(srv, http.MethodGet, "/dbg/cmdline"); rr.Code != http.StatusOK {
		t.Fatalf("pprof cmdline code=%d", rr.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("期望2条日志，实际: %d", len(entries))
	}
	if entries[0].Level != zap.ErrorLevel {
		t.Errorf("5xx 应记为 error，实际: %v", entries[0].Level)
	}
	if entries[1].Level != zap.DebugLevel {
		t.Errorf("探针应记为 debug，实际: %v", entries[1].Level)
	}
}
