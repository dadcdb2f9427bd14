package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func requestIDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	return r
}

func TestRequestID_Generated(t *testing.T) {
	w := httptest.NewRecorder()
	requestIDRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	header := w.Header().Get(RequestIDHeader)
	if header == "" {
		t.Fatal("expected generated X-Request-ID header")
	}
	if w.Body.String() != header {
		t.Errorf("context id %q != header id %q", w.Body.String(), header)
	}
}

func TestRequestID_InboundReused(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "upstream-id-42")
	requestIDRouter().ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "upstream-id-42" {
		t.Errorf("header = %q, want upstream value reused", got)
	}
}
