package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newLimitedEngine(l *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", l.Middleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func doRequest(r *gin.Engine, remoteAddr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	l := NewRateLimiter(0.001, 2)
	defer l.Stop()
	r := newLimitedEngine(l)

	for i := 0; i < 2; i++ {
		if code := doRequest(r, "192.0.2.1:1234"); code != http.StatusOK {
			t.Fatalf("request %d within burst should pass, got %d", i, code)
		}
	}
	if code := doRequest(r, "192.0.2.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("request beyond burst should be rejected with 429, got %d", code)
	}

	// 不同 IP 有独立的令牌桶
	if code := doRequest(r, "192.0.2.2:1234"); code != http.StatusOK {
		t.Fatalf("a fresh client must not share the exhausted bucket, got %d", code)
	}
}

func TestRateLimiterUnlimitedWhenDisabled(t *testing.T) {
	l := NewRateLimiter(0, 1)
	defer l.Stop()
	r := newLimitedEngine(l)

	for i := 0; i < 10; i++ {
		if code := doRequest(r, "192.0.2.1:1234"); code != http.StatusOK {
			t.Fatalf("rps<=0 means unlimited, request %d got %d", i, code)
		}
	}
}

func TestRateLimiterStopTerminatesCleanup(t *testing.T) {
	l := NewRateLimiter(1, 1)
	l.Stop()

	// 清理协程退出后限流本身仍然可用
	if !l.get("192.0.2.1").Allow() {
		t.Fatal("limiter should still serve after Stop")
	}
	select {
	case <-l.done:
	default:
		t.Fatal("Stop must close the done channel so cleanupLoop can exit")
	}
}
