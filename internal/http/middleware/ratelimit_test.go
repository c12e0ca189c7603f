package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyBySessionOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if key := KeyBySessionOrIP()(c); key != "ip:203.0.113.9" {
		t.Fatalf("expected ip-based key; got %q", key)
	}
	c.Set(ctxKeySessionID, "sess_1")
	if key := KeyBySessionOrIP()(c); key != "session:sess_1" {
		t.Fatalf("expected session-based key; got %q", key)
	}
	if key := KeyByIP()(c); !strings.HasPrefix(key, "ip:") {
		t.Fatalf("KeyByIP must ignore the session; got %q", key)
	}
}

func TestNewRateLimiter_Defaults_AndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, nil)
	if rl.burst != 1 || rl.keyFn == nil {
		t.Fatalf("defaults not applied: burst=%d keyFn=%v", rl.burst, rl.keyFn != nil)
	}
	lim := rl.getVisitor("k1")
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_getVisitor_GC(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyBySessionOrIP())
	rl.ttl = time.Nanosecond

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.getVisitor("new")

	rl.mu.Lock()
	_, existsOld := rl.visitors["old"]
	_, existsNew := rl.visitors["new"]
	rl.mu.Unlock()
	if existsOld || !existsNew {
		t.Fatalf("gc result: old=%v new=%v", existsOld, existsNew)
	}
}

func TestIsRateBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false by default")
	}
	c.Set(ctxKeyRateBypass, true)
	if !IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=true when set")
	}
	c.Set(ctxKeyRateBypass, "yes")
	if IsRateBypass(c) {
		t.Fatalf("expected IsRateBypass=false when non-bool stored")
	}
}

func TestRateLimiter_Handler_PerSession_AndBypass(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(0.5, 1, KeyBySessionOrIP())
	r := gin.New()
	r.Use(RequestID(), Session(), rl.Handler())
	r.POST("/certificates", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	send := func(session string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/certificates", nil)
		req.Header.Set(HeaderSessionID, session)
		r.ServeHTTP(w, req)
		return w
	}

	if w := send("sess_a"); w.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w.Code)
	}
	w := send("sess_a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 2 {
		t.Fatalf("Retry-After = %q, want 1..2 seconds", w.Header().Get("Retry-After"))
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] == "" {
		t.Fatalf("unexpected JSON body: %v", body)
	}

	if w := send("sess_b"); w.Code != http.StatusOK {
		t.Fatalf("other sessions have their own bucket, got %d", w.Code)
	}

	// A denied request must not have consumed a token.
	rl.mu.Lock()
	lim := rl.visitors["session:sess_a"].limiter
	rl.mu.Unlock()
	if tokens := lim.Tokens(); tokens < -0.01 {
		t.Fatalf("rejected request drained the bucket: %v", tokens)
	}

	rBypass := gin.New()
	rBypass.Use(Session(), func(c *gin.Context) { c.Set(ctxKeyRateBypass, true); c.Next() }, rl.Handler())
	rBypass.POST("/certificates", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	wb := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/certificates", nil)
	req.Header.Set(HeaderSessionID, "sess_a")
	rBypass.ServeHTTP(wb, req)
	if wb.Code != http.StatusOK {
		t.Fatalf("bypass request should be allowed, got %d", wb.Code)
	}
}

func TestRetryAfter(t *testing.T) {
	for d, want := range map[time.Duration]string{
		0:                       "1",
		300 * time.Millisecond:  "1",
		1500 * time.Millisecond: "2",
		3 * time.Second:         "3",
	} {
		if got := retryAfter(d); got != want {
			t.Errorf("retryAfter(%v) = %q, want %q", d, got, want)
		}
	}
}
