package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRedact(t *testing.T) {
	cases := map[string]string{
		"mobile=9876543210":                          "mobile=[REDACTED:mobile]",
		"m=+91 98765 43210":                          "m=[REDACTED:mobile]",
		"mail=a.b+tag@example.com":                   "mail=[REDACTED:email]",
		"id=123e4567-e89b-12d3-a456-426614174000":    "id=[REDACTED:id]",
		"selfie=data:image/jpeg;base64,/9j/4AAQSk==": "selfie=[REDACTED:data]",
		"pledge=AANIRBHA-2025-ABCDEF-1":              "pledge=AANIRBHA-2025-ABCDEF-1",
		"":                                           "",
	}
	for in, want := range cases {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRedactingLogger_InfoAndRedactions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), Session())
	r.Use(RedactingLogger(RedactOptions{MaskHeaders: []string{"X-Api-Key"}}))
	r.GET("/certificate/:pledgeId", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	q := "email=a.b+tag@example.com&mobile=9876543210&id=123e4567-e89b-12d3-a456-426614174000"
	req := httptest.NewRequest(http.MethodGet, "/certificate/AANIRBHA-2025-ABCDEF-1?"+q, nil)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Cookie", "sid=topsecret")
	req.Header.Set("X-Api-Key", "shhh")
	req.Header.Set("X-Custom", "email a@b.com phone 9876543210")
	req.Header.Set(HeaderRequestID, "rid-1")
	req.Header.Set(HeaderSessionID, "sess_1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	logs := buf.String()
	for _, want := range []string{
		`"level":"info"`,
		`"path":"/certificate/:pledgeId"`,
		`"request_id":"rid-1"`,
		`"session_id":"sess_1"`,
		`[REDACTED:email]`,
		`[REDACTED:mobile]`,
		`[REDACTED:id]`,
		`"Authorization":"[REDACTED]"`,
		`"Cookie":"[REDACTED]"`,
		`"X-Api-Key":"[REDACTED]"`,
		`"X-Custom":"email [REDACTED:email] phone [REDACTED:mobile]"`,
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("expected %s in log, got: %s", want, logs)
		}
	}
	if strings.Contains(logs, "9876543210") || strings.Contains(logs, "topsecret") {
		t.Fatalf("sensitive value leaked: %s", logs)
	}
}

func TestRedactingLogger_LevelsAndSkip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{SkipPaths: []string{"/health"}}))
	r.GET("/warn", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/error", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/health", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("still scoped")
		c.Status(http.StatusOK)
	})

	for _, p := range []string{"/warn", "/error", "/health", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	logs := buf.String()
	if !strings.Contains(logs, `"level":"warn"`) || !strings.Contains(logs, `"path":"/warn"`) {
		t.Fatalf("warn log not found: %s", logs)
	}
	if !strings.Contains(logs, `"level":"error"`) {
		t.Fatalf("error log not found: %s", logs)
	}
	if !strings.Contains(logs, `"path":"/missing"`) {
		t.Fatalf("expected raw path for unmatched route: %s", logs)
	}
	if strings.Count(logs, `"http_request"`) != 3 {
		t.Fatalf("expected /health access log to be skipped: %s", logs)
	}
	if !strings.Contains(logs, `"still scoped"`) {
		t.Fatalf("skipped paths must still get a scoped logger: %s", logs)
	}
}
