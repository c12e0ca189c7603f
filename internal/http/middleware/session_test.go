package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSession_ReuseOrMint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Session())
	var seen string
	r.GET("/s", func(c *gin.Context) {
		seen = SessionID(c)
		c.Status(http.StatusOK)
	})

	cases := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"valid header reused", "sess_0123-abc", true},
		{"missing header minted", "", false},
		{"malformed header minted", "bad id<script>", false},
		{"overlong header minted", strings.Repeat("a", 65), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/s", nil)
			if tc.header != "" {
				req.Header.Set(HeaderSessionID, tc.header)
			}
			r.ServeHTTP(w, req)

			if tc.reuse && seen != tc.header {
				t.Fatalf("expected header reused, got %q", seen)
			}
			if !tc.reuse && (!strings.HasPrefix(seen, "sess_") || seen == tc.header) {
				t.Fatalf("expected minted session, got %q", seen)
			}
			if got := w.Header().Get(HeaderSessionID); got != seen {
				t.Fatalf("response header %q != context %q", got, seen)
			}
		})
	}
}

func TestSessionID_AbsentOrWrongType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if SessionID(c) != "" {
		t.Fatal("expected empty session id")
	}
	c.Set(ctxKeySessionID, 7)
	if SessionID(c) != "" {
		t.Fatal("expected empty session id for non-string value")
	}
}
