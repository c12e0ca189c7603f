package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
)

// envelopeRouter mounts fn behind a fixed request id and a captured logger.
func envelopeRouter(buf *bytes.Buffer, fn gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	lg := zerolog.New(buf)
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set(middleware.HeaderRequestID, "rid-env")
		c.Set("logger", &lg)
		c.Next()
	})
	r.POST("/api/v1/certificates", fn)
	return r
}

func TestFail_CertificateEnvelope(t *testing.T) {
	cases := []struct {
		status int
		code   string
		logged bool
	}{
		{http.StatusConflict, ErrCodeGenerationInProgress, false},
		{http.StatusBadGateway, ErrCodeGenerationFailed, true},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		r := envelopeRouter(&buf, func(c *gin.Context) {
			fail(c, tc.status, tc.code, "msg-"+tc.code)
			c.String(http.StatusTeapot, "unreachable") // aborted
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/certificates", nil))

		if w.Code != tc.status {
			t.Fatalf("%s: status %d", tc.code, w.Code)
		}
		var er ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
			t.Fatalf("%s: %v (%s)", tc.code, err, w.Body.String())
		}
		if er != (ErrorResponse{RequestID: "rid-env", Code: tc.code, Message: "msg-" + tc.code}) {
			t.Fatalf("%s: body %+v", tc.code, er)
		}
		logged := strings.Contains(buf.String(), `"level":"error"`)
		if logged != tc.logged {
			t.Fatalf("%s: logged=%v, log=%s", tc.code, logged, buf.String())
		}
		if tc.logged && !strings.Contains(buf.String(), `"route":"/api/v1/certificates"`) {
			t.Fatalf("route missing from log: %s", buf.String())
		}
	}
}

func TestCollabFail_ErrorDetailsBody(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		collabFail(c, http.StatusInternalServerError, "failed to save pledge", "disk full")
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/certificates", nil))

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["error"] != "failed to save pledge" || body["details"] != "disk full" {
		t.Fatalf("body = %v", body)
	}
	if _, has := body["code"]; has {
		t.Fatalf("collaborator body must not carry code: %v", body)
	}
	if !strings.Contains(buf.String(), `"details":"disk full"`) {
		t.Fatalf("log = %s", buf.String())
	}

	buf.Reset()
	r = envelopeRouter(&buf, func(c *gin.Context) {
		collabFail(c, http.StatusNotFound, "pledge not found", "")
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/certificates", nil))
	if w.Code != http.StatusNotFound || strings.Contains(w.Body.String(), "details") {
		t.Fatalf("404 body = %s", w.Body.String())
	}
	if buf.Len() != 0 {
		t.Fatalf("4xx logged: %s", buf.String())
	}
}

func TestOK_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	r := envelopeRouter(&buf, func(c *gin.Context) {
		ok(c, http.StatusCreated, OKResponse{OK: true})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/certificates", nil))
	if w.Code != http.StatusCreated || strings.TrimSpace(w.Body.String()) != `{"ok":true}` {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}
