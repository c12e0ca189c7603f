package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// ---------- test DB + router ----------

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newCollabRouter mounts the pledge and tracking routes on real services.
func newCollabRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	pledges := &services.PledgeService{DB: db, CountOffset: 3000, Logger: zerolog.Nop()}
	tracking := &services.TrackingService{DB: db, BaseURL: "https://pledge.example", Logger: zerolog.Nop()}
	h := New(nil, pledges, tracking, nil)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Session())
	r.POST("/pledges", h.UpsertPledges)
	r.GET("/pledges/count", h.PledgeCount)
	r.GET("/certificate/:pledgeId", h.CertificateRedirect)
	r.GET("/selfie/:pledgeId", h.SelfieRedirect)
	r.POST("/track-link", h.CreateTrackLink)
	r.GET("/track-link", h.GetTrackLink)
	r.POST("/track-conversion", h.TrackConversion)
	r.GET("/form-options", h.FormOptions)
	return r, db
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}
