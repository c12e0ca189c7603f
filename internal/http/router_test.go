package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/client"
	"github.com/tbourn/go-pledge-backend/internal/config"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/exif"
	"github.com/tbourn/go-pledge-backend/internal/http/handlers"
	"github.com/tbourn/go-pledge-backend/internal/http/middleware"
	"github.com/tbourn/go-pledge-backend/internal/repo"
	"github.com/tbourn/go-pledge-backend/internal/services"
)

// --- fake pipeline: every run fails validation, replays come from the DB ---
type fakeCerts struct {
	db   *gorm.DB
	runs int
}

func (f *fakeCerts) Run(context.Context, *services.Session, services.CertificateInput, certificate.Delivery) (*services.Result, error) {
	f.runs++
	return nil, services.ErrMissingName
}

func (f *fakeCerts) Replay(ctx context.Context, sessionID, key string) (*domain.Idempotency, bool) {
	return (&services.CertificateService{DB: f.db}).Replay(ctx, sessionID, key)
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		APIBasePath:   "/api/v1",
		RateRPS:       100,
		RateBurst:     10,
		CertRateRPS:   100,
		CertRateBurst: 10,
		CORS:          config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:      config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:          config.OTELConfig{ServiceName: "test-svc"},
		Storage:       config.StorageConfig{SpoolDir: t.TempDir(), SpoolURL: "/files"},
		Assets:        config.AssetsConfig{Dir: t.TempDir()},
		Pipeline: config.PipelineConfig{
			PublicBaseURL:  "https://pledge.example",
			MaxSelfieBytes: 1 << 20,
			SessionTTL:     time.Minute,
			CountOffset:    3000,
		},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB, *fakeCerts) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	certs := &fakeCerts{db: db}
	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Certificates: certs}, cfg)
	return r, db, certs
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _, _ := newRouter(t, testConfig(t))

	// /health works
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	// A session id is minted and echoed.
	if sid := w.Header().Get(middleware.HeaderSessionID); !strings.HasPrefix(sid, "sess_") {
		t.Fatalf("expected minted session id, got %q", sid)
	}

	// /metrics is wired
	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil)); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _, _ := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	if exp := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(exp, middleware.HeaderSessionID) {
		t.Fatalf("expected session header exposed, got %q", exp)
	}
}

func TestRegisterRoutes_PledgeRoutes_GzipAndCount(t *testing.T) {
	r, _, _ := newRouter(t, testConfig(t))

	body := `[{"pledge_id":"AANIRBHA-2025-ABCDEF-1","name":"Asha"},{"pledge_id":"AANIRBHA-2025-ABCDEF-2","name":"Ravi"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pledges", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(r, req); w.Code != http.StatusOK {
		t.Fatalf("POST /pledges = %d body=%s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/pledges/count", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /pledges/count = %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var got services.PledgeCount
	if err := json.NewDecoder(zr).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 2 || got.Display != 3002 {
		t.Fatalf("count = %+v", got)
	}
}

func TestRegisterRoutes_BodyLimits(t *testing.T) {
	cfg := testConfig(t)
	r, _, _ := newRouter(t, cfg)

	post := func(path, body string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1"+path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req).Code
	}

	// A pledge carrying a selfie at the size cap inline still fits.
	selfie := bytes.Repeat([]byte{0xff}, int(cfg.Pipeline.MaxSelfieBytes))
	inline := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(selfie)
	body := `{"pledge_id":"AANIRBHA-2025-ABCDEF-1","selfie_url":"` + inline + `"}`
	if code := post("/pledges", body); code != http.StatusOK {
		t.Fatalf("pledge with inline selfie = %d", code)
	}

	big := `{"pledge_id":"AANIRBHA-2025-ABCDEF-1","name":"` + strings.Repeat("a", int(pledgeBodyLimit(cfg.Pipeline.MaxSelfieBytes))) + `"}`
	if code := post("/pledges", big); code != http.StatusBadRequest {
		t.Fatalf("oversized pledge expected 400, got %d", code)
	}

	link := `{"pledgeId":"AANIRBHA-2025-ABCDEF-1","createdBy":"` + strings.Repeat("a", jsonBodyLimit) + `"}`
	if code := post("/track-link", link); code != http.StatusBadRequest {
		t.Fatalf("oversized track-link expected 400, got %d", code)
	}
}

func TestPledgeBodyLimit(t *testing.T) {
	if got, want := pledgeBodyLimit(3), int64(4+jsonBodyLimit); got != want {
		t.Fatalf("pledgeBodyLimit(3) = %d; want %d", got, want)
	}
	if pledgeBodyLimit(0) != pledgeBodyLimit(handlers.DefaultMaxSelfieBytes) {
		t.Fatal("zero cap must use the handler default")
	}
}

// refusingStore fails every upload.
type refusingStore struct{}

func (refusingStore) Name() string { return "refusing" }

func (refusingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

// cameraJPEG looks like a phone capture: smooth gradients with sensor noise.
func cameraJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 11))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := uint8(rng.IntN(12))
			img.Set(x, y, color.NRGBA{R: uint8(60+x*120/w) + n, G: uint8(80+y*100/h) + n, B: 140 + n, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		t.Fatalf("jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestCertificatePipeline_SelfieUploadFailureStillRecordsPledge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.Pipeline.MaxSelfieBytes = 4 << 20
	var bg bytes.Buffer
	if err := imaging.Encode(&bg, imaging.New(400, 300, color.White), imaging.JPEG); err != nil {
		t.Fatalf("template: %v", err)
	}
	mustWrite(t, filepath.Join(cfg.Assets.Dir, "default-format.jpg"), bg.String())

	db := newTestDB(t)
	svc := &services.CertificateService{
		Generator:     certificate.NewGenerator(certificate.DirAssets{Dir: cfg.Assets.Dir}, time.UTC, zerolog.Nop()),
		Corrector:     exif.NewCorrector(zerolog.Nop()),
		Store:         refusingStore{},
		DB:            db,
		PublicBaseURL: cfg.Pipeline.PublicBaseURL,
		UploadRetries: -1,
		Logger:        zerolog.Nop(),
	}
	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Certificates: svc}, cfg)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// The collaborator API is this same server.
	api := client.New(srv.URL + cfg.APIBasePath)
	var beaconSends atomic.Int32
	beacon := client.NewBeacon(api, 4, 5*time.Second)
	beacon.OnDone = func(string, error) { beaconSends.Add(1) }
	defer beacon.Close()
	svc.Pledges = &client.TwoTier{Client: api, Beacon: beacon, Timeout: 5 * time.Second}
	svc.Tracking = api

	capture := cameraJPEG(t, 1280, 960)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "Asha Verma")
	_ = mw.WriteField("district", "Ajmer")
	part, err := mw.CreateFormFile("selfie", "selfie.jpg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(capture)
	_ = mw.Close()

	resp, err := http.Post(srv.URL+cfg.APIBasePath+"/certificates", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /certificates: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST /certificates = %d %s", resp.StatusCode, raw)
	}
	var out struct {
		PledgeID string   `json:"pledge_id"`
		Degraded []string `json:"degraded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !slices.Contains(out.Degraded, services.StepSelfie) || slices.Contains(out.Degraded, services.StepPledge) {
		t.Fatalf("degraded = %v; want selfie upload only among the record steps", out.Degraded)
	}

	p, err := repo.GetPledge(context.Background(), db, out.PledgeID)
	if err != nil {
		t.Fatalf("pledge %s not recorded: %v", out.PledgeID, err)
	}
	data, mime, err := exif.DecodeDataURL(p.SelfieURL)
	if err != nil || mime != "image/webp" {
		t.Fatalf("stored selfie: mime=%q err=%v", mime, err)
	}
	if len(data) >= len(capture) {
		t.Fatalf("inline selfie %d bytes; capture was %d", len(data), len(capture))
	}
	if p.SelfieStatus != domain.StatusFallback {
		t.Fatalf("selfie status = %q", p.SelfieStatus)
	}
	if n := beaconSends.Load(); n != 0 {
		t.Fatalf("beacon used %d times for a write the primary accepted", n)
	}
}

func TestRegisterRoutes_StaticAssetsAndSpool(t *testing.T) {
	cfg := testConfig(t)
	mustWrite(t, filepath.Join(cfg.Assets.Dir, "default-format.jpg"), "jpg-bytes")
	mustWrite(t, filepath.Join(cfg.Assets.Dir, "fonts", "NotoSans-Bold.ttf"), "font-bytes")
	mustWrite(t, filepath.Join(cfg.Storage.SpoolDir, "certificates", "p1.png"), "png-bytes")
	r, _, _ := newRouter(t, cfg)

	for path, want := range map[string]string{
		"/default-format.jpg":        "jpg-bytes",
		"/fonts/NotoSans-Bold.ttf":   "font-bytes",
		"/files/certificates/p1.png": "png-bytes",
	} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/default-format.pdf", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("missing template expected 404, got %d", w.Code)
	}
}

func TestRegisterRoutes_CertificateRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.CertRateRPS = 0.001
	cfg.CertRateBurst = 1
	r, _, certs := newRouter(t, cfg)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderSessionID, "sess-rl")
		return serve(r, req)
	}
	if w := post(); w.Code != http.StatusBadRequest {
		t.Fatalf("first request expected 400 from the pipeline, got %d", w.Code)
	}
	w := post()
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second request expected 429 with Retry-After, got %d", w.Code)
	}
	if certs.runs != 1 {
		t.Fatalf("pipeline ran %d times, want 1", certs.runs)
	}

	// Other routes keep their own budget.
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/pledges/count", nil)); w.Code != http.StatusOK {
		t.Fatalf("count after cert limit = %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotentReplay(t *testing.T) {
	cfg := testConfig(t)
	cfg.CertRateBurst = 1
	cfg.CertRateRPS = 0.001
	r, db, certs := newRouter(t, cfg)

	if _, err := repo.CreateIdempotency(context.Background(), db, "sess-1", "key-1",
		"AANIRBHA-2025-ABCDEF-1", "https://cdn.example/c.png", http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	post := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates"+query, strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.HeaderSessionID, "sess-1")
		req.Header.Set(middleware.HeaderIdempotencyKey, "key-1")
		return serve(r, req)
	}

	// Replays bypass the limiter: three in a row with a burst of one.
	for i := 0; i < 2; i++ {
		w := post("")
		if w.Code != http.StatusOK {
			t.Fatalf("replay %d = %d body=%s", i, w.Code, w.Body.String())
		}
		var body map[string]any
		_ = json.Unmarshal(w.Body.Bytes(), &body)
		if body["replayed"] != true || body["pledge_id"] != "AANIRBHA-2025-ABCDEF-1" {
			t.Fatalf("unexpected replay body: %v", body)
		}
	}
	w := post("?download=1")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "https://cdn.example/c.png" {
		t.Fatalf("download replay = %d %q", w.Code, w.Header().Get("Location"))
	}
	if certs.runs != 0 {
		t.Fatalf("replays must not run the pipeline, ran %d", certs.runs)
	}

	// A different session with the same key is not a replay.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSessionID, "sess-2")
	req.Header.Set(middleware.HeaderIdempotencyKey, "key-1")
	if w := serve(r, req); w.Code != http.StatusBadRequest || certs.runs != 1 {
		t.Fatalf("other session = %d runs=%d", w.Code, certs.runs)
	}
}

func TestRegisterRoutes_IdempotencyLookupError_IsMiss(t *testing.T) {
	r, db, certs := newRouter(t, testConfig(t))

	// Force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/certificates", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	if w := serve(r, req); w.Code != http.StatusBadRequest || certs.runs != 1 {
		t.Fatalf("expected the pipeline to run, got %d runs=%d", w.Code, certs.runs)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig(t)
	cfg.SwaggerEnabled = true
	r, _, _ := newRouter(t, cfg)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/certificates") {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}

	cfg = testConfig(t)
	r, _, _ = newRouter(t, cfg)
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("swagger disabled expected 404, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_withTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/bounded", withTimeout(time.Minute), func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	r.GET("/open", withTimeout(0), func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	})
	for _, path := range []string{"/bounded", "/open"} {
		if w := serve(r, httptest.NewRequest(http.MethodGet, path, nil)); w.Code != http.StatusNoContent {
			t.Fatalf("GET %s = %d", path, w.Code)
		}
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	// non-root prefix
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
