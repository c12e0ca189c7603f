// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database and mirror store, object storage, certificate assets,
// the collaborator API, the certificate pipeline, rate limiting and
// observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal images
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-pledge-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the relational pledge store.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	DSN    string // DB_DSN: file path for sqlite, URL for postgres
	// MirrorDir is the badger directory of the document mirror; empty
	// disables mirroring.
	MirrorDir string // MIRROR_DIR
}

// StorageConfig selects where selfies and certificates are uploaded.
type StorageConfig struct {
	Backend string // STORAGE_BACKEND: s3|gcs|local|none
	// MirrorBackend, when set, receives a best-effort copy of every upload.
	MirrorBackend string // STORAGE_MIRROR_BACKEND

	Bucket        string        // STORAGE_BUCKET
	Prefix        string        // STORAGE_PREFIX
	PublicBaseURL string        // STORAGE_PUBLIC_URL
	Timeout       time.Duration // STORAGE_TIMEOUT

	// S3-compatible (AWS, Supabase storage, MinIO).
	Region          string // S3_REGION
	Endpoint        string // S3_ENDPOINT
	AccessKeyID     string // S3_ACCESS_KEY_ID
	SecretAccessKey string // S3_SECRET_ACCESS_KEY

	// Google Cloud Storage / Firebase storage.
	GCSCredentialsFile string // GCS_CREDENTIALS_FILE
	GCSEndpoint        string // GCS_ENDPOINT
	FirebaseURLs       bool   // GCS_FIREBASE_URLS

	// Local spool for certificates that could not be uploaded, and the local
	// backend's directory.
	SpoolDir string // SPOOL_DIR
	SpoolURL string // SPOOL_URL (public path the spool is served under)
}

// AssetsConfig locates certificate templates and fonts.
type AssetsConfig struct {
	Dir     string        // ASSETS_DIR: served at / and used when BaseURL is empty
	BaseURL string        // ASSETS_BASE_URL: fetch templates over HTTP instead
	Version string        // ASSETS_VERSION: cache-busting token
	Timeout time.Duration // ASSETS_TIMEOUT
}

// CollabConfig configures the collaborator API client.
type CollabConfig struct {
	BaseURL       string        // COLLAB_BASE_URL; defaults to this server
	Timeout       time.Duration // COLLAB_TIMEOUT (primary upsert, tracking calls)
	BeaconQueue   int           // BEACON_QUEUE
	BeaconTimeout time.Duration // BEACON_TIMEOUT
}

// PipelineConfig tunes the certificate pipeline.
type PipelineConfig struct {
	PublicBaseURL   string        // PUBLIC_BASE_URL: share links are built on it
	TimeZone        string        // TIME_ZONE: certificate date zone
	UploadRetries   int           // UPLOAD_RETRIES (0 selects the default, <0 disables)
	RetryDelay      time.Duration // UPLOAD_RETRY_DELAY
	SelfieMaxSide   int           // SELFIE_MAX_SIDE
	SelfieQuality   float64       // SELFIE_QUALITY (WebP, 1..100)
	MaxSelfieBytes  int64         // MAX_SELFIE_BYTES
	GenerateTimeout time.Duration // GENERATE_TIMEOUT: whole pipeline budget
	SessionTTL      time.Duration // SESSION_TTL: idle session eviction
	CountOffset     int64         // COUNT_OFFSET: added to the displayed total
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 90s; certificate downloads are slow
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Stores
	DB      DBConfig
	Storage StorageConfig
	Assets  AssetsConfig

	// Collaborator API and pipeline
	Collab   CollabConfig
	Pipeline PipelineConfig

	// Rate limiting (all routes, then certificate generation)
	RateRPS       float64 // tokens per second (>= 0)
	RateBurst     int     // bucket size (>= 1)
	CertRateRPS   float64 // CERT_RATE_RPS
	CertRateBurst int     // CERT_RATE_BURST

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	port := getenv("PORT", "8080")
	apiBase := normalizeBasePath(getenv("API_BASE_PATH", "/api/v1"))
	self := "http://localhost:" + port

	cfg := Config{
		// Server
		Port:              port,
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 90*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    apiBase,

		DB: DBConfig{
			Driver:    strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:       getenv("DB_DSN", "pledges.db"),
			MirrorDir: getenv("MIRROR_DIR", ""),
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(getenv("STORAGE_BACKEND", "local")),
			MirrorBackend:      strings.ToLower(getenv("STORAGE_MIRROR_BACKEND", "")),
			Bucket:             getenv("STORAGE_BUCKET", ""),
			Prefix:             getenv("STORAGE_PREFIX", ""),
			PublicBaseURL:      getenv("STORAGE_PUBLIC_URL", ""),
			Timeout:            getdur("STORAGE_TIMEOUT", 20*time.Second),
			Region:             getenv("S3_REGION", "ap-south-1"),
			Endpoint:           getenv("S3_ENDPOINT", ""),
			AccessKeyID:        getenv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:    getenv("S3_SECRET_ACCESS_KEY", ""),
			GCSCredentialsFile: getenv("GCS_CREDENTIALS_FILE", ""),
			GCSEndpoint:        getenv("GCS_ENDPOINT", ""),
			FirebaseURLs:       getbool("GCS_FIREBASE_URLS", false),
			SpoolDir:           getenv("SPOOL_DIR", "data/spool"),
			SpoolURL:           normalizeBasePath(getenv("SPOOL_URL", "/files")),
		},
		Assets: AssetsConfig{
			Dir:     getenv("ASSETS_DIR", "assets"),
			BaseURL: strings.TrimRight(getenv("ASSETS_BASE_URL", ""), "/"),
			Version: getenv("ASSETS_VERSION", "1"),
			Timeout: getdur("ASSETS_TIMEOUT", 10*time.Second),
		},
		Collab: CollabConfig{
			BaseURL:       strings.TrimRight(getenv("COLLAB_BASE_URL", self+strings.TrimRight(apiBase, "/")), "/"),
			Timeout:       getdur("COLLAB_TIMEOUT", 5*time.Second),
			BeaconQueue:   getint("BEACON_QUEUE", 64),
			BeaconTimeout: getdur("BEACON_TIMEOUT", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			PublicBaseURL:   strings.TrimRight(getenv("PUBLIC_BASE_URL", self), "/"),
			TimeZone:        getenv("TIME_ZONE", "Asia/Kolkata"),
			UploadRetries:   getint("UPLOAD_RETRIES", 2),
			RetryDelay:      getdur("UPLOAD_RETRY_DELAY", 300*time.Millisecond),
			SelfieMaxSide:   getint("SELFIE_MAX_SIDE", 700),
			SelfieQuality:   getfloat("SELFIE_QUALITY", 60),
			MaxSelfieBytes:  int64(getint("MAX_SELFIE_BYTES", 8<<20)),
			GenerateTimeout: getdur("GENERATE_TIMEOUT", 60*time.Second),
			SessionTTL:      getdur("SESSION_TTL", 30*time.Minute),
			CountOffset:     int64(getint("COUNT_OFFSET", 3000)),
		},

		// Rate limiting
		RateRPS:       getfloat("RATE_RPS", 5.0),
		RateBurst:     getint("RATE_BURST", 10),
		CertRateRPS:   getfloat("CERT_RATE_RPS", 0.2),
		CertRateBurst: getint("CERT_RATE_BURST", 3),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-pledge-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	switch cfg.DB.Driver {
	case "sqlite3", "":
		cfg.DB.Driver = "sqlite"
	case "postgresql", "pg":
		cfg.DB.Driver = "postgres"
	}

	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}

	switch cfg.DB.Driver {
	case "sqlite", "postgres":
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return errors.New("DB_DSN must not be empty")
	}

	for name, b := range map[string]string{"STORAGE_BACKEND": cfg.Storage.Backend, "STORAGE_MIRROR_BACKEND": cfg.Storage.MirrorBackend} {
		switch b {
		case "s3", "gcs":
			if strings.TrimSpace(cfg.Storage.Bucket) == "" {
				return fmt.Errorf("%s=%s requires STORAGE_BUCKET", name, b)
			}
		case "local", "none", "":
		default:
			return fmt.Errorf("%s must be one of: s3, gcs, local, none", name)
		}
	}
	if cfg.Storage.Backend == "" {
		return errors.New("STORAGE_BACKEND must not be empty")
	}
	if cfg.Storage.MirrorBackend != "" && cfg.Storage.MirrorBackend == cfg.Storage.Backend {
		return errors.New("STORAGE_MIRROR_BACKEND must differ from STORAGE_BACKEND")
	}
	if cfg.Storage.Timeout <= 0 {
		return errors.New("STORAGE_TIMEOUT must be > 0")
	}
	if strings.TrimSpace(cfg.Storage.SpoolDir) == "" {
		return errors.New("SPOOL_DIR must not be empty")
	}

	if cfg.Assets.BaseURL == "" && strings.TrimSpace(cfg.Assets.Dir) == "" {
		return errors.New("one of ASSETS_DIR or ASSETS_BASE_URL is required")
	}
	if cfg.Assets.Timeout <= 0 {
		return errors.New("ASSETS_TIMEOUT must be > 0")
	}

	if cfg.Collab.BaseURL == "" {
		return errors.New("COLLAB_BASE_URL must not be empty")
	}
	if cfg.Collab.Timeout <= 0 || cfg.Collab.BeaconTimeout <= 0 {
		return errors.New("COLLAB_TIMEOUT and BEACON_TIMEOUT must be > 0")
	}
	if cfg.Collab.BeaconQueue < 1 {
		return errors.New("BEACON_QUEUE must be >= 1")
	}

	if _, err := time.LoadLocation(cfg.Pipeline.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE: %w", err)
	}
	if cfg.Pipeline.RetryDelay < 0 {
		return errors.New("UPLOAD_RETRY_DELAY must be >= 0")
	}
	if cfg.Pipeline.SelfieMaxSide < 16 {
		return errors.New("SELFIE_MAX_SIDE must be >= 16")
	}
	if cfg.Pipeline.SelfieQuality <= 0 || cfg.Pipeline.SelfieQuality > 100 {
		return errors.New("SELFIE_QUALITY must be in (0,100]")
	}
	if cfg.Pipeline.MaxSelfieBytes <= 0 {
		return errors.New("MAX_SELFIE_BYTES must be > 0")
	}
	if cfg.Pipeline.GenerateTimeout <= 0 || cfg.Pipeline.SessionTTL <= 0 {
		return errors.New("GENERATE_TIMEOUT and SESSION_TTL must be > 0")
	}
	if cfg.Pipeline.CountOffset < 0 {
		return errors.New("COUNT_OFFSET must be >= 0")
	}

	if cfg.RateRPS < 0 || cfg.CertRateRPS < 0 {
		return errors.New("RATE_RPS and CERT_RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 || cfg.CertRateBurst < 1 {
		return errors.New("RATE_BURST and CERT_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Location returns the certificate time zone. Load has validated it.
func (cfg Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Pipeline.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// lookup parses env var k, returning def when it is unset, empty or
// unparsable.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	out, err := parse(v)
	if err != nil {
		return def
	}
	return out
}

func getenv(k, def string) string {
	return lookup(k, def, func(s string) (string, error) { return s, nil })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration {
	return lookup(k, def, time.ParseDuration)
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getbool(k string, def bool) bool { return lookup(k, def, parseBool) }

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// splitCSV returns the non-blank comma-separated items of s, or nil.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with exactly one leading slash and no
// trailing slash; blank means "/".
func normalizeBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
