package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	// A developer shell may export any of these.
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_DSN", "STORAGE_BACKEND", "ASSETS_DIR", "TIME_ZONE", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"api base", cfg.APIBasePath, "/api/v1"},
		{"collab defaults to self", cfg.Collab.BaseURL, "http://localhost:9090/api/v1"},
		{"public base", cfg.Pipeline.PublicBaseURL, "http://localhost:9090"},
		{"db driver", cfg.DB.Driver, "sqlite"},
		{"db dsn", cfg.DB.DSN, "pledges.db"},
		{"storage", cfg.Storage.Backend, "local"},
		{"spool url", cfg.Storage.SpoolURL, "/files"},
		{"count offset", cfg.Pipeline.CountOffset, int64(3000)},
		{"zone", cfg.Location().String(), "Asia/Kolkata"},
		{"write timeout covers generation", cfg.WriteTimeout > cfg.Pipeline.GenerateTimeout, true},
		{"cert rps", cfg.CertRateRPS, 0.2},
		{"cert burst", cfg.CertRateBurst, 3},
		{"otel service", cfg.OTEL.ServiceName, "go-pledge-backend"},
		{"gin mode", cfg.GinMode, "release"},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v; want %v", c.name, c.got, c.want)
		}
	}

	if cfg2 := MustLoad(); cfg2.Port != "9090" {
		t.Fatalf("MustLoad port = %q", cfg2.Port)
	}
}

func TestLoad_OverridesAndNormalization(t *testing.T) {
	env := map[string]string{
		"PORT":                    "8088",
		"READ_TIMEOUT":            "2s",
		"WRITE_TIMEOUT":           "75s",
		"GIN_MODE":                "weird",
		"LOG_LEVEL":               "WARNING",
		"LOG_PRETTY":              "yes",
		"SWAGGER_ENABLED":         "on",
		"API_BASE_PATH":           "api/v2/",
		"DB_DRIVER":               "pg",
		"DB_DSN":                  "postgres://u:p@db/pledges",
		"MIRROR_DIR":              "/var/lib/pledge/mirror",
		"STORAGE_BACKEND":         "S3",
		"STORAGE_MIRROR_BACKEND":  "gcs",
		"STORAGE_BUCKET":          "certs",
		"SPOOL_URL":               "spool/",
		"ASSETS_BASE_URL":         "https://cdn.example/assets/",
		"COLLAB_BASE_URL":         "https://collab.example/api/",
		"BEACON_QUEUE":            "16",
		"PUBLIC_BASE_URL":         "https://pledge.example/",
		"TIME_ZONE":               "UTC",
		"UPLOAD_RETRIES":          "-1",
		"COUNT_OFFSET":            "0",
		"CERT_RATE_BURST":         "7",
		"RATE_RPS":                "x",
		"CORS_ALLOWED_ORIGINS":    " https://pledge.example , , http://localhost:5173 ",
		"ENABLE_HSTS":             "TRUE",
		"IDEMPOTENCY_TTL":         "48h",
		"OTEL_ENABLED":            "1",
		"OTEL_TRACES_SAMPLER_ARG": "0.75",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	checks := []struct {
		name      string
		got, want any
	}{
		{"port", cfg.Port, "8088"},
		{"read timeout", cfg.ReadTimeout, 2 * time.Second},
		{"gin mode", cfg.GinMode, "release"},
		{"log level", cfg.LogLevel, "warn"},
		{"pretty", cfg.LogPretty, true},
		{"swagger", cfg.SwaggerEnabled, true},
		{"api base", cfg.APIBasePath, "/api/v2"},
		{"driver alias", cfg.DB.Driver, "postgres"},
		{"mirror dir", cfg.DB.MirrorDir, "/var/lib/pledge/mirror"},
		{"backend lowered", cfg.Storage.Backend, "s3"},
		{"mirror backend", cfg.Storage.MirrorBackend, "gcs"},
		{"spool url", cfg.Storage.SpoolURL, "/spool"},
		{"assets url trimmed", cfg.Assets.BaseURL, "https://cdn.example/assets"},
		{"collab trimmed", cfg.Collab.BaseURL, "https://collab.example/api"},
		{"beacon queue", cfg.Collab.BeaconQueue, 16},
		{"public base trimmed", cfg.Pipeline.PublicBaseURL, "https://pledge.example"},
		{"retries", cfg.Pipeline.UploadRetries, -1},
		{"offset", cfg.Pipeline.CountOffset, int64(0)},
		{"zone", cfg.Location(), time.UTC},
		{"cert burst", cfg.CertRateBurst, 7},
		{"bad RATE_RPS falls back", cfg.RateRPS, 5.0},
		{"cors", cfg.CORS.AllowedOrigins, []string{"https://pledge.example", "http://localhost:5173"}},
		{"hsts", cfg.Security.EnableHSTS, true},
		{"idempotency ttl", cfg.IdempotencyTTL, 48 * time.Hour},
		{"otel", cfg.OTEL.Enabled, true},
		{"otel ratio", cfg.OTEL.SampleRatio, 0.75},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %#v; want %#v", c.name, c.got, c.want)
		}
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		env     map[string]string
		wantErr string
	}{
		{map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{map[string]string{"DB_DSN": "   "}, "DB_DSN must not be empty"},
		{map[string]string{"STORAGE_BACKEND": "ftp"}, "STORAGE_BACKEND"},
		{map[string]string{"STORAGE_BACKEND": "s3"}, "STORAGE_BUCKET"},
		{map[string]string{"STORAGE_BACKEND": "gcs", "STORAGE_BUCKET": "b", "STORAGE_MIRROR_BACKEND": "ftp"}, "STORAGE_MIRROR_BACKEND"},
		{map[string]string{"STORAGE_MIRROR_BACKEND": "local"}, "must differ"},
		{map[string]string{"ASSETS_DIR": " "}, "ASSETS_DIR"},
		{map[string]string{"BEACON_QUEUE": "0"}, "BEACON_QUEUE"},
		{map[string]string{"TIME_ZONE": "Mars/Olympus"}, "TIME_ZONE"},
		{map[string]string{"SELFIE_QUALITY": "101"}, "SELFIE_QUALITY"},
		{map[string]string{"SELFIE_MAX_SIDE": "8"}, "SELFIE_MAX_SIDE"},
		{map[string]string{"COUNT_OFFSET": "-5"}, "COUNT_OFFSET"},
		{map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{map[string]string{"CERT_RATE_BURST": "0"}, "CERT_RATE_BURST"},
		{map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.wantErr, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v; want mention of %s", err, tc.wantErr)
			}
		})
	}

	t.Run("MustLoad panics", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		defer func() {
			if recover() == nil {
				t.Fatal("no panic")
			}
		}()
		MustLoad()
	})
}

func TestLookupHelpers(t *testing.T) {
	t.Setenv("T_DUR", "150ms")
	t.Setenv("T_BAD_DUR", "soon")
	t.Setenv("T_INT", "42")
	t.Setenv("T_FLOAT", "0.2")
	t.Setenv("T_EMPTY", "")
	t.Setenv("T_BOOL", " Off ")
	t.Setenv("T_BAD_BOOL", "maybe")

	if getdur("T_DUR", 0) != 150*time.Millisecond || getdur("T_BAD_DUR", time.Second) != time.Second {
		t.Fatal("getdur")
	}
	if getint("T_INT", 0) != 42 || getint("T_FLOAT", 7) != 7 {
		t.Fatal("getint")
	}
	if getfloat("T_FLOAT", 0) != 0.2 || getfloat("T_UNSET_FLOAT", 1.5) != 1.5 {
		t.Fatal("getfloat")
	}
	if getenv("T_EMPTY", "def") != "def" || getenv("T_INT", "def") != "42" {
		t.Fatal("getenv")
	}
	if getbool("T_BOOL", true) || !getbool("T_BAD_BOOL", true) {
		t.Fatal("getbool")
	}
	for _, v := range []string{"1", "TRUE", " yes ", "Y", "on"} {
		if b, err := parseBool(v); err != nil || !b {
			t.Errorf("parseBool(%q) = %v, %v", v, b, err)
		}
	}
}

func TestSplitCSVAndBasePath(t *testing.T) {
	if splitCSV("") != nil || splitCSV(" , ") != nil {
		t.Fatal("blank lists must be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
	for in, want := range map[string]string{
		"":          "/",
		" / ":       "/",
		"v1":        "/v1",
		"/api/v1/":  "/api/v1",
		"//files//": "/files",
	} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestLocation_FallsBackToUTC(t *testing.T) {
	cfg := Config{Pipeline: PipelineConfig{TimeZone: "Nowhere/Land"}}
	if cfg.Location() != time.UTC {
		t.Fatalf("Location = %v", cfg.Location())
	}
}
