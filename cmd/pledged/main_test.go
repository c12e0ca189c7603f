package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/client"
	"github.com/tbourn/go-pledge-backend/internal/config"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/pledgeid"
)

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	ctx := context.WithValue(context.Background(), ctxKey{}, runtimeEnv{
		cfg:    config.Config{Pipeline: config.PipelineConfig{TimeZone: "UTC"}},
		logger: zerolog.Nop(),
	})
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestPledgeIDCommand_NewAndCheck(t *testing.T) {
	out, err := run(t, pledgeIDCommand(), "new", "-n", "3")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ids := strings.Fields(out)
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %q", out)
	}
	for _, id := range ids {
		if !pledgeid.IsNewFormat(id) {
			t.Fatalf("malformed id %q", id)
		}
	}

	out, err = run(t, pledgeIDCommand(), append([]string{"check"}, ids...)...)
	if err != nil || strings.Count(out, "\tok\t") != 3 {
		t.Fatalf("check valid = %v %q", err, out)
	}

	out, err = run(t, pledgeIDCommand(), "check", ids[0], "AANIRBHA-2025-XXXX")
	if err == nil || !strings.Contains(out, "AANIRBHA-2025-XXXX\tinvalid") {
		t.Fatalf("check invalid = %v %q", err, out)
	}
}

func TestRenderCommand_PlainPDF(t *testing.T) {
	dir := t.TempDir()
	id, _ := pledgeid.New()

	out, err := run(t, renderCommand(),
		"--assets", t.TempDir(),
		"--out", dir,
		"--template", "plain",
		"--name", "Asha Verma",
		"--district", "Sikar",
		"--lang", "en",
		"--pledge-id", id,
	)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(out, id+" ") {
		t.Fatalf("expected the reused id in output, got %q", out)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "*.pdf"))
	if len(matches) != 1 {
		t.Fatalf("expected one pdf in %s, got %v", dir, matches)
	}
	b, err := os.ReadFile(matches[0])
	if err != nil || !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Fatalf("not a pdf: %v", err)
	}
}

func TestRenderCommand_Errors(t *testing.T) {
	if _, err := run(t, renderCommand(), "--template", "plain", "--out", t.TempDir()); err == nil || !strings.Contains(err.Error(), "--name") {
		t.Fatalf("expected missing name error, got %v", err)
	}
	if _, err := run(t, renderCommand(), "--name", "A", "--preset", "poster"); err == nil {
		t.Fatal("expected unknown preset error")
	}
	// The raster template needs default-format.jpg.
	if _, err := run(t, renderCommand(), "--name", "A", "--assets", t.TempDir(), "--out", t.TempDir()); !errors.Is(err, certificate.ErrTemplateUnavailable) {
		t.Fatalf("expected ErrTemplateUnavailable, got %v", err)
	}
}

func TestRenderCommand_UnwritableOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "c.pdf")
	_, err := run(t, renderCommand(), "--template", "plain", "--name", "A", "--assets", t.TempDir(), "--out", out)
	if err == nil || !strings.Contains(err.Error(), "deliver") {
		t.Fatalf("expected a delivery error, got %v", err)
	}
}

func TestFileDelivery(t *testing.T) {
	dir := t.TempDir()
	art := certificate.Artifact{FileName: "cert.pdf", Data: []byte("%PDF-1.4")}

	for name, tc := range map[string]struct{ out, want string }{
		"file":      {filepath.Join(dir, "named.pdf"), filepath.Join(dir, "named.pdf")},
		"directory": {dir, filepath.Join(dir, "cert.pdf")},
	} {
		d := &fileDelivery{out: tc.out}
		if err := d.Deliver(context.Background(), art); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if d.path != tc.want {
			t.Fatalf("%s: path = %q; want %q", name, d.path, tc.want)
		}
		if b, err := os.ReadFile(tc.want); err != nil || string(b) != "%PDF-1.4" {
			t.Fatalf("%s: read back %q, %v", name, b, err)
		}
	}

	t.Chdir(dir)
	d := &fileDelivery{}
	if err := d.Deliver(context.Background(), certificate.Artifact{FileName: "here.png", Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "here.png")); err != nil || d.path != "here.png" {
		t.Fatalf("default path %q: %v", d.path, err)
	}
}

func TestRenderFlags_Options(t *testing.T) {
	opts, err := renderFlags{preset: "print"}.options()
	if err != nil || opts != certificate.PrintPreset {
		t.Fatalf("print preset = %+v, %v", opts, err)
	}
	opts, err = renderFlags{preset: "social", format: "png"}.options()
	if err != nil || opts.Format != certificate.FormatPNG || opts.Scale != certificate.SocialPreset.Scale {
		t.Fatalf("format override = %+v, %v", opts, err)
	}
	if _, err := (renderFlags{template: "poster"}).options(); err == nil {
		t.Fatal("expected unknown template error")
	}
	if _, err := (renderFlags{format: "gif"}).options(); !errors.Is(err, certificate.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestAssetSource(t *testing.T) {
	cfg := config.Config{Assets: config.AssetsConfig{Dir: "assets"}}
	if _, ok := assetSource(cfg).(certificate.DirAssets); !ok {
		t.Fatalf("expected DirAssets without a base URL")
	}
	cfg.Assets.BaseURL = "https://cdn.example"
	if _, ok := assetSource(cfg).(*certificate.HTTPAssets); !ok {
		t.Fatalf("expected HTTPAssets with a base URL")
	}
}

func TestApp_CloseReverseOrder(t *testing.T) {
	var order []int
	a := &app{}
	for i := 0; i < 3; i++ {
		i := i
		a.closers = append(a.closers, func() error {
			order = append(order, i)
			if i == 1 {
				return errors.New("boom")
			}
			return nil
		})
	}
	if err := a.Close(); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(order) != 3 || order[0] != 2 || order[2] != 0 {
		t.Fatalf("close order = %v", order)
	}
}

func TestNewApp_LocalStack(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		DB:      config.DBConfig{Driver: "sqlite", DSN: filepath.Join(dir, "pledges.db"), MirrorDir: filepath.Join(dir, "mirror")},
		Storage: config.StorageConfig{Backend: "local", SpoolDir: filepath.Join(dir, "spool"), SpoolURL: "/files"},
		Assets:  config.AssetsConfig{Dir: dir},
		Collab:  config.CollabConfig{BaseURL: "http://127.0.0.1:1", BeaconQueue: 4},
		Pipeline: config.PipelineConfig{
			PublicBaseURL: "http://localhost:8080",
			TimeZone:      "UTC",
		},
	}
	a, err := newApp(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	if a.mirror == nil || a.certs.Store == nil || a.certs.Store.Name() != "local" || a.sessions == nil {
		t.Fatalf("unexpected wiring: %+v", a)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestApp_ShutdownDrainsBeaconIntoLiveServer(t *testing.T) {
	var got atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/pledges", func(w http.ResponseWriter, r *http.Request) {
		got.Add(1)
		_, _ = io.WriteString(w, `{"ok":true,"saved":1}`)
	})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: time.Second}
	go func() { _ = srv.Serve(ln) }()

	api := client.New("http://" + ln.Addr().String() + "/api/v1")
	a := &app{beacon: client.NewBeacon(api, 8, 2*time.Second)}
	for i := 0; i < 3; i++ {
		if !a.beacon.Enqueue(client.PathPledges, domain.PledgeUpsert{PledgeID: "AANIRBHA-2025-ABCDEF-1"}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx, srv); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if n := got.Load(); n != 3 {
		t.Fatalf("server received %d queued pledges before stopping; want 3", n)
	}
}
