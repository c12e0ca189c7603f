package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-pledge-backend/internal/certificate"
	"github.com/tbourn/go-pledge-backend/internal/domain"
	"github.com/tbourn/go-pledge-backend/internal/exif"
	"github.com/tbourn/go-pledge-backend/internal/localize"
	"github.com/tbourn/go-pledge-backend/internal/pledgeid"
)

type renderFlags struct {
	assets   string
	out      string
	pledgeID string
	lang     string
	selfie   string
	preset   string
	template string
	format   string
	form     domain.PledgeForm
}

func renderCommand() *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Compose a certificate offline from a local assets directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env := envFrom(cmd)
			if f.assets == "" {
				f.assets = env.cfg.Assets.Dir
			}
			opts, err := f.options()
			if err != nil {
				return err
			}
			id, _, err := pledgeid.Generator{}.Ensure(f.pledgeID)
			if err != nil {
				return err
			}

			req := certificate.Request{
				PledgeID: id,
				Form:     f.form.Trimmed(),
				Lang:     localize.ParseLang(f.lang),
			}
			if req.Form.Name == "" {
				return fmt.Errorf("--name is required")
			}
			if f.selfie != "" {
				b, err := os.ReadFile(f.selfie)
				if err != nil {
					return fmt.Errorf("read selfie: %w", err)
				}
				req.Selfie = exif.NewCorrector(env.logger).Correct(b).Data
			}

			gen := certificate.NewGenerator(certificate.DirAssets{Dir: f.assets}, env.cfg.Location(), env.logger)
			fd := &fileDelivery{out: f.out}
			art, err := gen.GenerateAndDeliver(cmd.Context(), req, opts, fd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d bytes)\n", id, fd.path, len(art.Data))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.assets, "assets", "", "templates and fonts directory (default ASSETS_DIR)")
	fl.StringVarP(&f.out, "out", "o", "", "output file or directory (default: the certificate file name)")
	fl.StringVar(&f.pledgeID, "pledge-id", "", "reuse a pledge id instead of issuing one")
	fl.StringVar(&f.lang, "lang", "hi", "certificate language (en|hi)")
	fl.StringVar(&f.selfie, "selfie", "", "selfie image file")
	fl.StringVar(&f.preset, "preset", "", "social|high|print")
	fl.StringVar(&f.template, "template", "", "raster|document|plain")
	fl.StringVar(&f.format, "format", "", "png|jpeg|pdf")
	fl.StringVar(&f.form.Name, "name", "", "pledger name")
	fl.StringVar(&f.form.District, "district", "", "district")
	fl.StringVar(&f.form.Constituency, "constituency", "", "assembly constituency")
	fl.StringVar(&f.form.Village, "village", "", "village")
	fl.StringVar(&f.form.Profession, "profession", "", "profession")
	fl.StringVar(&f.form.Gender, "gender", "", "gender")
	fl.StringVar(&f.form.Mobile, "mobile", "", "mobile number")
	return cmd
}

// fileDelivery writes the artifact to out. An empty out means the artifact's
// file name in the working directory; a directory gets the file name joined.
type fileDelivery struct {
	out  string
	path string
}

func (d *fileDelivery) Deliver(_ context.Context, a certificate.Artifact) error {
	d.path = d.out
	if d.path == "" {
		d.path = a.FileName
	} else if st, err := os.Stat(d.path); err == nil && st.IsDir() {
		d.path = filepath.Join(d.path, a.FileName)
	}
	return os.WriteFile(d.path, a.Data, 0o644)
}

// options applies --template and --format over --preset.
func (f renderFlags) options() (certificate.Options, error) {
	var opts certificate.Options
	if f.preset != "" {
		p, ok := certificate.Preset(f.preset)
		if !ok {
			return opts, fmt.Errorf("unknown preset %q", f.preset)
		}
		opts = p
	}
	if f.template != "" {
		k, err := certificate.ParseKind(f.template)
		if err != nil {
			return opts, err
		}
		opts.Template = k
	}
	if f.format != "" {
		ff, err := certificate.ParseFormat(f.format)
		if err != nil {
			return opts, err
		}
		opts.Format = ff
	}
	return opts, nil
}
