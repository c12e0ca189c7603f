// Command pledged serves the pledge certificate API and offers offline
// helpers for rendering certificates and issuing pledge ids.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-pledge-backend/internal/config"
	"github.com/tbourn/go-pledge-backend/internal/sysutil"
)

const programName = "pledged"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var globalFlags = struct {
	envFile string
	debug   bool
}{}

type ctxKey struct{}

type runtimeEnv struct {
	cfg    config.Config
	logger zerolog.Logger
}

func envFrom(cmd *cobra.Command) runtimeEnv {
	v, _ := cmd.Context().Value(ctxKey{}).(runtimeEnv)
	return v
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Pledge certificate service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&globalFlags.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// A missing .env is normal outside development.
		if err := godotenv.Load(globalFlags.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", globalFlags.envFile, err)
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		if globalFlags.debug {
			cfg.LogLevel = "debug"
		}
		lg := sysutil.InitLogging(os.Stdout, cfg.LogLevel, cfg.LogPretty, programName)
		cmd.SetContext(context.WithValue(cmd.Context(), ctxKey{}, runtimeEnv{cfg: cfg, logger: lg}))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(renderCommand())
	rootCmd.AddCommand(pledgeIDCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
