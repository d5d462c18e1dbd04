// Package cli implements the indicators/archives/cache/config/exec
// command surface over the manager/store layers, using the same cobra
// persistent-flag idiom as before but a new command set; the previous
// lifelog commands and the MCP stdio server had no ESIOS analogue and
// were not carried over (see DESIGN.md).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datons/esios-go/internal/config"
	"github.com/datons/esios-go/internal/core"
	"github.com/datons/esios-go/internal/errs"
	"github.com/datons/esios-go/internal/logging"
)

var (
	v = viper.New()
	cfg *config.Config
	quiet bool
	logLevel string
)

var rootCmd = &cobra.Command{
	Use: "esios",
	Short: "Client and cache for the ESIOS electricity-market API",
	Version: core.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil // config get/set must work without a resolved API key
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		level := cfg.LogLevel
		if quiet {
			level = "error"
		}
		return logging.Init(level, false)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("api-key", "", "ESIOS API key (env "+core.APIKeyEnvVar+")")
	flags.String("cache-dir", "", "cache root directory")
	flags.String("timezone", "", "display timezone for output frames")
	flags.Int("chunk-days", 0, "server span cap in days")
	flags.BoolVar(&quiet, "quiet", false, "suppress non-error log output")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")

	v.BindPFlag("api_key", flags.Lookup("api-key"))
	v.BindPFlag("cache_dir", flags.Lookup("cache-dir"))
	v.BindPFlag("timezone", flags.Lookup("timezone"))
	v.BindPFlag("chunk_days", flags.Lookup("chunk-days"))
	v.BindPFlag("log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(indicatorsCmd(core.EndpointIndicators), indicatorsCmd(core.EndpointOfferIndicators),
		archivesCmd, cacheCmd, configCmd, execCmd)
}

// Execute runs the root command, matching cli.Execute()
// entrypoint contract.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps an error kind to a process exit code: 0 success,
// 1 user error, 2 network/auth error.
func exitCodeFor(err error) int {
	switch err.(type) {
	case *errs.UserInputError, *errs.ConfigError:
		return 1
	case *errs.AuthError, *errs.TransientTransportError, *errs.PermanentTransportError:
		return 2
	default:
		return 1
	}
}
