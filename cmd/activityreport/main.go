// Command activityreport classifies a user's GitLab or GitHub activity over a
// date range and renders it as a report.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/activityreport/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.NewViper()
	var verbose bool

	root := &cobra.Command{
		Use:   "activityreport",
		Short: "Classify and summarize your GitLab or GitHub activity",
		Long: `activityreport lists the push activity of the user owning the access token,
classifies every commit title into a category (bug fix, feature, improvement,
documentation, test, config or other) and renders a report.

Configuration is read from ACTIVITYREPORT_* environment variables, an optional
YAML file (--config) and the flags below, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("provider", "", "remote API: gitlab or github")
	flags.String("base-url", "", "API root of the instance")
	flags.String("cache-path", "", "response cache location")
	flags.String("cache-backend", "", "response cache backend: json or sqlite")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	bindFlags(v, root, map[string]string{
		config.KeyConfigFile:   "config",
		config.KeyProvider:     "provider",
		config.KeyBaseURL:      "base-url",
		config.KeyCachePath:    "cache-path",
		config.KeyCacheBackend: "cache-backend",
	})

	root.AddCommand(reportCmd(v))
	root.AddCommand(cacheCmd(v))
	root.AddCommand(serveCmd(v))
	return root
}

// bindFlags binds persistent flags of cmd to config keys.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
	}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
