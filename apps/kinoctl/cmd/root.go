package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/quatton/kino/pkg/klog"
	"github.com/quatton/kino/pkg/ksdk"
	"github.com/spf13/cobra"
)

type contextKey string

const configContextKey contextKey = "kinoconfig"

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "kinoctl",
		Short: "CLI for the kino render service (auth, renders, health)",
		Long: `kinoctl talks to a running kino render service. Log in with the auth
subcommands, queue an animation with render, then follow it with status, list
your jobs with jobs, and check the service with health.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ksdk.LoadConfig(cfgFile)
			if err != nil {
				return err
			}

			// Flags win over config files and KINO_* variables.
			v := cfg.Viper()
			for flag, key := range map[string]string{"base-url": ksdk.BaseUrlKey, "log-level": ksdk.LogLevelKey} {
				if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
					v.Set(key, f.Value.String())
				}
			}
			if err := cfg.Reload(); err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)

			return nil
		},
	}
)

// GetConfig retrieves the Config from the command context
func GetConfig(cmd *cobra.Command) (*ksdk.Config, error) {
	ctx := cmd.Context()
	cfg, ok := ctx.Value(configContextKey).(*ksdk.Config)
	if !ok {
		return nil, errors.New("no config in context")
	}
	return cfg, nil
}

// newSdk builds an Sdk from the command's config. Callers must Close it.
func newSdk(cmd *cobra.Command) (*ksdk.Sdk, error) {
	cfg, err := GetConfig(cmd)
	if err != nil {
		return nil, err
	}
	return ksdk.NewSdk(cfg, ksdk.WithSdkLogger(newLogger(cfg)))
}

func newLogger(cfg *ksdk.Config) *klog.Logger {
	level, err := klog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return klog.NewQuiet()
	}
	return klog.NewLogger(level, os.Stderr)
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		exitIfSdkError(err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML). Defaults to kino.yaml with .kino/config.yaml merged over it")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL of the render service (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
}
