package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cardsync/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set catalog.path and timeline.channel (or export CARDSYNC_CATALOG_PATH and CARDSYNC_CHANNEL) before running cardsync.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(ctx.flagPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			if err := cfg.ValidateCatalog(); err != nil {
				fmt.Fprintf(out, "Warning: %v\n", err)
			} else if _, err := os.Stat(cfg.Catalog.Path); err != nil {
				fmt.Fprintf(out, "Warning: catalog %s is not readable: %v\n", cfg.Catalog.Path, err)
			}
			fmt.Fprintf(out, "Timeline: %s\n", describeTimeline(cfg))
			fmt.Fprintf(out, "Cache: %s\n", describeCache(cfg))
			fmt.Fprintf(out, "Provisional fallback: %s\n", yesNo(cfg.Reconcile.Fallback))
			fmt.Fprintf(out, "Media matching: %s\n", yesNo(cfg.Matching.MediaEnabled))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func describeTimeline(cfg *config.Config) string {
	switch cfg.Timeline.Source {
	case "feed":
		return "feed " + cfg.Timeline.FeedURL
	case "export":
		return "export " + cfg.Timeline.ExportPath
	default:
		return "preview @" + cfg.Timeline.Channel
	}
}

func describeCache(cfg *config.Config) string {
	if cfg.Cache.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite " + filepath.Clean(cfg.Cache.Path)
}
