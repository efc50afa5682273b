package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tracklistify/internal/config"
)

func newConfigCommand(opts *rootOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(opts))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetDefaultConfigPath()

			if !overwrite {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", path)
				}
			}

			if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
				return fmt.Errorf("failed to create config file: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created default config file at: %s\n", path)
			fmt.Fprintln(out, "Set your ACRCloud or AudD credentials there, or export")
			fmt.Fprintln(out, "ACR_ACCESS_KEY / ACR_ACCESS_SECRET / AUDD_API_TOKEN instead.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// Credentials stay out of the terminal.
			cfg.ACRCloud.AccessSecret = mask(cfg.ACRCloud.AccessSecret)
			cfg.AudD.APIToken = mask(cfg.AudD.APIToken)
			cfg.Spotify.ClientSecret = mask(cfg.Spotify.ClientSecret)

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}

			if path := config.FindConfigFile(); path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", path)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
