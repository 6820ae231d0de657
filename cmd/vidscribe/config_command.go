package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chaz8081/vidscribe/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "init",
		Short:       "Write the default configuration to ~/.config/vidscribe/config.yaml",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if path == "" {
				fmt.Fprintf(out, "Config file already exists at %s\n", config.DefaultConfigPath())
				return nil
			}
			fmt.Fprintf(out, "Wrote default configuration to %s\n", path)
			fmt.Fprintln(out, "Set OPENAI_API_KEY (or transcribe.openai.api_key) to use the openai backend.")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *ctx.config
			if cfg.Transcribe.OpenAI.APIKey != "" {
				cfg.Transcribe.OpenAI.APIKey = "********"
			}
			data, err := yaml.Marshal(&cfg)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
