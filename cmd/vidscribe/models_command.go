package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/models"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Manage whisper models",
	}
	modelsCmd.AddCommand(newModelsListCommand(ctx))
	modelsCmd.AddCommand(newModelsDownloadCommand(ctx))
	return modelsCmd
}

func newModelsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known models and whether they are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ctx.config.Transcribe.ModelsDir
			rows := [][]string{}
			for _, s := range models.List(dir) {
				size := fmt.Sprintf("~%d MB", s.SizeMB)
				if s.Installed {
					size = humanize.Bytes(uint64(s.Size))
				}
				rows = append(rows, []string{s.Name, size, yesNo(s.Multilingual), yesNo(s.Installed)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Models directory: %s\n", dir)
			fmt.Fprintln(out, renderTable(
				[]string{"Name", "Size", "Multilingual", "Installed"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newModelsDownloadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "download <name>...",
		Short: "Download one or more models",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dl := models.NewDownloader(ctx.logger, cmd.ErrOrStderr())
			for _, name := range args {
				path, err := dl.Download(cmd.Context(), name, ctx.config.Transcribe.ModelsDir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, path)
			}
			return nil
		},
	}
}
