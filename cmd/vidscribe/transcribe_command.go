package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/pipeline"
	"github.com/chaz8081/vidscribe/internal/transcribe"
)

// backendFlags override the transcribe section of the config.
type backendFlags struct {
	backend   string
	model     string
	modelPath string
	language  string
}

func (f *backendFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.backend, "backend", "b", "", "Transcription backend: whisper, seq2seq or openai")
	cmd.Flags().StringVar(&f.model, "model", "", "Model name, e.g. base.en (see 'vidscribe models list')")
	cmd.Flags().StringVar(&f.modelPath, "model-path", "", "Path to a ggml model file (overrides --model)")
	cmd.Flags().StringVarP(&f.language, "language", "l", "", "Spoken language code, or auto")
}

func (f *backendFlags) apply(ctx *commandContext) error {
	t := &ctx.config.Transcribe
	if v := strings.TrimSpace(f.backend); v != "" {
		t.Backend = v
	}
	if v := strings.TrimSpace(f.model); v != "" {
		t.Model = v
		t.ModelPath = ""
	}
	if v := strings.TrimSpace(f.modelPath); v != "" {
		t.ModelPath = v
	}
	if v := strings.TrimSpace(f.language); v != "" {
		t.Language = v
	}
	return ctx.config.Validate()
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags backendFlags
	var output, reference string

	cmd := &cobra.Command{
		Use:   "transcribe <audio>",
		Short: "Transcribe speech in an audio file",
		Long: `Transcribe speech in an audio (or video) file. The input is converted to
16 kHz mono first. The transcript is printed unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(ctx); err != nil {
				return err
			}
			var refText string
			if reference != "" {
				data, err := os.ReadFile(reference)
				if err != nil {
					return fmt.Errorf("read reference: %w", err)
				}
				refText = string(data)
			}

			tr, err := ctx.transcriber(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			res, err := pipeline.NewTranscription(ctx.extractor(), tr, ctx.logger).Run(cmd.Context(), args[0], output)
			if err != nil {
				return err
			}
			printTranscript(cmd.OutOrStdout(), res)
			if reference != "" {
				printWER(cmd.OutOrStdout(), transcribe.ComputeWER(refText, res.Text))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the transcript to this file")
	cmd.Flags().StringVar(&reference, "reference", "", "Reference transcript file; prints the word error rate")
	return cmd
}

func printTranscript(w io.Writer, res pipeline.TranscriptResult) {
	if res.Output != "" {
		fmt.Fprintf(w, "Transcript saved to %s\n", res.Output)
		return
	}
	if res.Text == "" {
		fmt.Fprintln(w, "(no speech detected)")
		return
	}
	fmt.Fprintln(w, res.Text)
}

func printWER(w io.Writer, r transcribe.WERResult) {
	fmt.Fprintf(w, "WER: %.2f%% (%d substitutions, %d insertions, %d deletions over %d words)\n",
		r.WER*100, r.Substitutions, r.Insertions, r.Deletions, r.RefWords)
}
