package main

import (
	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var clean cleanFlags
	var backend backendFlags
	var audioOut, output string

	cmd := &cobra.Command{
		Use:   "run [video]",
		Short: "Clean the audio of a video and transcribe it",
		Long: `Run clean and transcribe back to back: the cleaned audio is written to
--audio-out and then transcribed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clean.apply(cmd, ctx); err != nil {
				return err
			}
			if err := backend.apply(ctx); err != nil {
				return err
			}
			input := defaultVideoInput
			if len(args) == 1 {
				input = args[0]
			}

			// Load the model first so a missing model fails before the slow part.
			tr, err := ctx.transcriber(cmd, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()

			transcription := pipeline.NewTranscription(ctx.extractor(), tr, ctx.logger)
			res, err := pipeline.Run(cmd.Context(), ctx.cleaner(), transcription, input, audioOut, output)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printCleanResult(out, res.Clean)
			printTranscript(out, res.Transcript)
			return nil
		},
	}

	clean.register(cmd)
	backend.register(cmd)
	cmd.Flags().StringVar(&audioOut, "audio-out", defaultAudioOut, "Destination of the cleaned WAV file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the transcript to this file")
	return cmd
}
