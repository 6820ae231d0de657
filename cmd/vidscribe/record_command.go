package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/audio"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	var duration time.Duration
	var output string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record from the default microphone into a WAV file",
		Long: `Record from the default microphone for --duration (or until interrupted)
and save mono audio at the configured sample rate, ready for transcribe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive, got %s", duration)
			}
			rec, err := audio.NewRecorder(ctx.config.Audio.SampleRate, ctx.config.Audio.Channels)
			if err != nil {
				return fmt.Errorf("%w (check microphone permissions)", err)
			}
			defer func() { _ = rec.Close() }()

			ctx.logger.Info("recording", "duration", duration, "sample_rate", ctx.config.Audio.SampleRate)
			buf, err := rec.Record(cmd.Context(), duration)
			if err != nil {
				return err
			}
			if n := rec.Dropped(); n > 0 {
				ctx.logger.Warn("capture fell behind; frames dropped", "frames", n)
			}
			if buf.IsEmpty() {
				return fmt.Errorf("no audio captured")
			}
			if err := audio.WriteWAV(output, buf, ctx.config.Output.BitDepth); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s to %s\n", buf.Duration().Round(10*time.Millisecond), output)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&duration, "duration", "d", 10*time.Second, "Recording length")
	cmd.Flags().StringVarP(&output, "output", "o", "recording.wav", "Destination WAV file")
	return cmd
}
