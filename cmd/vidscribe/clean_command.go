package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/denoise"
	"github.com/chaz8081/vidscribe/internal/pipeline"
)

const (
	defaultVideoInput = "input_video.mov"
	defaultAudioOut   = "cleaned_audio.wav"
)

// cleanFlags override the extract, denoise and output sections of the config.
type cleanFlags struct {
	method   string
	stream   int
	bitDepth int
}

func (f *cleanFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.method, "method", "m", "", "Noise reduction method: "+methodNames()+" (default from config)")
	cmd.Flags().IntVar(&f.stream, "stream", -1, "ffprobe index of the audio stream to extract (default: first audio stream)")
	cmd.Flags().IntVar(&f.bitDepth, "bit-depth", 0, "PCM bit depth of the written WAV: 16, 24 or 32")
}

func (f *cleanFlags) apply(cmd *cobra.Command, ctx *commandContext) error {
	if m := strings.TrimSpace(f.method); m != "" {
		ctx.config.Denoise.Method = m
	}
	if cmd.Flags().Changed("stream") {
		ctx.config.Extract.AudioStream = f.stream
	}
	if f.bitDepth != 0 {
		ctx.config.Output.BitDepth = f.bitDepth
	}
	return ctx.config.Validate()
}

func methodNames() string {
	methods := denoise.Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var flags cleanFlags
	var output string

	cmd := &cobra.Command{
		Use:   "clean [video]",
		Short: "Extract the audio track of a video and remove background noise",
		Long: `Extract the audio track of a video, reduce its background noise and save it
as a WAV file at the track's native sample rate.

If noise reduction fails the original audio is saved and a warning is logged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, ctx); err != nil {
				return err
			}
			input := defaultVideoInput
			if len(args) == 1 {
				input = args[0]
			}

			res, err := ctx.cleaner().Run(cmd.Context(), input, output)
			if err != nil {
				return err
			}
			printCleanResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", defaultAudioOut, "Destination WAV file")
	return cmd
}

func printCleanResult(w io.Writer, res pipeline.CleanResult) {
	fmt.Fprintf(w, "Cleaned audio saved to %s\n", res.Output)
	fmt.Fprintf(w, "  Source:      %s\n", res.Input)
	fmt.Fprintf(w, "  Sample rate: %d Hz\n", res.SampleRate)
	fmt.Fprintf(w, "  Duration:    %s\n", res.Duration.Round(10*time.Millisecond))
	fmt.Fprintf(w, "  Level:       %s -> %s\n", dbfs(res.InputRMS), dbfs(res.OutputRMS))
	if res.FellBack {
		fmt.Fprintf(w, "  Method:      %s (failed; original audio kept)\n", res.Method)
	} else {
		fmt.Fprintf(w, "  Method:      %s\n", res.Method)
	}
}

// dbfs formats an RMS level in decibels relative to full scale.
func dbfs(rms float64) string {
	if rms <= 0 {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", 20*math.Log10(rms))
}
