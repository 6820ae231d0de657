package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chaz8081/vidscribe/internal/media"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "List the streams of a media file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := ctx.extractor().Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), renderProbe(args[0], res))
			return nil
		},
	}
}

func renderProbe(path string, res media.ProbeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", path)
	if name := res.Format.FormatName; name != "" {
		fmt.Fprintf(&b, "  Container: %s\n", name)
	}
	if d := res.DurationSeconds(); d > 0 {
		fmt.Fprintf(&b, "  Duration:  %s\n", time.Duration(d*float64(time.Second)).Round(time.Millisecond))
	}
	if size, err := strconv.ParseUint(res.Format.Size, 10, 64); err == nil {
		fmt.Fprintf(&b, "  Size:      %s\n", humanize.Bytes(size))
	}

	rows := make([][]string, 0, len(res.Streams))
	for _, s := range res.Streams {
		detail := ""
		switch {
		case s.IsAudio():
			detail = fmt.Sprintf("%d Hz, %d ch", s.SampleRateHz(), s.Channels)
		case s.Width > 0:
			detail = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		rows = append(rows, []string{
			strconv.Itoa(s.Index),
			s.CodecType,
			s.CodecName,
			detail,
			s.Tags.Language,
		})
	}
	b.WriteString(renderTable(
		[]string{"#", "Type", "Codec", "Detail", "Lang"},
		rows,
		[]columnAlignment{alignRight},
	))
	b.WriteString("\n")
	if len(res.AudioStreams()) == 0 {
		b.WriteString("No audio track: clean and run will fail on this file.\n")
	}
	return b.String()
}
