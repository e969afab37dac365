package main

import (
	"github.com/spf13/cobra"
)

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Summarize one recording",
		Long: `Transcribe and summarize one recording, writing the transcript and the
summary files to the output directory.

WAV files are read directly; other formats (mp3, m4a, ogg, flac, webm, mp4...)
are converted with ffmpeg first.

Examples:
  summarizer run ./standup.m4a
  summarizer run ./standup.wav --formats markdown,docx -o ./notes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return a.process(cmd.Context(), args[0])
		},
	}
}
