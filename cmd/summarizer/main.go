package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=..."
var version = "dev"

const serviceName = "meeting-summarizer"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "summarizer",
		Short: "Transcribe and summarize meeting recordings",
		Long: `Transcribe meeting recordings and produce a structured summary with
decisions and action items.

Configuration comes from the environment (and a .env file if present).
Providers are selected with TRANSCRIPTION_PROVIDER (deepgram, whisper) and
SUMMARIZATION_PROVIDER (openai, gemini).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for output files (overrides OUTPUT_DIR)")
	root.PersistentFlags().StringVarP(&opts.formats, "formats", "f", "", "Comma separated output formats: markdown, json, yaml, docx (overrides OUTPUT_FORMATS)")

	root.AddCommand(newRunCommand(opts), newWatchCommand(opts), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", serviceName, version)
		},
	}
}
