package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "replaycast",
		Short:        "Replay transcripts into shared state at a fixed cadence",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("config", "replaycast.yaml", "Config file (YAML); optional unless set explicitly")
	root.PersistentFlags().Bool("quiet", false, "Only print dispatched segments and notices")

	play := &cobra.Command{
		Use:   "play <media-file>",
		Short: "Transcribe a local MP4 or audio file and replay its segments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args[0])
		},
	}
	play.Flags().Duration("interval", 0, "Dispatch interval (default from config, 20s)")
	play.Flags().Bool("no-playback", false, "Do not open the muted preview player")

	lookup := &cobra.Command{
		Use:   "lookup [video-url-or-id]",
		Short: "Fetch a transcript by video reference and replay it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			return runLookup(cmd, ref)
		},
	}
	lookup.Flags().Duration("interval", 0, "Dispatch interval (default from config, 20s)")
	lookup.Flags().Bool("clipboard", false, "Read the video reference from the clipboard")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the transcription server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}
	serve.Flags().String("addr", "", "Listen address (default from config, 127.0.0.1:8000)")

	root.AddCommand(play, lookup, serve)
	return root
}
