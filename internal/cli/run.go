package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/forPelevin/replaycast/internal/config"
	"github.com/forPelevin/replaycast/internal/pipeline"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if d, _ := cmd.Flags().GetDuration("interval"); cmd.Flags().Changed("interval") {
		cfg.Interval = d
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func logger(cmd *cobra.Command) func(format string, args ...any) {
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		return func(string, ...any) {}
	}
	errOut := cmd.ErrOrStderr()
	return func(format string, args ...any) {
		fmt.Fprintf(errOut, format+"\n", args...)
	}
}

func replayConfig(cmd *cobra.Command, cfg *config.Config) pipeline.Config {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	return pipeline.Config{
		Interval:       cfg.Interval,
		RequestTimeout: cfg.RequestTimeout,
		Accepted:       cfg.AcceptedTypes,
		BaseURL:        cfg.BaseURL,
		AllowedHosts:   cfg.AllowedHosts,
		APIKey:         cfg.APIKey,
		Playback:       cfg.Playback,
		FFplayPath:     cfg.Tools.FFplay,
		Logf:           logger(cmd),
		Notify:         func(msg string) { fmt.Fprintln(errOut, "» "+msg) },
		OnText:         func(n int, text string) { fmt.Fprintf(out, "[%d] %s\n", n, text) },
	}
}

func runPlay(cmd *cobra.Command, input string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	absIn, err := filepath.Abs(input)
	if err != nil {
		return err
	}

	rc := replayConfig(cmd, cfg)
	rc.InputFile = absIn
	if noPlayback, _ := cmd.Flags().GetBool("no-playback"); noPlayback {
		rc.Playback = false
	}
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return pipeline.Run(ctx, rc)
}

func runLookup(cmd *cobra.Command, ref string) error {
	if useClipboard, _ := cmd.Flags().GetBool("clipboard"); useClipboard {
		if ref != "" {
			return errors.New("give a video reference or --clipboard, not both")
		}
		text, err := clipboard.ReadAll()
		if err != nil {
			return fmt.Errorf("read clipboard: %w", err)
		}
		ref = text
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.New("video reference is required")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rc := replayConfig(cmd, cfg)
	rc.Reference = ref
	if err := rc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return pipeline.Run(ctx, rc)
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}

	sc := pipeline.ServerConfig{
		Addr:           addr,
		MaxDuration:    cfg.Server.MaxDuration,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Accepted:       cfg.AcceptedTypes,
		TempDir:        cfg.Server.TempDir,
		FFmpegPath:     cfg.Tools.FFmpeg,
		FFprobePath:    cfg.Tools.FFprobe,
		YtDlpPath:      cfg.Tools.YtDlp,
		WhisperBin:     cfg.Tools.WhisperBin,
		WhisperModel:   cfg.Tools.WhisperModel,
		Logf:           logger(cmd),
	}
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return pipeline.RunServer(ctx, sc)
}
