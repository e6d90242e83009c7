package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mediamirror/mediamirror/internal/config"
	"github.com/mediamirror/mediamirror/internal/encode"
	"github.com/mediamirror/mediamirror/internal/event"
	"github.com/mediamirror/mediamirror/internal/filter"
	"github.com/mediamirror/mediamirror/internal/mirror"
	"github.com/mediamirror/mediamirror/internal/stats"
	"github.com/mediamirror/mediamirror/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run())
}

// excludeFlag is a custom pflag.Value that appends repeatable --exclude
// patterns to a shared filter.Chain, preserving CLI ordering.
type excludeFlag struct {
	chain *filter.Chain
}

var _ pflag.Value = (*excludeFlag)(nil)

func (*excludeFlag) String() string { return "" }
func (*excludeFlag) Type() string   { return "pattern" }

func (f *excludeFlag) Set(val string) error {
	return f.chain.Add(val)
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: main CLI entry point orchestrates all flag parsing
func run() int {
	var (
		maxDimension int
		acceptRatio  float64
		quality      int
		ffmpegPath   string
		magickPath   string
		noHWAccel    bool
		verifyFlag   bool
		dryRun       bool
		verbose      bool
		quiet        bool
		showVersion  bool
		logFile      string
	)

	chain := filter.NewChain()

	rootCmd := &cobra.Command{
		Use:   "mediamirror [flags] <source> <destination>",
		Short: "Mirror a media tree, shrinking large photos and videos on the way",
		Long: `Mediamirror walks a source tree and builds a destination mirror in which
images are resized and videos are re-encoded whenever that shrinks them
enough to be worth the quality loss, and everything else is copied
verbatim. Source timestamps are preserved and every output is committed
atomically, so an interrupted run can simply be re-run.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "mediamirror %s\n", version)
				return nil
			}

			source, dest := args[0], args[1]

			// Load optional config file and apply its defaults for flags
			// not explicitly set on the CLI.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults, configTargets{
				maxDimension: &maxDimension,
				acceptRatio:  &acceptRatio,
				quality:      &quality,
				ffmpeg:       &ffmpegPath,
				magick:       &magickPath,
				noHWAccel:    &noHWAccel,
				verify:       &verifyFlag,
			})
			if !cmd.Flags().Changed("exclude") {
				for _, p := range cfg.Defaults.Exclude {
					if err := chain.Add(p); err != nil {
						return fmt.Errorf("config exclude: %w", err)
					}
				}
			}

			if maxDimension <= 0 {
				return fmt.Errorf("--max-dimension must be positive, got %d", maxDimension)
			}
			if acceptRatio <= 0 || acceptRatio > 1 {
				return fmt.Errorf("--accept-ratio must be in (0, 1], got %g", acceptRatio)
			}

			// Configure logging.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("open log file: %w", lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			slog.SetDefault(slog.New(logHandler))

			if dryRun {
				slog.Info("dry run mode")
			}

			// A missing encoder binary downgrades that media kind to
			// verbatim copies rather than failing the whole run.
			var images mirror.ImageEncoder
			if path, lerr := exec.LookPath(magickPath); lerr == nil {
				images = encode.NewImage(path, maxDimension)
			} else {
				slog.Warn("image encoder not found, images will be copied", "binary", magickPath)
			}
			var videos mirror.VideoEncoder
			if path, lerr := exec.LookPath(ffmpegPath); lerr == nil {
				videos = encode.NewVideo(path, maxDimension, quality)
			} else {
				slog.Warn("video encoder not found, videos will be copied", "binary", ffmpegPath)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)

			// When --log is set, tee events through a logging goroutine
			// that writes structured records before forwarding to the presenter.
			presenterEvents := (<-chan event.Event)(events)
			if logFile != "" {
				teed := make(chan event.Event, 256)
				go func() {
					for ev := range events {
						attrs := []slog.Attr{
							slog.String("type", ev.Type.String()),
							slog.String("path", ev.Path),
							slog.String("kind", ev.Kind.String()),
							slog.Int64("orig_size", ev.OrigSize),
							slog.Int64("new_size", ev.NewSize),
						}
						if ev.Reason != event.CopyNone {
							attrs = append(attrs, slog.String("reason", ev.Reason.String()))
						}
						if ev.Err != nil {
							attrs = append(attrs, slog.String("error", ev.Err.Error()))
						}
						slog.LogAttrs(context.Background(), slog.LevelInfo, "mirror.event", attrs...)
						teed <- ev
					}
					close(teed)
				}()
				presenterEvents = teed
			}

			presenter := ui.NewPresenter(ui.Config{
				Writer:    os.Stdout,
				ErrWriter: os.Stderr,
				Stats:     collector,
				IsTTY:     ui.IsTTY(os.Stderr.Fd()),
				Quiet:     quiet,
				Verbose:   verbose,
				DryRun:    dryRun,
			})

			mirrorCfg := mirror.Config{
				Source:      source,
				Dest:        dest,
				Images:      images,
				Videos:      videos,
				AcceptRatio: acceptRatio,
				UseHWAccel:  !noHWAccel,
				Verify:      verifyFlag,
				DryRun:      dryRun,
				Events:      events,
				Stats:       collector,
			}
			if !chain.Empty() {
				mirrorCfg.Excludes = chain
			}

			slog.Debug("starting mirror",
				"source", source,
				"dest", dest,
				"max_dimension", maxDimension,
				"accept_ratio", acceptRatio,
				"hwaccel", !noHWAccel,
			)

			var presenterErr error
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				presenterErr = presenter.Run(presenterEvents)
			}()

			result := mirror.Run(ctx, mirrorCfg)
			stop()
			close(events)
			wg.Wait()
			if presenterErr != nil {
				fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
			}

			if !quiet {
				if summary := presenter.Summary(); summary != "" {
					fmt.Fprintln(os.Stderr, summary)
				}
			}

			if result.Err != nil {
				if errors.Is(result.Err, context.Canceled) {
					slog.Error("mirror interrupted", "error", result.Err)
				} else {
					slog.Error("mirror failed", "error", result.Err)
				}
				if result.Stats.FilesProcessed > 0 {
					return &exitError{code: 1} // partial run
				}
				return &exitError{code: 2}
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		IntVar(&maxDimension, "max-dimension", 1920, "longest edge in pixels for resized media")
	rootCmd.Flags().
		Float64Var(&acceptRatio, "accept-ratio", mirror.DefaultAcceptRatio, "keep a conversion only if new/original size is at most this ratio")
	rootCmd.Flags().
		IntVar(&quality, "quality", 28, "video encoder quality (CRF/CQ, lower is better)")
	rootCmd.Flags().StringVar(&ffmpegPath, "ffmpeg", "ffmpeg", "ffmpeg binary")
	rootCmd.Flags().StringVar(&magickPath, "magick", "magick", "ImageMagick binary")
	rootCmd.Flags().
		BoolVar(&noHWAccel, "no-hwaccel", false, "skip the hardware video tier, encode in software only")
	rootCmd.Flags().
		Var(&excludeFlag{chain: chain}, "exclude", "exclude files matching PATTERN (repeatable)")
	rootCmd.Flags().BoolVar(&verifyFlag, "verify", false, "verify checksums of verbatim copies (BLAKE3)")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without writing")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(docsCmd)

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

// configTargets collects the flag variables that config defaults can fill.
type configTargets struct {
	maxDimension *int
	acceptRatio  *float64
	quality      *int
	ffmpeg       *string
	magick       *string
	noHWAccel    *bool
	verify       *bool
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(cmd *cobra.Command, defaults config.DefaultsConfig, t configTargets) {
	if !cmd.Flags().Changed("max-dimension") && defaults.MaxDimension != nil {
		*t.maxDimension = *defaults.MaxDimension
	}
	if !cmd.Flags().Changed("accept-ratio") && defaults.AcceptRatio != nil {
		*t.acceptRatio = *defaults.AcceptRatio
	}
	if !cmd.Flags().Changed("quality") && defaults.Quality != nil {
		*t.quality = *defaults.Quality
	}
	if !cmd.Flags().Changed("ffmpeg") && defaults.FFmpeg != nil {
		*t.ffmpeg = *defaults.FFmpeg
	}
	if !cmd.Flags().Changed("magick") && defaults.Magick != nil {
		*t.magick = *defaults.Magick
	}
	if !cmd.Flags().Changed("no-hwaccel") && defaults.NoHWAccel != nil {
		*t.noHWAccel = *defaults.NoHWAccel
	}
	if !cmd.Flags().Changed("verify") && defaults.Verify != nil {
		*t.verify = *defaults.Verify
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
