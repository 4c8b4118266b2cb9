package main

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noelforte/mkhls/pkg/config"
	"github.com/noelforte/mkhls/pkg/errors"
	"github.com/noelforte/mkhls/pkg/logger"
	"github.com/noelforte/mkhls/pkg/progress"
	"github.com/noelforte/mkhls/pkg/transcoder"
)

// exitFailure is the process exit code when any input fails.
const exitFailure = 126

var (
	configPath string

	outputDir        string
	outputPrefix     string
	preserveDirsFrom string
	imageFormat      string
	posterPath       string
	overwrite        bool
	countFrames      bool
	dryRun           bool
	silent           bool
	verbose          bool
	ffmpegBinary     string
	ffprobeBinary    string

	hlsType         string
	hlsInterval     int
	hlsSegmentName  string
	hlsRootPlaylist string

	videoCodec       string
	videoPixelFormat string
	videoResolutions []int
	videoBitrates    []string
	videoProfiles    []string
	videoLevels      []string

	audioCodec   string
	audioProfile string
	audioBitrate string

	previewColumns     int
	previewTileHeight  int
	previewIntervalMin float64
	previewIntervalMax float64
	previewMaxImages   int

	noAudio    bool
	noHLS      bool
	noFallback bool
	noPreviews bool
)

func main() {
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:   "mkhls <input>...",
		Short: "mkhls - package media files into self-hostable HLS bundles",
		Long: `mkhls packages each input media file into a self-hostable HLS bundle:
a resolution/bitrate rendition ladder with a master playlist, an optional
progressive fallback, a poster frame, and a scrub-preview storyboard with a
WebVTT cue file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: run,

		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.Flags()

	flags.StringVar(&configPath, "config", "", "TOML configuration file; flags override its values")

	flags.StringVarP(&outputDir, "output", "o", "", "Output root directory (default: alongside input)")
	flags.StringVar(&outputPrefix, "output-prefix", "", "URL or path prefix baked into sprite cue references")
	flags.StringVar(&preserveDirsFrom, "preserve-dirs-from", "", "Mirror input directory structure relative to this root")
	flags.StringVar(&imageFormat, "image-format", defaults.ImageFormat, "Image format for poster and previews: webp, jpeg or avif")
	flags.StringVar(&posterPath, "poster", "", "Use this image as the poster instead of extracting one")
	flags.BoolVar(&overwrite, "overwrite", false, "Overwrite existing output files")
	flags.BoolVar(&countFrames, "count-frames", false, "Count video frames exactly (slower probe)")
	flags.BoolVarP(&dryRun, "dry-run", "d", false, "Plan and print the ffmpeg command without running it")
	flags.BoolVarP(&silent, "silent", "s", false, "Only log errors, no progress bar")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&ffmpegBinary, "ffmpeg", defaults.FFmpegBinary, "Path to the ffmpeg binary")
	flags.StringVar(&ffprobeBinary, "ffprobe", defaults.FFprobeBinary, "Path to the ffprobe binary")

	flags.StringVar(&hlsType, "hls-type", defaults.HLS.SegmentType, "HLS segment type: mpegts or fmp4")
	flags.IntVar(&hlsInterval, "hls-interval", defaults.HLS.SegmentSeconds, "HLS segment interval in seconds")
	flags.StringVar(&hlsSegmentName, "hls-segment-name", defaults.HLS.SegmentName, "Segment name template with {stream} and {index} placeholders")
	flags.StringVar(&hlsRootPlaylist, "hls-root-playlist-name", defaults.HLS.RootPlaylistName, "Master playlist filename")

	flags.StringVar(&videoCodec, "video-codec", defaults.Video.Codec, "Video codec")
	flags.StringVar(&videoPixelFormat, "video-pixel-format", defaults.Video.PixelFormat, "Video pixel format")
	flags.IntSliceVar(&videoResolutions, "video-resolutions", defaults.Video.Resolutions, "Rendition heights, descending")
	flags.StringSliceVar(&videoBitrates, "video-bitrates", defaults.Video.Bitrates, "Rendition video bitrates")
	flags.StringSliceVar(&videoProfiles, "video-profiles", defaults.Video.Profiles, "Rendition codec profiles")
	flags.StringSliceVar(&videoLevels, "video-levels", defaults.Video.Levels, "Rendition codec levels")

	flags.StringVar(&audioCodec, "audio-codec", defaults.Audio.Codec, "Audio codec")
	flags.StringVar(&audioProfile, "audio-profile", defaults.Audio.Profile, "Audio codec profile")
	flags.StringVar(&audioBitrate, "audio-bitrate", defaults.Audio.Bitrate, "Audio bitrate")

	flags.IntVar(&previewColumns, "timeline-preview-sprite-columns", defaults.Previews.Columns, "Preview sprite columns per row")
	flags.IntVar(&previewTileHeight, "timeline-preview-tile-height", defaults.Previews.TileHeight, "Preview tile height in pixels")
	flags.Float64Var(&previewIntervalMin, "timeline-preview-interval-min", defaults.Previews.IntervalMin, "Minimum seconds between preview frames")
	flags.Float64Var(&previewIntervalMax, "timeline-preview-interval-max", defaults.Previews.IntervalMax, "Maximum seconds between preview frames")
	flags.IntVar(&previewMaxImages, "timeline-preview-max-images", defaults.Previews.MaxImages, "Maximum number of preview frames")

	flags.BoolVar(&noAudio, "no-audio", false, "Mute all outputs")
	flags.BoolVar(&noHLS, "no-hls", false, "Skip the HLS package")
	flags.BoolVar(&noFallback, "no-fallback", false, "Skip the progressive fallback file")
	flags.BoolVar(&noPreviews, "no-timeline-previews", false, "Skip the scrub-preview sprite")

	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error(), "main", nil)
		os.Exit(exitCode(err))
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger.Init(verbose, silent)

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		logger.Info("Received signal, shutting down", "main", map[string]interface{}{
			"signal": sig.String(),
		})
		cancel()
	}()

	var newReporter func(string) progress.Reporter
	if !silent && !cfg.DryRun {
		newReporter = func(description string) progress.Reporter {
			return progress.NewReporter(progress.WithDescription(description))
		}
	}

	trans := transcoder.NewWithDeps(cfg, logger.NewLogger(), newReporter)

	if !cfg.DryRun {
		if err := trans.Preflight(ctx); err != nil {
			return err
		}
	}

	results := trans.ProcessAll(ctx, args)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("Batch finished", "main", map[string]interface{}{
		"processed": len(results),
		"failed":    failed,
	})

	if failed > 0 {
		os.Exit(exitFailure)
	}
	return nil
}

// buildConfig layers defaults, the optional TOML file, and explicitly set
// flags into one immutable configuration value.
func buildConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	if configPath != "" {
		loaded, err := config.Load(configPath, cfg)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}

	set("output", func() { cfg.OutputDir = outputDir })
	set("output-prefix", func() { cfg.OutputPrefix = outputPrefix })
	set("preserve-dirs-from", func() { cfg.PreserveDirsFrom = preserveDirsFrom })
	set("image-format", func() { cfg.ImageFormat = imageFormat })
	set("poster", func() { cfg.PosterPath = posterPath })
	set("overwrite", func() { cfg.Overwrite = overwrite })
	set("count-frames", func() { cfg.CountFrames = countFrames })
	set("ffmpeg", func() { cfg.FFmpegBinary = ffmpegBinary })
	set("ffprobe", func() { cfg.FFprobeBinary = ffprobeBinary })

	set("hls-type", func() { cfg.HLS.SegmentType = hlsType })
	set("hls-interval", func() { cfg.HLS.SegmentSeconds = hlsInterval })
	set("hls-segment-name", func() { cfg.HLS.SegmentName = hlsSegmentName })
	set("hls-root-playlist-name", func() { cfg.HLS.RootPlaylistName = hlsRootPlaylist })

	set("video-codec", func() { cfg.Video.Codec = videoCodec })
	set("video-pixel-format", func() { cfg.Video.PixelFormat = videoPixelFormat })
	set("video-resolutions", func() { cfg.Video.Resolutions = videoResolutions })
	set("video-bitrates", func() { cfg.Video.Bitrates = videoBitrates })
	set("video-profiles", func() { cfg.Video.Profiles = videoProfiles })
	set("video-levels", func() { cfg.Video.Levels = videoLevels })

	set("audio-codec", func() { cfg.Audio.Codec = audioCodec })
	set("audio-profile", func() { cfg.Audio.Profile = audioProfile })
	set("audio-bitrate", func() { cfg.Audio.Bitrate = audioBitrate })

	set("timeline-preview-sprite-columns", func() { cfg.Previews.Columns = previewColumns })
	set("timeline-preview-tile-height", func() { cfg.Previews.TileHeight = previewTileHeight })
	set("timeline-preview-interval-min", func() { cfg.Previews.IntervalMin = previewIntervalMin })
	set("timeline-preview-interval-max", func() { cfg.Previews.IntervalMax = previewIntervalMax })
	set("timeline-preview-max-images", func() { cfg.Previews.MaxImages = previewMaxImages })

	if noAudio {
		cfg.Audio.Enabled = false
	}
	if noHLS {
		cfg.HLS.Enabled = false
	}
	if noFallback {
		cfg.Fallback.Enabled = false
	}
	if noPreviews {
		cfg.Previews.Enabled = false
	}
	cfg.DryRun = dryRun

	return cfg, nil
}

// exitCode maps a failure to the process exit code, propagating a carried
// numeric code when one fits.
func exitCode(err error) int {
	var se *errors.StructuredError
	if stderrors.As(err, &se) && se.Code > 0 && se.Code < 256 {
		return se.Code
	}
	return exitFailure
}
