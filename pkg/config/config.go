// Package config holds the immutable configuration value shared by every
// mkhls component. It is constructed once at startup from defaults, an
// optional TOML file, and command-line flags, and passed by parameter from
// there on; no component reads ambient global state.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/noelforte/mkhls/pkg/errors"
)

// HLS contains settings for the HLS package output.
type HLS struct {
	Enabled          bool   `toml:"enabled"`
	SegmentType      string `toml:"segment_type"` // "mpegts" or "fmp4"
	SegmentSeconds   int    `toml:"segment_seconds"`
	SegmentName      string `toml:"segment_name"` // template with {stream}/{index}
	RootPlaylistName string `toml:"root_playlist_name"`
}

// Video contains the configured rendition ladder and codec settings.
// Bitrates, Profiles and Levels shorter than Resolutions are padded by
// repeating their final element before planning.
type Video struct {
	Codec       string   `toml:"codec"`
	PixelFormat string   `toml:"pixel_format"`
	Resolutions []int    `toml:"resolutions"` // heights, descending
	Bitrates    []string `toml:"bitrates"`
	Profiles    []string `toml:"profiles"`
	Levels      []string `toml:"levels"`
}

// Audio contains audio encoding settings shared by all outputs.
type Audio struct {
	Enabled bool   `toml:"enabled"`
	Codec   string `toml:"codec"`
	Profile string `toml:"profile"`
	Bitrate string `toml:"bitrate"`
}

// Fallback contains settings for the progressive fallback output.
type Fallback struct {
	Enabled   bool   `toml:"enabled"`
	MaxHeight int    `toml:"max_height"`
	Bitrate   string `toml:"bitrate"`
}

// Previews contains tunables for the scrub-preview sprite.
type Previews struct {
	Enabled     bool    `toml:"enabled"`
	Columns     int     `toml:"columns"`
	TileHeight  int     `toml:"tile_height"`
	IntervalMin float64 `toml:"interval_min"`
	IntervalMax float64 `toml:"interval_max"`
	MaxImages   int     `toml:"max_images"`
}

// Config is the complete mkhls configuration.
type Config struct {
	OutputDir        string   `toml:"output_dir"`
	OutputPrefix     string   `toml:"output_prefix"`
	PreserveDirsFrom string   `toml:"preserve_dirs_from"`
	ImageFormat      string   `toml:"image_format"` // "webp", "jpeg" or "avif"
	PosterPath       string   `toml:"poster"`
	Overwrite        bool     `toml:"overwrite"`
	CountFrames      bool     `toml:"count_frames"`
	DryRun           bool     `toml:"-"`
	FFmpegBinary     string   `toml:"ffmpeg"`
	FFprobeBinary    string   `toml:"ffprobe"`
	HLS              HLS      `toml:"hls"`
	Video            Video    `toml:"video"`
	Audio            Audio    `toml:"audio"`
	Fallback         Fallback `toml:"fallback"`
	Previews         Previews `toml:"previews"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ImageFormat:   "webp",
		FFmpegBinary:  "ffmpeg",
		FFprobeBinary: "ffprobe",
		HLS: HLS{
			Enabled:          true,
			SegmentType:      "mpegts",
			SegmentSeconds:   6,
			SegmentName:      "{stream}/segment-{index}",
			RootPlaylistName: "manifest.m3u8",
		},
		Video: Video{
			Codec:       "libx264",
			PixelFormat: "yuv420p",
			Resolutions: []int{2160, 1440, 1080, 720, 480, 360, 240},
			Bitrates:    []string{"15000k", "9000k", "5000k", "2800k", "1400k", "800k", "400k"},
			Profiles:    []string{"high", "high", "high", "high", "main", "main", "baseline"},
			Levels:      []string{"5.1", "5.0", "4.2", "4.0", "3.1", "3.0", "3.0"},
		},
		Audio: Audio{
			Enabled: true,
			Codec:   "aac",
			Profile: "aac_low",
			Bitrate: "128k",
		},
		Fallback: Fallback{
			Enabled:   true,
			MaxHeight: 720,
			Bitrate:   "2800k",
		},
		Previews: Previews{
			Enabled:     true,
			Columns:     10,
			TileHeight:  90,
			IntervalMin: 1,
			IntervalMax: 10,
			MaxImages:   180,
		},
	}
}

// Load reads a TOML configuration file over the supplied base configuration.
// Keys absent from the file keep the base values.
func Load(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, errors.Wrap(err, errors.ValidationError, "Cannot read config file", errors.ErrBadConfig)
	}

	cfg := base
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return base, errors.Wrap(err, errors.ValidationError, "Cannot parse config file", errors.ErrBadConfig)
	}
	return cfg, nil
}

// Validate checks cross-field constraints that flag parsing cannot express.
func (c Config) Validate() error {
	switch c.ImageFormat {
	case "webp", "jpeg", "avif":
	default:
		return errors.New(errors.ValidationError,
			"Invalid image format", fmt.Sprintf("%q is not one of webp, jpeg, avif", c.ImageFormat),
			errors.ErrBadImageFormat)
	}

	switch c.HLS.SegmentType {
	case "mpegts", "fmp4":
	default:
		return errors.New(errors.ValidationError,
			"Invalid HLS segment type", fmt.Sprintf("%q is not one of mpegts, fmp4", c.HLS.SegmentType),
			errors.ErrBadHLSType)
	}

	if len(c.Video.Resolutions) == 0 {
		return errors.New(errors.ValidationError,
			"No video resolutions configured", "", errors.ErrBadResolutionList)
	}
	if len(c.Video.Bitrates) == 0 || len(c.Video.Profiles) == 0 || len(c.Video.Levels) == 0 {
		return errors.New(errors.ValidationError,
			"Bitrates, profiles and levels must each have at least one entry", "",
			errors.ErrBadResolutionList)
	}

	if c.Previews.Enabled {
		// ffmpeg can emit avif posters and frames, but the sprite is
		// composited in-process and no AVIF encoder is available.
		if c.ImageFormat == "avif" {
			return errors.New(errors.ValidationError,
				"Image format avif cannot be used with timeline previews", "",
				errors.ErrBadImageFormat)
		}
		if c.Previews.IntervalMin <= 0 || c.Previews.IntervalMax < c.Previews.IntervalMin {
			return errors.New(errors.ValidationError,
				"Preview intervals must satisfy 0 < min <= max", "", errors.ErrBadConfig)
		}
		if c.Previews.Columns < 1 || c.Previews.MaxImages < 1 {
			return errors.New(errors.ValidationError,
				"Preview columns and max images must be positive", "", errors.ErrBadConfig)
		}
	}

	if c.PosterPath != "" {
		if _, err := os.Stat(c.PosterPath); err != nil {
			return errors.Wrap(err, errors.ValidationError, "Poster file not found", errors.ErrPosterNotFound)
		}
	}

	return nil
}

// SegmentExtension returns the segment file extension for the configured
// HLS segment type.
func (c Config) SegmentExtension() string {
	if c.HLS.SegmentType == "fmp4" {
		return "m4s"
	}
	return "ts"
}
