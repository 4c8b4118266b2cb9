package ffmpeg

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/noelforte/mkhls/pkg/config"
	"github.com/noelforte/mkhls/pkg/errors"
	"github.com/noelforte/mkhls/pkg/plan"
	"github.com/noelforte/mkhls/pkg/probe"
)

// Filenames of the bundle outputs. Poster and preview frames are written to
// the temp directory first; the orchestrator installs or composites them.
const (
	FallbackVideoName = "progressive.mp4"
	FallbackAudioName = "progressive.mp3"
	PosterBaseName    = "poster"
	PreviewPattern    = "preview-%04d"
	VariantPlaylist   = "stream.m3u8"

	posterSeekFraction = 0.05
)

// BuildInput carries everything the builder needs for one file.
type BuildInput struct {
	SourcePath string
	Info       *probe.SourceMediaInfo
	Renditions []plan.Rendition
	Sprite     plan.PreviewSprite
	OutputDir  string
	TmpDir     string
	Config     config.Config
}

// audioWanted reports whether any output should carry audio.
func (in BuildInput) audioWanted() bool {
	return in.Config.Audio.Enabled && in.Info.HasAudio()
}

// Build assembles the single ffmpeg invocation for one input file: poster
// extraction, fallback, HLS package and preview frames as independent output
// targets fed by one decode pass.
func Build(in BuildInput) (*Command, error) {
	cfg := in.Config

	if cfg.HLS.Enabled && len(in.Renditions) == 0 && !in.Info.HasAudio() {
		return nil, errors.New(errors.PlanningError,
			"HLS requested but no renditions survived and source has no audio", "",
			errors.ErrNoRenditions)
	}

	cmd := NewCommand(in.SourcePath, cfg.Overwrite)

	if cfg.PosterPath == "" && in.Info.HasVideo() {
		cmd.AddTarget(posterTarget(in))
	}
	if cfg.Fallback.Enabled {
		cmd.AddTarget(fallbackTarget(in))
	}
	if cfg.HLS.Enabled {
		cmd.AddTarget(hlsTarget(in))
	}
	if cfg.Previews.Enabled && in.Info.HasVideo() {
		cmd.AddTarget(previewTarget(in))
	}

	return cmd, nil
}

// posterTarget extracts one still frame at 5% of the duration into the temp
// directory.
func posterTarget(in BuildInput) *OutputTarget {
	seek := in.Info.DurationSeconds * posterSeekFraction
	path := filepath.Join(in.TmpDir, PosterBaseName+"."+ImageExtension(in.Config.ImageFormat))

	return NewTarget(path).
		Option("-map", "0:v:0").
		Option("-ss", formatSeconds(seek)).
		Option("-frames:v", "1")
}

// fallbackTarget declares the progressive output: a single MP4 capped at the
// configured height (never upscaling), or an MP3 when the source carries no
// video at all.
func fallbackTarget(in BuildInput) *OutputTarget {
	cfg := in.Config

	if !in.Info.HasVideo() {
		return NewTarget(filepath.Join(in.OutputDir, FallbackAudioName)).
			Option("-map", fmt.Sprintf("0:%d", in.Info.Audio.Index)).
			Option("-c:a", "libmp3lame").
			Option("-b:a", cfg.Audio.Bitrate)
	}

	height := cfg.Fallback.MaxHeight
	if in.Info.Video.Height < height {
		height = in.Info.Video.Height
	}

	t := NewTarget(filepath.Join(in.OutputDir, FallbackVideoName)).
		Option("-map", "0:v:0").
		Option("-vf", scaleFilter(height)).
		Option("-c:v", cfg.Video.Codec).
		Option("-pix_fmt", cfg.Video.PixelFormat).
		Option("-b:v", cfg.Fallback.Bitrate)

	if in.audioWanted() {
		t.Option("-map", "0:a:0").
			Option("-c:a", cfg.Audio.Codec).
			Option("-profile:a", cfg.Audio.Profile).
			Option("-b:a", cfg.Audio.Bitrate)
	} else {
		t.Option("-an")
	}

	return t.Option("-movflags", "+faststart")
}

// hlsTarget declares the HLS package: one option group per rendition keyed
// by output stream index, a named variant map, and segment/manifest paths
// derived from the configured templates.
func hlsTarget(in BuildInput) *OutputTarget {
	cfg := in.Config

	t := NewTarget(filepath.Join(in.OutputDir, "%v", VariantPlaylist))

	audio := in.audioWanted()
	var mapParts []string

	if len(in.Renditions) > 0 {
		for i, r := range in.Renditions {
			t.Option("-map", "0:v:0")
			if audio {
				t.Option("-map", "0:a:0")
			}

			idx := strconv.Itoa(i)
			t.Option("-filter:v:"+idx, scaleFilter(r.Height)).
				Option("-c:v:"+idx, cfg.Video.Codec).
				Option("-b:v:"+idx, r.Bitrate).
				Option("-profile:v:"+idx, r.Profile).
				Option("-level:v:"+idx, r.Level)

			if audio {
				mapParts = append(mapParts, fmt.Sprintf("v:%d,a:%d,name:%s", i, i, r.Name()))
			} else {
				mapParts = append(mapParts, fmt.Sprintf("v:%d,name:%s", i, r.Name()))
			}
		}
		t.Option("-pix_fmt", cfg.Video.PixelFormat)

		// Segment boundaries need a key frame at every segment interval.
		if gop := keyframeInterval(in.Info.Video.FrameRate, cfg.HLS.SegmentSeconds); gop > 0 {
			g := strconv.Itoa(gop)
			t.Option("-g", g).
				Option("-keyint_min", g).
				Option("-sc_threshold", "0")
		}
	} else {
		// Audio-only package: a single fixed audio variant.
		t.Option("-map", "0:a:0")
		mapParts = append(mapParts, "a:0,name:audio")
		audio = true
	}

	if audio {
		t.Option("-c:a", cfg.Audio.Codec).
			Option("-profile:a", cfg.Audio.Profile).
			Option("-b:a", cfg.Audio.Bitrate)
	}

	return t.Option("-f", "hls").
		Option("-hls_time", strconv.Itoa(cfg.HLS.SegmentSeconds)).
		Option("-hls_playlist_type", "vod").
		Option("-hls_flags", "independent_segments").
		Option("-hls_segment_type", cfg.HLS.SegmentType).
		Option("-hls_segment_filename", filepath.Join(in.OutputDir, SegmentFilename(cfg))).
		Option("-master_pl_name", cfg.HLS.RootPlaylistName).
		Option("-var_stream_map", strings.Join(mapParts, " "))
}

// previewTarget declares the numbered preview-frame sequence sampled at the
// planned interval, scaled to the configured tile height.
func previewTarget(in BuildInput) *OutputTarget {
	cfg := in.Config
	pattern := PreviewPattern + "." + ImageExtension(cfg.ImageFormat)

	return NewTarget(filepath.Join(in.TmpDir, pattern)).
		Option("-map", "0:v:0").
		Option("-vf", fmt.Sprintf("fps=1/%s,%s",
			formatSeconds(in.Sprite.FrameIntervalSeconds),
			scaleFilter(cfg.Previews.TileHeight))).
		Option("-fps_mode", "vfr")
}

// SegmentFilename substitutes the {stream} and {index} placeholders of the
// configured segment-name template with ffmpeg's own tokens and appends the
// extension matching the segment type.
func SegmentFilename(cfg config.Config) string {
	name := cfg.HLS.SegmentName
	name = strings.ReplaceAll(name, "{stream}", "%v")
	name = strings.ReplaceAll(name, "{index}", "%03d")
	return name + "." + cfg.SegmentExtension()
}

// ImageExtension maps a configured image format to its file extension.
func ImageExtension(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

// keyframeInterval derives the GOP size from the source frame rate and the
// segment interval.
func keyframeInterval(rate probe.Rational, segmentSeconds int) int {
	return int(math.Round(rate.Float() * float64(segmentSeconds)))
}

// scaleFilter scales to the given height keeping aspect, width forced even
// for codec compatibility.
func scaleFilter(height int) string {
	return fmt.Sprintf("scale=-2:%d", height)
}

// formatSeconds renders a float without trailing zeros, the way ffmpeg
// expects fractional arguments. Millisecond precision is plenty.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
