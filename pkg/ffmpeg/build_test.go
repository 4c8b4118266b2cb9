package ffmpeg

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/noelforte/mkhls/pkg/config"
	"github.com/noelforte/mkhls/pkg/plan"
	"github.com/noelforte/mkhls/pkg/probe"
)

func videoAudioInfo() *probe.SourceMediaInfo {
	return &probe.SourceMediaInfo{
		DurationSeconds: 120,
		Video: &probe.VideoStream{
			Index:     0,
			Width:     1920,
			Height:    1080,
			FrameRate: probe.Rational{Num: 30, Den: 1},
		},
		Audio: &probe.AudioStream{Index: 1, Channels: 2, SampleRateHz: 48000},
	}
}

func defaultBuildInput(t *testing.T, info *probe.SourceMediaInfo) BuildInput {
	t.Helper()
	cfg := config.Default()

	var renditions []plan.Rendition
	var sprite plan.PreviewSprite
	if info.HasVideo() {
		renditions = plan.Renditions(info.Video.Height,
			cfg.Video.Resolutions, cfg.Video.Bitrates, cfg.Video.Profiles, cfg.Video.Levels, nil)
		sprite = plan.Previews(info.DurationSeconds,
			cfg.Previews.IntervalMin, cfg.Previews.IntervalMax, cfg.Previews.MaxImages)
	}

	return BuildInput{
		SourcePath: "input.mkv",
		Info:       info,
		Renditions: renditions,
		Sprite:     sprite,
		OutputDir:  "out",
		TmpDir:     filepath.Join("out", "_tmp"),
		Config:     cfg,
	}
}

func TestBuildFullFeatureSet(t *testing.T) {
	in := defaultBuildInput(t, videoAudioInfo())

	cmd, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	args := cmd.Args()

	// One decode pass feeds every output.
	if n := countFlag(args, "-i"); n != 1 {
		t.Errorf("-i declarations: got %d, want 1", n)
	}

	// Poster, fallback, HLS, previews.
	if n := len(cmd.Targets()); n != 4 {
		t.Errorf("targets: got %d, want 4", n)
	}

	// 1080p source against the default ladder: 2160p and 1440p skipped.
	streamMap := argValue(args, "-var_stream_map")
	wantMap := "v:0,a:0,name:1080p v:1,a:1,name:720p v:2,a:2,name:480p v:3,a:3,name:360p v:4,a:4,name:240p"
	if streamMap != wantMap {
		t.Errorf("-var_stream_map:\ngot  %q\nwant %q", streamMap, wantMap)
	}

	// One option group per rendition, keyed by output stream index.
	for i, want := range []struct{ bitrate, scale string }{
		{"5000k", "scale=-2:1080"},
		{"2800k", "scale=-2:720"},
		{"1400k", "scale=-2:480"},
		{"800k", "scale=-2:360"},
		{"400k", "scale=-2:240"},
	} {
		idx := string(rune('0' + i))
		if got := argValue(args, "-b:v:"+idx); got != want.bitrate {
			t.Errorf("-b:v:%s: got %q, want %q", idx, got, want.bitrate)
		}
		if got := argValue(args, "-filter:v:"+idx); got != want.scale {
			t.Errorf("-filter:v:%s: got %q, want %q", idx, got, want.scale)
		}
	}
	if got := argValue(args, "-b:v:5"); got != "" {
		t.Errorf("unexpected sixth rendition group: %q", got)
	}

	// 30fps * 6s segments.
	if got := argValue(args, "-g"); got != "180" {
		t.Errorf("-g: got %q, want 180", got)
	}
	if got := argValue(args, "-keyint_min"); got != "180" {
		t.Errorf("-keyint_min: got %q, want 180", got)
	}

	if got := argValue(args, "-hls_segment_filename"); got != filepath.Join("out", "%v/segment-%03d.ts") {
		t.Errorf("-hls_segment_filename: got %q", got)
	}
	if got := argValue(args, "-master_pl_name"); got != "manifest.m3u8" {
		t.Errorf("-master_pl_name: got %q", got)
	}

	// Poster seeks to 5% of the 120s duration.
	if got := argValue(args, "-ss"); got != "6" {
		t.Errorf("-ss: got %q, want 6", got)
	}

	// Preview sampling: 120s clip plans 60 frames at 2s.
	found := false
	for _, a := range args {
		if a == "fps=1/2,scale=-2:90" {
			found = true
		}
	}
	if !found {
		t.Errorf("preview -vf missing from args: %v", args)
	}
}

func TestBuildFallbackNeverUpscales(t *testing.T) {
	info := videoAudioInfo()
	info.Video.Width = 854
	info.Video.Height = 480
	in := defaultBuildInput(t, info)

	cmd, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var fallback *OutputTarget
	for _, target := range cmd.Targets() {
		if target.Path() == filepath.Join("out", FallbackVideoName) {
			fallback = target
		}
	}
	if fallback == nil {
		t.Fatal("no fallback target declared")
	}
	if !hasPair(fallback.args, "-vf", "scale=-2:480") {
		t.Errorf("fallback scale: got %v, want scale=-2:480", fallback.args)
	}
}

func TestBuildMutedAudio(t *testing.T) {
	in := defaultBuildInput(t, videoAudioInfo())
	in.Config.Audio.Enabled = false

	cmd, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	args := cmd.Args()

	if !strings.Contains(argValue(args, "-var_stream_map"), "v:0,name:1080p") {
		t.Errorf("muted stream map still references audio: %q", argValue(args, "-var_stream_map"))
	}
	if countFlag(args, "-an") != 1 {
		t.Errorf("fallback should be audio-less when muted: %v", args)
	}
}

func TestBuildAudioOnlySource(t *testing.T) {
	info := &probe.SourceMediaInfo{
		DurationSeconds: 180,
		Audio:           &probe.AudioStream{Index: 0, Channels: 2, SampleRateHz: 44100},
	}
	in := defaultBuildInput(t, info)

	cmd, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	args := cmd.Args()

	// No poster, no previews: fallback and HLS only.
	if n := len(cmd.Targets()); n != 2 {
		t.Errorf("targets: got %d, want 2", n)
	}
	if got := argValue(args, "-var_stream_map"); got != "a:0,name:audio" {
		t.Errorf("-var_stream_map: got %q, want audio-only variant", got)
	}

	mp3 := cmd.Targets()[0]
	if mp3.Path() != filepath.Join("out", FallbackAudioName) {
		t.Errorf("fallback path: got %q, want %s", mp3.Path(), FallbackAudioName)
	}
	if !hasPair(mp3.args, "-c:a", "libmp3lame") {
		t.Errorf("audio fallback codec: got %v", mp3.args)
	}
}

func TestBuildRejectsHLSWithNothingToEncode(t *testing.T) {
	info := videoAudioInfo()
	info.Audio = nil
	in := defaultBuildInput(t, info)
	in.Renditions = nil

	if _, err := Build(in); err == nil {
		t.Fatal("Build accepted an HLS request with an empty plan and no audio")
	}
}

func TestBuildExternalPosterSkipsExtraction(t *testing.T) {
	in := defaultBuildInput(t, videoAudioInfo())
	in.Config.PosterPath = "cover.jpg"

	cmd, err := Build(in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, target := range cmd.Targets() {
		if strings.Contains(target.Path(), PosterBaseName) {
			t.Errorf("poster target declared despite external poster: %q", target.Path())
		}
	}
}

func TestSegmentFilename(t *testing.T) {
	cfg := config.Default()
	if got := SegmentFilename(cfg); got != "%v/segment-%03d.ts" {
		t.Errorf("SegmentFilename: got %q", got)
	}

	cfg.HLS.SegmentType = "fmp4"
	cfg.HLS.SegmentName = "seg_{stream}_{index}"
	if got := SegmentFilename(cfg); got != "seg_%v_%03d.m4s" {
		t.Errorf("SegmentFilename fmp4: got %q", got)
	}
}

func TestImageExtension(t *testing.T) {
	if got := ImageExtension("jpeg"); got != "jpg" {
		t.Errorf("jpeg extension: got %q", got)
	}
	if got := ImageExtension("webp"); got != "webp" {
		t.Errorf("webp extension: got %q", got)
	}
}

// argValue returns the argument following the first occurrence of flag.
func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func hasPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
