// Package probe inspects source media with ffprobe and returns a typed,
// validated description of the streams mkhls cares about.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/noelforte/mkhls/pkg/errors"
)

// Rational is an exact frame rate as reported by ffprobe (e.g. 30000/1001).
type Rational struct {
	Num int64
	Den int64
}

// Float returns the rational as a float64, or 0 for a zero denominator.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// VideoStream describes the selected video stream of a source file.
type VideoStream struct {
	Index      int
	Width      int
	Height     int
	FrameRate  Rational
	FrameCount int // 0 when unknown
}

// AudioStream describes the selected audio stream of a source file.
type AudioStream struct {
	Index        int
	Channels     int
	SampleRateHz int
}

// SourceMediaInfo is the immutable result of probing one input file.
// At least one of Video/Audio is always non-nil.
type SourceMediaInfo struct {
	DurationSeconds float64
	Video           *VideoStream
	Audio           *AudioStream
}

// HasVideo reports whether a video stream was selected.
func (s *SourceMediaInfo) HasVideo() bool { return s.Video != nil }

// HasAudio reports whether an audio stream was selected.
func (s *SourceMediaInfo) HasAudio() bool { return s.Audio != nil }

// Prober runs ffprobe against source files.
type Prober struct {
	// Binary is the ffprobe executable to invoke.
	Binary string
	// CountFrames enables the slower packet-counting pass to determine the
	// exact video frame count.
	CountFrames bool
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	NbFrames   string `json:"nb_frames"`
	Channels   int    `json:"channels"`
	SampleRate string `json:"sample_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// Probe inspects the file at path and returns its validated media info.
func (p *Prober) Probe(ctx context.Context, path string) (*SourceMediaInfo, error) {
	binary := p.Binary
	if binary == "" {
		binary = "ffprobe"
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrap(err, errors.ProbeError, "ffprobe failed", errors.ErrProbeFailed)
	}

	info, err := ParseOutput(output)
	if err != nil {
		return nil, err
	}

	if p.CountFrames && info.HasVideo() && info.Video.FrameCount == 0 {
		if frames, err := p.countFrames(ctx, binary, path); err == nil {
			info.Video.FrameCount = frames
		}
	}

	return info, nil
}

// ParseOutput converts ffprobe's JSON document into a SourceMediaInfo,
// rejecting rather than defaulting on missing required fields.
func ParseOutput(data []byte) (*SourceMediaInfo, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, errors.Wrap(err, errors.ProbeError, "Cannot parse ffprobe output", errors.ErrProbeParse)
	}

	info := &SourceMediaInfo{}

	if ff.Format.Duration == "" {
		return nil, errors.New(errors.ProbeError, "Source has no duration", "", errors.ErrMissingDuration)
	}
	duration, err := strconv.ParseFloat(ff.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return nil, errors.New(errors.ProbeError, "Source has an invalid duration",
			ff.Format.Duration, errors.ErrMissingDuration)
	}
	info.DurationSeconds = duration

	for _, s := range ff.Streams {
		switch s.CodecType {
		case "video":
			if info.Video != nil {
				continue
			}
			if s.Width <= 0 || s.Height <= 0 {
				return nil, errors.New(errors.ProbeError, "Video stream has no dimensions",
					fmt.Sprintf("stream %d reports %dx%d", s.Index, s.Width, s.Height),
					errors.ErrMissingDimension)
			}
			frames := 0
			if s.NbFrames != "" {
				if n, err := strconv.Atoi(s.NbFrames); err == nil {
					frames = n
				}
			}
			info.Video = &VideoStream{
				Index:      s.Index,
				Width:      s.Width,
				Height:     s.Height,
				FrameRate:  parseRational(s.RFrameRate),
				FrameCount: frames,
			}
		case "audio":
			if info.Audio != nil {
				continue
			}
			rate, err := strconv.Atoi(s.SampleRate)
			if err != nil || rate <= 0 {
				return nil, errors.New(errors.ProbeError, "Audio stream has no sample rate",
					fmt.Sprintf("stream %d reports %q", s.Index, s.SampleRate),
					errors.ErrMissingSampleRate)
			}
			info.Audio = &AudioStream{
				Index:        s.Index,
				Channels:     s.Channels,
				SampleRateHz: rate,
			}
		}
	}

	if !info.HasVideo() && !info.HasAudio() {
		return nil, errors.New(errors.ProbeError, "No video or audio streams found", "", errors.ErrNoStreams)
	}

	return info, nil
}

// countFrames counts video packets to determine the exact frame count.
func (p *Prober) countFrames(ctx context.Context, binary, path string) (int, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=nb_read_packets",
		"-of", "csv=p=0",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, errors.Wrap(err, errors.ProbeError, "Frame counting failed", errors.ErrProbeFailed)
	}

	frames, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, errors.Wrap(err, errors.ProbeError, "Cannot parse frame count", errors.ErrProbeParse)
	}
	return frames, nil
}

func parseRational(s string) Rational {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Rational{}
	}
	num, err1 := strconv.ParseInt(parts[0], 10, 64)
	den, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil {
		return Rational{}
	}
	return Rational{Num: num, Den: den}
}
