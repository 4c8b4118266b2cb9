package plan

// PreviewSprite describes the scrub-preview sampling schedule: how many
// frames to pull from the source and how far apart they are.
type PreviewSprite struct {
	FrameIntervalSeconds float64
	FrameCount           int
}

// Previews computes the preview-frame schedule for a source of the given
// duration. The heuristic trades interval density for a frame-count ceiling:
//
//   - short media (duration <= minInterval*60) samples at the minimum interval;
//   - medium media (duration <= maxInterval*60) uses a fixed 60 frames;
//   - long media (duration <= maxInterval*maxImages) stretches to the maximum
//     interval;
//   - anything longer accepts a coarser interval so maxImages is never exceeded.
//
// The exact thresholds are load-bearing: existing bundles were produced with
// these frame counts and their filenames depend on them.
func Previews(durationSeconds, minInterval, maxInterval float64, maxImages int) PreviewSprite {
	frameCount := maxImages

	switch {
	case durationSeconds <= minInterval*60:
		frameCount = int(durationSeconds / minInterval)
	case durationSeconds <= maxInterval*60:
		frameCount = 60
	case durationSeconds <= maxInterval*float64(maxImages):
		frameCount = int(durationSeconds / maxInterval)
	}

	if frameCount < 1 {
		frameCount = 1
	}

	return PreviewSprite{
		FrameIntervalSeconds: durationSeconds / float64(frameCount),
		FrameCount:           frameCount,
	}
}
