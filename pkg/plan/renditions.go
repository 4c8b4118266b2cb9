// Package plan derives the rendition ladder and preview-sprite sampling
// schedule for one source file.
package plan

import (
	"fmt"

	"github.com/noelforte/mkhls/pkg/logger"
)

// Rendition is one output variant of the source video.
type Rendition struct {
	Height  int
	Bitrate string
	Profile string
	Level   string
}

// Name returns the rendition's stream name, e.g. "1080p". It names the
// variant in the HLS master playlist and its segment directory on disk.
func (r Rendition) Name() string {
	return fmt.Sprintf("%dp", r.Height)
}

// Renditions zips the configured height/bitrate/profile/level lists into
// candidate renditions and drops every candidate taller than the source.
// Bitrates, profiles and levels shorter than the height list are padded by
// repeating their final element first. Order follows the height list and is
// never re-sorted.
//
// When filtering removes every candidate (source shorter than the smallest
// configured height), the smallest configured rendition is kept so tiny
// sources still produce a package.
func Renditions(sourceHeight int, heights []int, bitrates, profiles, levels []string, log logger.Logger) []Rendition {
	if len(heights) == 0 {
		return nil
	}

	bitrates = padToLength(bitrates, len(heights))
	profiles = padToLength(profiles, len(heights))
	levels = padToLength(levels, len(heights))

	var out []Rendition
	for i, h := range heights {
		r := Rendition{
			Height:  h,
			Bitrate: bitrates[i],
			Profile: profiles[i],
			Level:   levels[i],
		}
		if h > sourceHeight {
			if log != nil {
				log.Info("Skipping rendition above source resolution", "plan", map[string]interface{}{
					"rendition_height": h,
					"source_height":    sourceHeight,
				})
			}
			continue
		}
		out = append(out, r)
	}

	if len(out) == 0 {
		last := heights[len(heights)-1]
		if log != nil {
			log.Warn("Source is below every configured rendition, keeping the smallest", "plan", map[string]interface{}{
				"rendition_height": last,
				"source_height":    sourceHeight,
			})
		}
		out = append(out, Rendition{
			Height:  last,
			Bitrate: bitrates[len(heights)-1],
			Profile: profiles[len(heights)-1],
			Level:   levels[len(heights)-1],
		})
	}

	return out
}

// padToLength extends list to n entries by repeating its final element.
// Lists already at least n long are truncated to n.
func padToLength(list []string, n int) []string {
	if len(list) == 0 || n <= 0 {
		return list
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(list) {
			out[i] = list[i]
		} else {
			out[i] = list[len(list)-1]
		}
	}
	return out
}
