package sprite

import (
	"bytes"
	"fmt"
	"os"

	"github.com/noelforte/mkhls/pkg/errors"
	"github.com/noelforte/mkhls/pkg/timestamp"
)

// Cue is one scrub-preview timeline entry mapping a time range to a
// sub-rectangle of the sprite image.
type Cue struct {
	Start     float64
	End       float64
	SpriteRef string
	X         int
	Y         int
	Width     int
	Height    int
}

// Cues pairs each tile of the layout with its time range. Tile i covers
// [i*interval, (i+1)*interval), so consecutive cues are contiguous.
func Cues(layout Layout, intervalSeconds float64, spriteRef string) []Cue {
	cues := make([]Cue, len(layout.Tiles))
	for i, tile := range layout.Tiles {
		start := float64(i) * intervalSeconds
		cues[i] = Cue{
			Start:     start,
			End:       start + intervalSeconds,
			SpriteRef: spriteRef,
			X:         tile.X,
			Y:         tile.Y,
			Width:     tile.Width,
			Height:    tile.Height,
		}
	}
	return cues
}

// RenderCueFile serializes cues as a WebVTT document: the WEBVTT header
// followed by blank-line-separated entries of a time range and the sprite
// reference with an #xywh media fragment.
func RenderCueFile(cues []Cue) []byte {
	var buf bytes.Buffer
	buf.WriteString("WEBVTT\n\n")

	for _, c := range cues {
		buf.WriteString(fmt.Sprintf("%s --> %s\n", timestamp.Format(c.Start), timestamp.Format(c.End)))
		buf.WriteString(fmt.Sprintf("%s#xywh=%d,%d,%d,%d\n\n", c.SpriteRef, c.X, c.Y, c.Width, c.Height))
	}

	return buf.Bytes()
}

// WriteCueFile renders cues and writes them to path.
func WriteCueFile(path string, cues []Cue) error {
	if err := os.WriteFile(path, RenderCueFile(cues), 0644); err != nil {
		return errors.Wrap(err, errors.SpriteError, "Cannot write cue file", errors.ErrCueWrite)
	}
	return nil
}
