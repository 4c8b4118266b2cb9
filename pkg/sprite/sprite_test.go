package sprite

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutTilesCanvasExactly(t *testing.T) {
	const (
		frames  = 23
		columns = 5
		tileW   = 160
		tileH   = 90
	)

	layout := NewLayout(frames, columns, tileW, tileH)

	require.Equal(t, 5, layout.Rows)
	require.Equal(t, tileW*columns, layout.TotalWidth)
	require.Equal(t, tileH*5, layout.TotalHeight)
	require.Len(t, layout.Tiles, frames)

	// Every tile rectangle maps a unique grid cell; no gaps, no overlaps.
	seen := make(map[string]bool)
	for i, tile := range layout.Tiles {
		assert.Equal(t, (i%columns)*tileW, tile.X, "tile %d x", i)
		assert.Equal(t, (i/columns)*tileH, tile.Y, "tile %d y", i)
		assert.Equal(t, tileW, tile.Width)
		assert.Equal(t, tileH, tile.Height)

		key := fmt.Sprintf("%d,%d", tile.X, tile.Y)
		assert.False(t, seen[key], "tile %d overlaps cell %s", i, key)
		seen[key] = true
	}
}

func TestCuesAreContiguous(t *testing.T) {
	layout := NewLayout(12, 4, 160, 90)
	cues := Cues(layout, 2.5, "storyboard.webp")

	require.Len(t, cues, 12)
	assert.Equal(t, 0.0, cues[0].Start)

	for i := 0; i < len(cues)-1; i++ {
		assert.Equal(t, cues[i].End, cues[i+1].Start, "cue %d not contiguous", i)
	}
	assert.Equal(t, 30.0, cues[len(cues)-1].End)
}

func TestRenderCueFile(t *testing.T) {
	layout := NewLayout(2, 10, 160, 90)
	cues := Cues(layout, 5, "https://cdn.example/seek/storyboard.webp")

	doc := string(RenderCueFile(cues))

	require.True(t, strings.HasPrefix(doc, "WEBVTT\n\n"), "missing WEBVTT header")
	assert.Contains(t, doc, "0:00:00.000 --> 0:00:05.000\n")
	assert.Contains(t, doc, "https://cdn.example/seek/storyboard.webp#xywh=0,0,160,90\n")
	assert.Contains(t, doc, "0:00:05.000 --> 0:00:10.000\n")
	assert.Contains(t, doc, "#xywh=160,0,160,90\n")

	// Blank-line-separated entries: header + one per cue.
	assert.Equal(t, 3, strings.Count(doc, "\n\n"))
}

func TestComposeTilesFrames(t *testing.T) {
	dir := t.TempDir()

	colors := []color.NRGBA{
		{R: 255, A: 255},
		{G: 255, A: 255},
		{B: 255, A: 255},
	}
	var paths []string
	for i, c := range colors {
		path := filepath.Join(dir, fmt.Sprintf("preview-%04d.png", i+1))
		require.NoError(t, imaging.Save(imaging.New(160, 90, c), path))
		paths = append(paths, path)
	}

	compositor := &Compositor{Format: "jpeg", Quality: 95}
	out := filepath.Join(dir, "storyboard.jpg")
	result, err := compositor.Compose(paths, 2, out)
	require.NoError(t, err)

	require.Equal(t, 2, result.Layout.Rows)
	require.Equal(t, 320, result.Layout.TotalWidth)
	require.Equal(t, 180, result.Layout.TotalHeight)

	img, err := imaging.Open(out)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 320, 180), img.Bounds())

	// Second frame lands in the second grid cell.
	r, g, _, _ := img.At(240, 45).RGBA()
	assert.Greater(t, g, r, "expected the green frame at tile (1,0)")
}

func TestComposeRejectsEmptyFrameList(t *testing.T) {
	compositor := &Compositor{Format: "jpeg"}
	_, err := compositor.Compose(nil, 10, "out.jpg")
	require.Error(t, err)
}
