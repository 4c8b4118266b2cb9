// Package sprite tiles extracted preview frames into a single storyboard
// image and writes the WebVTT cue file that maps time ranges to tiles.
package sprite

import (
	"image"
	"image/color"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	// Preview frames may arrive in any of the configured formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/noelforte/mkhls/pkg/errors"
)

// Tile is one frame's placement inside the sprite canvas.
type Tile struct {
	Index  int
	X      int
	Y      int
	Width  int
	Height int
}

// Layout is the computed geometry of the sprite: grid dimensions, canvas
// size and per-frame placement rectangles.
type Layout struct {
	Columns     int
	Rows        int
	TileWidth   int
	TileHeight  int
	TotalWidth  int
	TotalHeight int
	Tiles       []Tile
}

// NewLayout places frameCount tiles of tileWidth x tileHeight on a grid of
// the given column count, filling rows left to right, top to bottom.
func NewLayout(frameCount, columns, tileWidth, tileHeight int) Layout {
	rows := (frameCount + columns - 1) / columns

	l := Layout{
		Columns:     columns,
		Rows:        rows,
		TileWidth:   tileWidth,
		TileHeight:  tileHeight,
		TotalWidth:  tileWidth * columns,
		TotalHeight: tileHeight * rows,
		Tiles:       make([]Tile, frameCount),
	}

	for i := 0; i < frameCount; i++ {
		col := i % columns
		row := i / columns
		l.Tiles[i] = Tile{
			Index:  i,
			X:      col * tileWidth,
			Y:      row * tileHeight,
			Width:  tileWidth,
			Height: tileHeight,
		}
	}

	return l
}

// Compositor tiles frame images into one sprite.
type Compositor struct {
	// Format selects the sprite encoding: "webp" or "jpeg".
	Format string
	// Quality is the lossy encoding quality (1-100); 0 means the default.
	Quality int
}

// Result describes a composed sprite.
type Result struct {
	SpritePath string
	Layout     Layout
}

// Compose tiles the ordered frame files onto one canvas and writes it to
// outPath. Tile dimensions are taken from the first frame; every frame of
// one extraction pass shares the source aspect ratio.
func (c *Compositor) Compose(framePaths []string, columns int, outPath string) (*Result, error) {
	if len(framePaths) == 0 {
		return nil, errors.New(errors.SpriteError, "No preview frames to composite", "", errors.ErrNoPreviewFrames)
	}

	first, err := imaging.Open(framePaths[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.SpriteError, "Cannot read preview frame", errors.ErrNoPreviewFrames)
	}
	bounds := first.Bounds()
	layout := NewLayout(len(framePaths), columns, bounds.Dx(), bounds.Dy())

	canvas := imaging.New(layout.TotalWidth, layout.TotalHeight, color.NRGBA{A: 255})
	canvas = imaging.Paste(canvas, first, image.Pt(layout.Tiles[0].X, layout.Tiles[0].Y))

	for i := 1; i < len(framePaths); i++ {
		frame, err := imaging.Open(framePaths[i])
		if err != nil {
			return nil, errors.Wrap(err, errors.SpriteError, "Cannot read preview frame", errors.ErrNoPreviewFrames)
		}
		canvas = imaging.Paste(canvas, frame, image.Pt(layout.Tiles[i].X, layout.Tiles[i].Y))
	}

	if err := c.encode(canvas, outPath); err != nil {
		return nil, err
	}

	return &Result{SpritePath: outPath, Layout: layout}, nil
}

func (c *Compositor) encode(img image.Image, path string) error {
	quality := c.Quality
	if quality == 0 {
		quality = 80
	}

	switch c.Format {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return errors.Wrap(err, errors.SpriteError, "Cannot create sprite file", errors.ErrSpriteEncode)
		}
		defer f.Close()
		if err := webp.Encode(f, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return errors.Wrap(err, errors.SpriteError, "WebP encoding failed", errors.ErrSpriteEncode)
		}
		return nil
	case "jpeg":
		if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
			return errors.Wrap(err, errors.SpriteError, "JPEG encoding failed", errors.ErrSpriteEncode)
		}
		return nil
	default:
		return errors.New(errors.SpriteError,
			"No sprite encoder for image format", c.Format, errors.ErrSpriteEncode)
	}
}
