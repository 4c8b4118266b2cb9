// Package transcoder sequences one packaging pass per input file: inspect,
// plan, transcode, composite, clean up. Files are processed strictly one at
// a time; a single ffmpeg run already encodes every output variant at once,
// and running several would oversubscribe the host.
package transcoder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/noelforte/mkhls/pkg/config"
	"github.com/noelforte/mkhls/pkg/errors"
	"github.com/noelforte/mkhls/pkg/ffmpeg"
	"github.com/noelforte/mkhls/pkg/logger"
	"github.com/noelforte/mkhls/pkg/plan"
	"github.com/noelforte/mkhls/pkg/probe"
	"github.com/noelforte/mkhls/pkg/progress"
	"github.com/noelforte/mkhls/pkg/sprite"
)

const (
	tmpDirName  = "_tmp"
	seekDirName = "seek"
	cueFileName = "thumbnails.vtt"
	spriteBase  = "storyboard"
)

// Transcoder packages input files into HLS bundles.
type Transcoder struct {
	cfg      config.Config
	log      logger.Logger
	reporter func(description string) progress.Reporter
	prober   *probe.Prober
	driver   *ffmpeg.Driver
}

// New creates a Transcoder with the default logger and no progress bar.
func New(cfg config.Config) *Transcoder {
	return NewWithDeps(cfg, logger.NewLogger(), nil)
}

// NewWithDeps creates a Transcoder with injected dependencies. newReporter
// may be nil to disable progress reporting; otherwise it is called once per
// input file.
func NewWithDeps(cfg config.Config, log logger.Logger, newReporter func(description string) progress.Reporter) *Transcoder {
	return &Transcoder{
		cfg:      cfg,
		log:      log,
		reporter: newReporter,
		prober: &probe.Prober{
			Binary:      cfg.FFprobeBinary,
			CountFrames: cfg.CountFrames,
		},
		driver: &ffmpeg.Driver{
			Binary: cfg.FFmpegBinary,
			Logger: log,
		},
	}
}

// FileResult records the outcome of one input file.
type FileResult struct {
	Input     string
	OutputDir string
	Err       error
}

// Preflight verifies the external tool binaries before the batch starts.
func (t *Transcoder) Preflight(ctx context.Context) error {
	if err := t.driver.Check(ctx); err != nil {
		return err
	}
	probeDriver := &ffmpeg.Driver{Binary: t.prober.Binary, Logger: t.log}
	if probeDriver.Binary == "" {
		probeDriver.Binary = "ffprobe"
	}
	return probeDriver.Check(ctx)
}

// ProcessAll runs every input in order. A file's failure is recorded and the
// batch moves on to the next input; the caller decides the process exit code
// from the results.
func (t *Transcoder) ProcessAll(ctx context.Context, inputs []string) []FileResult {
	results := make([]FileResult, 0, len(inputs))

	for _, input := range inputs {
		if ctx.Err() != nil {
			results = append(results, FileResult{Input: input, Err: ctx.Err()})
			continue
		}

		outDir, err := t.Process(ctx, input)
		if err != nil {
			t.log.Error("Processing failed", "transcoder", map[string]interface{}{
				"input": input,
				"error": err.Error(),
			})
		}
		results = append(results, FileResult{Input: input, OutputDir: outDir, Err: err})
	}

	return results
}

// Process packages a single input file and returns its output directory.
func (t *Transcoder) Process(ctx context.Context, input string) (string, error) {
	jobID := uuid.NewString()
	logData := map[string]interface{}{"input": input, "job": jobID}

	if _, err := os.Stat(input); err != nil {
		return "", errors.Wrap(err, errors.ValidationError, "Input file does not exist", errors.ErrInputNotFound)
	}

	outDir, err := t.resolveOutputDir(input)
	if err != nil {
		return "", err
	}
	logData["output"] = outDir

	if !t.cfg.Overwrite {
		if occupied, path := outputOccupied(outDir, t.cfg); occupied {
			return outDir, errors.New(errors.ValidationError,
				"Destination already exists; use --overwrite to replace it", path,
				errors.ErrOutputExists)
		}
	}

	t.log.Info("Inspecting source", "transcoder", logData)

	info, err := t.prober.Probe(ctx, input)
	if err != nil {
		return outDir, err
	}

	var renditions []plan.Rendition
	if info.HasVideo() {
		renditions = plan.Renditions(info.Video.Height,
			t.cfg.Video.Resolutions, t.cfg.Video.Bitrates,
			t.cfg.Video.Profiles, t.cfg.Video.Levels, t.log)
	}

	var spritePlan plan.PreviewSprite
	makePreviews := t.cfg.Previews.Enabled && info.HasVideo()
	if makePreviews {
		spritePlan = plan.Previews(info.DurationSeconds,
			t.cfg.Previews.IntervalMin, t.cfg.Previews.IntervalMax,
			t.cfg.Previews.MaxImages)
	}

	tmpDir := filepath.Join(outDir, tmpDirName)
	if err := t.prepareDirectories(outDir, tmpDir, renditions, info, makePreviews); err != nil {
		return outDir, err
	}
	// Intermediates go on every exit path, success or not.
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			t.log.Warn("Failed to remove temp directory", "transcoder", map[string]interface{}{
				"path": tmpDir, "error": err.Error(),
			})
		}
	}()

	cmd, err := ffmpeg.Build(ffmpeg.BuildInput{
		SourcePath: input,
		Info:       info,
		Renditions: renditions,
		Sprite:     spritePlan,
		OutputDir:  outDir,
		TmpDir:     tmpDir,
		Config:     t.cfg,
	})
	if err != nil {
		return outDir, err
	}

	if t.cfg.DryRun {
		t.log.Info("Dry run, skipping execution", "transcoder", map[string]interface{}{
			"input":   input,
			"command": t.cfg.FFmpegBinary + " " + strings.Join(cmd.Args(), " "),
		})
		return outDir, nil
	}

	driver := t.driver
	if t.reporter != nil {
		driver = &ffmpeg.Driver{
			Binary:   t.cfg.FFmpegBinary,
			Logger:   t.log,
			Reporter: t.reporter(filepath.Base(input)),
		}
	}

	t.log.Info("Transcoding", "transcoder", logData)
	if err := driver.Run(ctx, cmd.Args(), info.DurationSeconds); err != nil {
		return outDir, err
	}

	if info.HasVideo() {
		if err := t.installPoster(outDir, tmpDir); err != nil {
			return outDir, err
		}
	}

	if makePreviews {
		if err := t.compositeSprite(outDir, tmpDir, spritePlan); err != nil {
			return outDir, err
		}
	}

	t.log.Info("Packaging complete", "transcoder", logData)
	return outDir, nil
}

// resolveOutputDir derives the bundle directory for an input: the output
// root (or the input's own directory), optionally re-rooting the input's
// path relative to --preserve-dirs-from, plus the input's base name.
func (t *Transcoder) resolveOutputDir(input string) (string, error) {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	root := t.cfg.OutputDir
	if root == "" {
		return filepath.Join(filepath.Dir(input), name), nil
	}

	if t.cfg.PreserveDirsFrom != "" {
		rel, err := filepath.Rel(t.cfg.PreserveDirsFrom, filepath.Dir(input))
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", errors.New(errors.ValidationError,
				"Input is outside the --preserve-dirs-from root", input,
				errors.ErrPreserveDirOutside)
		}
		return filepath.Join(root, rel, name), nil
	}

	return filepath.Join(root, name), nil
}

// outputOccupied reports whether the destination already holds a previous
// run's primary outputs.
func outputOccupied(outDir string, cfg config.Config) (bool, string) {
	candidates := []string{
		filepath.Join(outDir, cfg.HLS.RootPlaylistName),
		filepath.Join(outDir, ffmpeg.FallbackVideoName),
		filepath.Join(outDir, ffmpeg.FallbackAudioName),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return true, path
		}
	}
	return false, ""
}

// prepareDirectories creates the output tree: bundle root, temp dir,
// per-rendition segment directories, and the seek dir for previews. ffmpeg
// does not create variant directories itself.
func (t *Transcoder) prepareDirectories(outDir, tmpDir string, renditions []plan.Rendition, info *probe.SourceMediaInfo, previews bool) error {
	dirs := []string{outDir, tmpDir}

	if t.cfg.HLS.Enabled {
		if len(renditions) > 0 {
			for _, r := range renditions {
				dirs = append(dirs, filepath.Join(outDir, r.Name()))
			}
		} else if info.HasAudio() {
			dirs = append(dirs, filepath.Join(outDir, "audio"))
		}
	}
	if previews {
		dirs = append(dirs, filepath.Join(outDir, seekDirName))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, errors.SystemError, "Failed to create directory "+dir, errors.ErrDirCreate)
		}
	}
	return nil
}

// installPoster moves the extracted poster out of the temp directory, or
// copies the externally supplied one.
func (t *Transcoder) installPoster(outDir, tmpDir string) error {
	if t.cfg.PosterPath != "" {
		ext := strings.TrimPrefix(filepath.Ext(t.cfg.PosterPath), ".")
		if ext == "" {
			ext = ffmpeg.ImageExtension(t.cfg.ImageFormat)
		}
		return copyFile(t.cfg.PosterPath, filepath.Join(outDir, ffmpeg.PosterBaseName+"."+ext))
	}

	name := ffmpeg.PosterBaseName + "." + ffmpeg.ImageExtension(t.cfg.ImageFormat)
	if err := os.Rename(filepath.Join(tmpDir, name), filepath.Join(outDir, name)); err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to install poster", errors.ErrFileCopy)
	}
	return nil
}

// compositeSprite tiles the extracted preview frames into the storyboard
// and writes the cue file next to it.
func (t *Transcoder) compositeSprite(outDir, tmpDir string, sp plan.PreviewSprite) error {
	ext := ffmpeg.ImageExtension(t.cfg.ImageFormat)

	frames, err := filepath.Glob(filepath.Join(tmpDir, "preview-*."+ext))
	if err != nil || len(frames) == 0 {
		return errors.New(errors.SpriteError, "No preview frames were extracted", tmpDir, errors.ErrNoPreviewFrames)
	}
	sort.Strings(frames)

	spriteName := spriteBase + "." + ext
	spritePath := filepath.Join(outDir, seekDirName, spriteName)

	compositor := &sprite.Compositor{Format: t.cfg.ImageFormat}
	result, err := compositor.Compose(frames, t.cfg.Previews.Columns, spritePath)
	if err != nil {
		return err
	}

	ref := spriteName
	if t.cfg.OutputPrefix != "" {
		ref = strings.TrimSuffix(t.cfg.OutputPrefix, "/") + "/" + seekDirName + "/" + spriteName
	}

	cues := sprite.Cues(result.Layout, sp.FrameIntervalSeconds, ref)
	return sprite.WriteCueFile(filepath.Join(outDir, seekDirName, cueFileName), cues)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to read "+src, errors.ErrFileCopy)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to create "+dst, errors.ErrFileCopy)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrap(err, errors.SystemError, "Failed to copy "+src, errors.ErrFileCopy)
	}
	return out.Close()
}
