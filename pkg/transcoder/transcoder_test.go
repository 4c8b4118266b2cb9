package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noelforte/mkhls/pkg/config"
	"github.com/noelforte/mkhls/pkg/plan"
	"github.com/noelforte/mkhls/pkg/probe"
)

func TestResolveOutputDirDefaultsAlongsideInput(t *testing.T) {
	trans := New(config.Default())

	got, err := trans.resolveOutputDir(filepath.Join("media", "clips", "holiday.mkv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("media", "clips", "holiday"), got)
}

func TestResolveOutputDirWithRoot(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/srv/hls"
	trans := New(cfg)

	got, err := trans.resolveOutputDir("/media/clips/holiday.mkv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/hls", "holiday"), got)
}

func TestResolveOutputDirPreservesStructure(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/srv/hls"
	cfg.PreserveDirsFrom = "/media"
	trans := New(cfg)

	got, err := trans.resolveOutputDir("/media/shows/s01/e01.mkv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/hls", "shows", "s01", "e01"), got)

	// Inputs outside the preserve root are rejected.
	_, err = trans.resolveOutputDir("/downloads/e02.mkv")
	assert.Error(t, err)
}

func TestOutputOccupied(t *testing.T) {
	cfg := config.Default()
	dir := t.TempDir()

	occupied, _ := outputOccupied(dir, cfg)
	assert.False(t, occupied)

	require.NoError(t, os.WriteFile(filepath.Join(dir, cfg.HLS.RootPlaylistName), []byte("#EXTM3U\n"), 0644))
	occupied, path := outputOccupied(dir, cfg)
	assert.True(t, occupied)
	assert.Equal(t, filepath.Join(dir, cfg.HLS.RootPlaylistName), path)
}

func TestPrepareDirectoriesCreatesRenditionTree(t *testing.T) {
	cfg := config.Default()
	trans := New(cfg)

	outDir := filepath.Join(t.TempDir(), "bundle")
	tmpDir := filepath.Join(outDir, tmpDirName)
	renditions := []plan.Rendition{{Height: 720}, {Height: 360}}
	info := &probe.SourceMediaInfo{
		DurationSeconds: 60,
		Video:           &probe.VideoStream{Width: 1280, Height: 720},
	}

	require.NoError(t, trans.prepareDirectories(outDir, tmpDir, renditions, info, true))

	for _, dir := range []string{tmpDir, filepath.Join(outDir, "720p"), filepath.Join(outDir, "360p"), filepath.Join(outDir, seekDirName)} {
		stat, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, stat.IsDir(), dir)
	}
}

func TestPrepareDirectoriesAudioOnly(t *testing.T) {
	trans := New(config.Default())

	outDir := filepath.Join(t.TempDir(), "bundle")
	info := &probe.SourceMediaInfo{
		DurationSeconds: 60,
		Audio:           &probe.AudioStream{Index: 0, Channels: 2, SampleRateHz: 44100},
	}

	require.NoError(t, trans.prepareDirectories(outDir, filepath.Join(outDir, tmpDirName), nil, info, false))

	stat, err := os.Stat(filepath.Join(outDir, "audio"))
	require.NoError(t, err)
	assert.True(t, stat.IsDir())
}

func TestProcessRejectsMissingInput(t *testing.T) {
	trans := New(config.Default())

	_, err := trans.Process(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	assert.Error(t, err)
}

func TestProcessAllContinuesPastFailures(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	trans := New(cfg)

	missing1 := filepath.Join(t.TempDir(), "a.mkv")
	missing2 := filepath.Join(t.TempDir(), "b.mkv")

	results := trans.ProcessAll(context.Background(), []string{missing1, missing2})

	require.Len(t, results, 2)
	assert.Error(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.Equal(t, missing2, results[1].Input)
}
