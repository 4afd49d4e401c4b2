package stage

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderShot_Size(t *testing.T) {
	img := RenderShot("hello", ShotConfig{Cols: 10, Rows: 3})
	assert.Equal(t, image.Rect(0, 0, 10*cellWidth, 3*cellHeight), img.Bounds())

	img = RenderShot("hello", ShotConfig{})
	cfg := DefaultShotConfig()
	assert.Equal(t, image.Rect(0, 0, cfg.Cols*cellWidth, cfg.Rows*cellHeight), img.Bounds())
}

func TestRenderShot_DrawsText(t *testing.T) {
	cfg := DefaultShotConfig()
	blank := RenderShot("", cfg)
	text := RenderShot("BACK · bound", cfg)

	assert.Zero(t, Difference(blank, RenderShot("   ", cfg)))
	assert.Greater(t, Difference(blank, text), 0.0)
}

func TestRenderShot_IgnoresEscapes(t *testing.T) {
	cfg := DefaultShotConfig()
	plain := RenderShot("count 1", cfg)
	styled := RenderShot("\x1b[1mcount\x1b[0m 1", cfg)

	assert.Zero(t, Difference(plain, styled))
}

func TestRenderShot_CutsOffOverflow(t *testing.T) {
	cfg := ShotConfig{Cols: 4, Rows: 1}
	assert.Zero(t, Difference(RenderShot("abcd", cfg), RenderShot("abcdefgh\nsecond line", cfg)))
}

func TestSaveAndLoadShot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shot.png")
	img := RenderShot("steady", DefaultShotConfig())

	require.NoError(t, SaveShot(path, img))
	loaded, err := LoadShot(path)
	require.NoError(t, err)
	assert.Zero(t, Difference(img, loaded))
}

func TestShotFilename(t *testing.T) {
	assert.Equal(t, "01-after_flip.png", shotFilename(1, "after flip"))
	assert.Equal(t, "12-front-camera.png", shotFilename(12, "Front-Camera"))
}

func TestDirector_CaptureShot(t *testing.T) {
	cfg := quietConfig()
	cfg.ShotDir = t.TempDir()

	result := NewWithConfig(t, counter{}, cfg).
		Start().
		CaptureShot("start").
		Press("up").
		WaitForMode("positive").
		CaptureShot("after up").
		Stop()

	require.True(t, result.Success, result.ErrorMessage)
	require.Len(t, result.Shots, 2)

	first, second := result.Shots[0], result.Shots[1]
	assert.Equal(t, 1, first.Step)
	assert.Equal(t, "zero", first.Mode)
	assert.Equal(t, "positive", second.Mode)
	assert.Contains(t, second.View, "count 1")
	assert.NotContains(t, second.View, "\x1b[")
	assert.FileExists(t, first.Path)
	assert.Equal(t, filepath.Join(cfg.ShotDir, "02-after_up.png"), second.Path)
	assert.Greater(t, Difference(first.Image, second.Image), 0.0)
}

func TestDirector_CaptureShotWithoutDirectory(t *testing.T) {
	result := NewWithConfig(t, counter{}, quietConfig()).
		Start().
		CaptureShot("memory only").
		Stop()

	require.Len(t, result.Shots, 1)
	assert.Empty(t, result.Shots[0].Path)
	assert.NotNil(t, result.Shots[0].Image)
}
