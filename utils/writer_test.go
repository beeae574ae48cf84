package utils_test

import (
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/lfpanels/utils"
)

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestAsyncWriter_WritesQueuedFrames(t *testing.T) {
	dir := t.TempDir()
	w := utils.NewAsyncWriter(dir, 8, quietLogger())
	w.Submit("a.png", grayRamp(4, 4))
	w.Submit("b.png", grayRamp(5, 3))
	require.NoError(t, w.Close())

	assert.EqualValues(t, 2, w.Written())
	for _, name := range []string{"a.png", "b.png"} {
		img, err := utils.ReadImage(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotEqual(t, image.Rectangle{}, img.Bounds())
	}
}

func TestAsyncWriter_DropsAfterClose(t *testing.T) {
	w := utils.NewAsyncWriter(t.TempDir(), 1, quietLogger())
	require.NoError(t, w.Close())
	w.Submit("late.png", grayRamp(2, 2))
	assert.EqualValues(t, 1, w.Dropped())
	assert.EqualValues(t, 0, w.Written())
	require.NoError(t, w.Close())
}

func TestAsyncWriter_ReportsWriteError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// The target directory is a regular file, so MkdirAll fails.
	w := utils.NewAsyncWriter(blocker, 2, quietLogger())
	w.Submit("x.png", grayRamp(2, 2))
	require.Error(t, w.Close())
}

func TestAsyncWriter_SubmitNeverBlocks(t *testing.T) {
	w := utils.NewAsyncWriter(t.TempDir(), 1, quietLogger())
	img := grayRamp(64, 64)
	const n = 50

	start := time.Now()
	for i := range n {
		w.Submit(fmt.Sprintf("f%02d.png", i), img)
	}
	assert.Less(t, time.Since(start), time.Second, "Submit must not wait on disk")
	require.NoError(t, w.Close())

	assert.EqualValues(t, n, w.Written()+w.Dropped())
	assert.Positive(t, w.Written())
}

func TestSaveErrorPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "error.png")
	require.NoError(t, utils.SaveErrorPlot([]float64{1, 0.5, 0.25, 0.1}, path))
	_, err := os.Stat(path)
	require.NoError(t, err)

	require.Error(t, utils.SaveErrorPlot(nil, path))
}
