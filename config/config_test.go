package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/setanarut/lfpanels"
)

// clearEnv blanks every override so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ITER_COUNT", "WORKERS", "VIEWPOINTS", "RNG", "EARLY_STOP", "FILTER", "SAVE_ERROR",
		"DEBUG_PRINTS", "BUNDLE", "TARGET", "OUTPUT_DIR", "SEED", "KIND",
	} {
		t.Setenv(EnvPrefix+k, "")
	}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, t.TempDir(), "run.json", `{
		"kind": "stacked",
		"settings": {"iter_count": 25, "filter": true},
		"output_dir": "out"
	}`)
	cfg, err := Load(p, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	assert.Equal(t, lfpanels.KindStacked, cfg.Kind)
	assert.Equal(t, 25, cfg.Settings.IterCount)
	assert.True(t, cfg.Settings.Filter)
	assert.Equal(t, [2]float64{0.5, 0.5}, cfg.Settings.StartingValues, "unset fields keep defaults")
	assert.Equal(t, "out", cfg.OutputDir)
}

func TestLoad_MissingFileWarns(t *testing.T) {
	clearEnv(t)
	var logs bytes.Buffer
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"), log.New(&logs, "", 0))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "not found")
	def := Default()
	assert.Equal(t, def.Settings.IterCount, cfg.Settings.IterCount)
	assert.Equal(t, def.Kind, cfg.Kind)
}

func TestLoad_RejectsBadFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	quiet := log.New(&bytes.Buffer{}, "", 0)

	_, err := Load(writeFile(t, dir, "a.json", `{"iterations": 3}`), quiet)
	require.ErrorIs(t, err, ErrConfig)

	_, err = Load(writeFile(t, dir, "b.json", `{"kind": "tensor"}`), quiet)
	require.ErrorIs(t, err, ErrConfig)

	_, err = Load(writeFile(t, dir, "c.json", `{"settings": {"iter_count": 0}}`), quiet)
	require.ErrorIs(t, err, ErrConfig)
	require.ErrorIs(t, err, lfpanels.ErrSettings)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LFPANELS_ITER_COUNT", "7")
	t.Setenv("LFPANELS_EARLY_STOP", "true")
	t.Setenv("LFPANELS_WORKERS", "2")
	t.Setenv("LFPANELS_OUTPUT_DIR", "/tmp/panels")
	t.Setenv("LFPANELS_KIND", "stereo")
	t.Setenv("LFPANELS_SEED", "9")

	p := writeFile(t, t.TempDir(), "run.json", `{"settings": {"iter_count": 25}}`)
	cfg, err := Load(p, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Settings.IterCount, "environment beats file")
	assert.True(t, cfg.Settings.EarlyStop)
	assert.Equal(t, 2, cfg.Settings.Workers)
	assert.Equal(t, uint64(9), cfg.Settings.Seed)
	assert.Equal(t, "/tmp/panels", cfg.OutputDir)
	assert.Equal(t, lfpanels.KindStereo, cfg.Kind)
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "LFPANELS_FILTER=true\nLFPANELS_ITER_COUNT=3\n")
	p := writeFile(t, dir, "run.json", `{}`)
	t.Setenv("LFPANELS_ITER_COUNT", "11")

	cfg, err := Load(p, log.New(&bytes.Buffer{}, "", 0))
	require.NoError(t, err)
	assert.True(t, cfg.Settings.Filter, "read from .env")
	assert.Equal(t, 11, cfg.Settings.IterCount, "real environment beats .env")
}

func TestLoad_BadEnv(t *testing.T) {
	clearEnv(t)
	quiet := log.New(&bytes.Buffer{}, "", 0)

	t.Setenv("LFPANELS_WORKERS", "many")
	_, err := Load("", quiet)
	require.ErrorIs(t, err, ErrConfig)

	t.Setenv("LFPANELS_WORKERS", "")
	t.Setenv("LFPANELS_FILTER", "maybe")
	_, err = Load("", quiet)
	require.ErrorIs(t, err, ErrConfig)
}
