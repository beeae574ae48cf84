// Package config loads the run configuration of the lfpanels example
// program.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/setanarut/lfpanels"
)

// ErrConfig wraps every configuration problem.
var ErrConfig = errors.New("config: invalid configuration")

// Prefix of every environment override.
const EnvPrefix = "LFPANELS_"

// Config is one solver run.
type Config struct {
	Settings lfpanels.Settings `json:"settings"`
	Kind     lfpanels.Kind     `json:"kind"`
	// Bundle is a store file. Empty means a synthetic parallax bundle.
	Bundle string `json:"bundle"`
	// Target optionally replaces the bundle's target with an image file,
	// resampled to the bundle's target size.
	Target    string `json:"target"`
	OutputDir string `json:"output_dir"`
	// Viewpoints and PanelSize shape the synthetic bundle.
	Viewpoints int           `json:"viewpoints"`
	PanelSize  lfpanels.Size `json:"panel_size"`
}

func Default() Config {
	return Config{
		Settings:   lfpanels.DefaultSettings(),
		Kind:       lfpanels.KindSeparable,
		OutputDir:  "output",
		Viewpoints: 3,
		PanelSize:  lfpanels.Size{Height: 64, Width: 64},
	}
}

// Load builds a Config from defaults, the JSON file at path, a .env file and
// LFPANELS_* environment variables, each layer overriding the previous one.
// A missing file is only a warning. Real environment variables win over
// the .env file.
func Load(path string, logger *log.Logger) (*Config, error) {
	if logger == nil {
		logger = log.Default()
	}
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logger.Printf("config %s not found, using defaults", path)
		case err != nil:
			return nil, err
		default:
			dec := json.NewDecoder(bytes.NewReader(b))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&cfg); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrConfig, path, err)
			}
		}
	}

	dotenv, err := readEnvFile(path)
	if err != nil {
		logger.Printf("ignoring .env: %v", err)
	}
	if err := cfg.applyEnv(func(key string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return dotenv[key]
	}); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings and the synthetic bundle shape.
func (c *Config) Validate() error {
	if err := c.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if c.Bundle == "" {
		if c.Viewpoints <= 0 || c.PanelSize.Height <= 0 || c.PanelSize.Width <= 0 {
			return fmt.Errorf("%w: synthetic bundle needs viewpoints and panel_size", ErrConfig)
		}
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: empty output_dir", ErrConfig)
	}
	return nil
}

// readEnvFile reads the .env next to the config file, or else the first one
// found walking up from the working directory.
func readEnvFile(configPath string) (map[string]string, error) {
	if configPath != "" {
		envPath := filepath.Join(filepath.Dir(configPath), ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Read(envPath)
		}
	}

	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	// Look up to 5 levels
	for range 5 {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return godotenv.Read(envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return nil, nil
}

func (c *Config) applyEnv(get func(string) string) error {
	ints := map[string]*int{
		"ITER_COUNT": &c.Settings.IterCount,
		"WORKERS":    &c.Settings.Workers,
		"VIEWPOINTS": &c.Viewpoints,
	}
	bools := map[string]*bool{
		"RNG":          &c.Settings.RNG,
		"EARLY_STOP":   &c.Settings.EarlyStop,
		"FILTER":       &c.Settings.Filter,
		"SAVE_ERROR":   &c.Settings.SaveError,
		"DEBUG_PRINTS": &c.Settings.DebugPrints,
	}
	strs := map[string]*string{
		"BUNDLE":     &c.Bundle,
		"TARGET":     &c.Target,
		"OUTPUT_DIR": &c.OutputDir,
	}

	for name, dst := range ints {
		if v := get(EnvPrefix + name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrConfig, EnvPrefix, name, v, err)
			}
			*dst = n
		}
	}
	for name, dst := range bools {
		if v := get(EnvPrefix + name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%w: %s%s=%q: %v", ErrConfig, EnvPrefix, name, v, err)
			}
			*dst = b
		}
	}
	for name, dst := range strs {
		if v := get(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	if v := get(EnvPrefix + "SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sSEED=%q: %v", ErrConfig, EnvPrefix, v, err)
		}
		c.Settings.Seed = n
	}
	if v := get(EnvPrefix + "KIND"); v != "" {
		k, err := lfpanels.ParseKind(v)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfig, err)
		}
		c.Kind = k
	}
	return nil
}
