package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// Marshal renders cfg as "yaml" or "json". The database password is masked.
func Marshal(cfg Config, format string) ([]byte, error) {
	if cfg.Database.Password != "" {
		cfg.Database.Password = "********"
	}
	switch format {
	case "json":
		out, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case "", "yaml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported config format %q (use yaml or json)", format)
	}
}

// WriteDefault writes the commented default config to path. Existing files
// are only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(defaultConfigYAML)); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	// atomic.WriteFile leaves new files with the temp file's 0600.
	if err := os.Chmod(path, 0o644); err != nil {
		return fmt.Errorf("chmod config %s: %w", path, err)
	}
	return nil
}
