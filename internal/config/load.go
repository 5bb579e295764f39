package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

// LoadInput holds the inputs for Load.
type LoadInput struct {
	ConfigPath string            // --config-file; must exist when set
	Env        map[string]string // environment, nil means os.Environ
	Overrides  Config            // CLI flags, highest precedence
}

// Load builds the effective config with the following precedence (highest wins):
//  1. Embedded defaults
//  2. Global user config ($XDG_CONFIG_HOME/kvgrid/config.yaml or ~/.config/kvgrid/config.yaml)
//  3. Explicit config file
//  4. KVGRID_DRIVER / KVGRID_DSN
//  5. CLI overrides
func Load(in LoadInput) (Config, error) {
	env := in.Env
	if env == nil {
		env = environ()
	}
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	if global := GlobalConfigPath(env); global != "" {
		fileCfg, loaded, err := LoadFile(global, false)
		if err != nil {
			return Config{}, err
		}
		if loaded {
			cfg = Merge(cfg, fileCfg)
		}
	}

	if in.ConfigPath != "" {
		fileCfg, _, err := LoadFile(in.ConfigPath, true)
		if err != nil {
			return Config{}, err
		}
		cfg = Merge(cfg, fileCfg)
	}

	if v := env["KVGRID_DRIVER"]; v != "" {
		cfg.Database.Type = v
	}
	if v := env["KVGRID_DSN"]; v != "" {
		cfg.Database.DSN = v
	}

	cfg = Merge(cfg, in.Overrides)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GlobalConfigPath returns the user config path, preferring an existing
// config.json/config.jsonc over config.yaml in the same directory. Empty
// when no home directory can be determined. A nil env reads the process
// environment.
func GlobalConfigPath(env map[string]string) string {
	if env == nil {
		env = environ()
	}
	var dir string
	switch {
	case env["XDG_CONFIG_HOME"] != "":
		dir = filepath.Join(env["XDG_CONFIG_HOME"], "kvgrid")
	case env["HOME"] != "":
		dir = filepath.Join(env["HOME"], ".config", "kvgrid")
	default:
		return ""
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.jsonc", "config.json"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, "config.yaml")
}

// LoadFile reads one config file. Missing optional files report loaded=false.
func LoadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return Config{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
			}
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, formatFor(path))
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	cfg.Sources = []string{path}
	return cfg, true, nil
}

// Parse decodes config data. format is "yaml" or "json"; JSON input may
// carry comments and trailing commas.
func Parse(data []byte, format string) (Config, error) {
	var cfg Config
	switch format {
	case "json":
		standardized, err := hujson.Standardize(data)
		if err != nil {
			return Config{}, fmt.Errorf("invalid JSONC: %w", err)
		}
		dec := json.NewDecoder(bytes.NewReader(standardized))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("invalid YAML: %w", err)
		}
	}
	return cfg, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return "json"
	default:
		return "yaml"
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}
