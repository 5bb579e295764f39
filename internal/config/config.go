// Package config loads kvgrid settings from the embedded defaults, the user's
// global config file and an explicit --config-file, in that order.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigYAML []byte

var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigExists       = errors.New("config file already exists")
)

// Config is the full kvgrid configuration.
type Config struct {
	App      AppConfig      `yaml:"app" json:"app"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Grid     GridConfig     `yaml:"grid" json:"grid"`
	UI       UIConfig       `yaml:"ui" json:"ui"`
	Log      LogConfig      `yaml:"log" json:"log"`

	// Sources lists the files merged into this config, lowest precedence first.
	Sources []string `yaml:"-" json:"-"`
}

type AppConfig struct {
	Name         string `yaml:"name" json:"name"`
	DefaultTable string `yaml:"default_table" json:"default_table"`
}

// DatabaseConfig mirrors the usual host/port/credentials layout. DSN wins
// when set.
type DatabaseConfig struct {
	Type           string   `yaml:"type" json:"type"`
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	Username       string   `yaml:"username" json:"username"`
	Password       string   `yaml:"password" json:"password"`
	DatabaseName   string   `yaml:"database_name" json:"database_name"`
	DSN            string   `yaml:"dsn" json:"dsn"`
	ConnectTimeout Duration `yaml:"connect_timeout" json:"connect_timeout"`
	RequestTimeout Duration `yaml:"request_timeout" json:"request_timeout"`
	MaxOpenConns   int      `yaml:"max_open_conns" json:"max_open_conns"`
}

// GridConfig holds paging, scrolling and editing behavior. Overscan is a
// pointer so an explicit 0 survives merging.
type GridConfig struct {
	PageSize         int      `yaml:"page_size" json:"page_size"`
	RowHeight        int      `yaml:"row_height" json:"row_height"`
	Overscan         *int     `yaml:"overscan" json:"overscan"`
	LoadThreshold    int      `yaml:"load_threshold" json:"load_threshold"`
	RearmThreshold   int      `yaml:"rearm_threshold" json:"rearm_threshold"`
	SearchDebounce   Duration `yaml:"search_debounce" json:"search_debounce"`
	IndicatorLinger  Duration `yaml:"indicator_linger" json:"indicator_linger"`
	ReconcileMode    string   `yaml:"reconcile_mode" json:"reconcile_mode"`
	PlaceholderEdits string   `yaml:"placeholder_edits" json:"placeholder_edits"`
	BulkAddCount     int      `yaml:"bulk_add_count" json:"bulk_add_count"`
}

type UIConfig struct {
	Theme          string           `yaml:"theme" json:"theme"`
	NoColor        *bool            `yaml:"no_color" json:"no_color"`
	MaxColumnWidth int              `yaml:"max_column_width" json:"max_column_width"`
	Themes         map[string]Theme `yaml:"themes" json:"themes"`
}

// Theme holds the grid colors as hex strings.
type Theme struct {
	Header      string `yaml:"header" json:"header"`
	Selected    string `yaml:"selected" json:"selected"`
	Cursor      string `yaml:"cursor" json:"cursor"`
	Border      string `yaml:"border" json:"border"`
	Placeholder string `yaml:"placeholder" json:"placeholder"`
	Edited      string `yaml:"edited" json:"edited"`
	Error       string `yaml:"error" json:"error"`
	Footer      string `yaml:"footer" json:"footer"`
}

type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Duration is a time.Duration written as "500ms" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// DefaultConfigYAML returns the embedded default config.
func DefaultConfigYAML() []byte {
	return defaultConfigYAML
}

// Default decodes the embedded defaults.
func Default() (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode default config: %w", err)
	}
	return cfg, nil
}

// Merge overlays every set field of overlay onto base.
func Merge(base, overlay Config) Config {
	base.App = mergeApp(base.App, overlay.App)
	base.Database = mergeDatabase(base.Database, overlay.Database)
	base.Grid = mergeGrid(base.Grid, overlay.Grid)
	base.UI = mergeUI(base.UI, overlay.UI)
	if overlay.Log.Level != "" {
		base.Log.Level = overlay.Log.Level
	}
	if overlay.Log.File != "" {
		base.Log.File = overlay.Log.File
	}
	base.Sources = append(base.Sources, overlay.Sources...)
	return base
}

func mergeApp(base, o AppConfig) AppConfig {
	if o.Name != "" {
		base.Name = o.Name
	}
	if o.DefaultTable != "" {
		base.DefaultTable = o.DefaultTable
	}
	return base
}

func mergeDatabase(base, o DatabaseConfig) DatabaseConfig {
	setString(&base.Type, o.Type)
	setString(&base.Host, o.Host)
	setString(&base.Username, o.Username)
	setString(&base.Password, o.Password)
	setString(&base.DatabaseName, o.DatabaseName)
	setString(&base.DSN, o.DSN)
	setInt(&base.Port, o.Port)
	setInt(&base.MaxOpenConns, o.MaxOpenConns)
	if o.ConnectTimeout != 0 {
		base.ConnectTimeout = o.ConnectTimeout
	}
	if o.RequestTimeout != 0 {
		base.RequestTimeout = o.RequestTimeout
	}
	return base
}

func mergeGrid(base, o GridConfig) GridConfig {
	setInt(&base.PageSize, o.PageSize)
	setInt(&base.RowHeight, o.RowHeight)
	setInt(&base.LoadThreshold, o.LoadThreshold)
	setInt(&base.RearmThreshold, o.RearmThreshold)
	setInt(&base.BulkAddCount, o.BulkAddCount)
	setString(&base.ReconcileMode, o.ReconcileMode)
	setString(&base.PlaceholderEdits, o.PlaceholderEdits)
	if o.Overscan != nil {
		v := *o.Overscan
		base.Overscan = &v
	}
	if o.SearchDebounce != 0 {
		base.SearchDebounce = o.SearchDebounce
	}
	if o.IndicatorLinger != 0 {
		base.IndicatorLinger = o.IndicatorLinger
	}
	return base
}

func mergeUI(base, o UIConfig) UIConfig {
	setString(&base.Theme, o.Theme)
	setInt(&base.MaxColumnWidth, o.MaxColumnWidth)
	if o.NoColor != nil {
		v := *o.NoColor
		base.NoColor = &v
	}
	if len(o.Themes) > 0 {
		merged := make(map[string]Theme, len(base.Themes)+len(o.Themes))
		for name, t := range base.Themes {
			merged[name] = t
		}
		for name, t := range o.Themes {
			merged[name] = mergeTheme(merged[name], t)
		}
		base.Themes = merged
	}
	return base
}

func mergeTheme(base, o Theme) Theme {
	setString(&base.Header, o.Header)
	setString(&base.Selected, o.Selected)
	setString(&base.Cursor, o.Cursor)
	setString(&base.Border, o.Border)
	setString(&base.Placeholder, o.Placeholder)
	setString(&base.Edited, o.Edited)
	setString(&base.Error, o.Error)
	setString(&base.Footer, o.Footer)
	return base
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// ActiveTheme returns the selected theme, falling back to "dark".
func (c Config) ActiveTheme() Theme {
	if t, ok := c.UI.Themes[c.UI.Theme]; ok {
		return t
	}
	return c.UI.Themes["dark"]
}

// NoColor reports whether styling is disabled.
func (c Config) NoColor() bool {
	return c.UI.NoColor != nil && *c.UI.NoColor
}
