package types

import (
	"errors"
	"fmt"
)

// Config holds backend selection and engine parameters for the stockpile
// tool.
type Config struct {
	Backend  string         `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir  string         `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Storage  StorageConfig  `json:"storage" yaml:"storage" mapstructure:"storage"`
	Grid     GridConfig     `json:"grid" yaml:"grid" mapstructure:"grid"`
	Capacity CapacityConfig `json:"capacity" yaml:"capacity" mapstructure:"capacity"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
	Export   ExportConfig   `json:"export" yaml:"export" mapstructure:"export"`
}

// StorageConfig holds the defaults a storage applies when items and
// extensions are silent.
type StorageConfig struct {
	// DefaultStackLimit applies to items that do not declare a limit.
	// Zero means Unlimited.
	DefaultStackLimit int `json:"default_stack_limit" yaml:"default_stack_limit" mapstructure:"default_stack_limit"`

	// DisallowUnvotedAdditions rejects additions no extension allowed.
	DisallowUnvotedAdditions bool `json:"disallow_unvoted_additions" yaml:"disallow_unvoted_additions" mapstructure:"disallow_unvoted_additions"`

	// RemovalReasons registers extra removal tags under Inventory.Removal.
	RemovalReasons []string `json:"removal_reasons,omitempty" yaml:"removal_reasons,omitempty" mapstructure:"removal_reasons"`
}

// GridConfig sizes the spatial grid. A zero size disables the grid.
type GridConfig struct {
	Width  int `json:"width" yaml:"width" mapstructure:"width"`
	Height int `json:"height" yaml:"height" mapstructure:"height"`
}

// CapacityConfig caps the weight and volume a container holds. Zero
// disables a check.
type CapacityConfig struct {
	MaxWeight int `json:"max_weight" yaml:"max_weight" mapstructure:"max_weight"`
	MaxVolume int `json:"max_volume" yaml:"max_volume" mapstructure:"max_volume"`
}

// LogConfig selects slog level and handler format.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// ExportConfig selects how JSONL exports are written.
type ExportConfig struct {
	Compression string `json:"compression" yaml:"compression" mapstructure:"compression"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Supported export compressions.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// Supported log levels and formats.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrInvalidStackLimit  = errors.New("default stack limit must be -1, 0, or positive")
	ErrInvalidGridSize    = errors.New("grid size must be zero or positive on both axes")
	ErrInvalidCapacity    = errors.New("capacity limits must be zero or positive")
	ErrCompressionUnknown = errors.New("unknown export compression")
	ErrLogLevelUnknown    = errors.New("unknown log level")
	ErrLogFormatUnknown   = errors.New("unknown log format")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendBadger: true,
}

var knownCompressions = map[string]bool{
	"":              true,
	CompressionNone: true,
	CompressionZstd: true,
}

var knownLogLevels = map[string]bool{
	"":            true,
	LogLevelDebug: true,
	LogLevelInfo:  true,
	LogLevelWarn:  true,
	LogLevelError: true,
}

var knownLogFormats = map[string]bool{
	"":            true,
	LogFormatText: true,
	LogFormatJSON: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	if c.Storage.DefaultStackLimit < Unlimited {
		return ErrInvalidStackLimit
	}
	if c.Grid.Width < 0 || c.Grid.Height < 0 || (c.Grid.Width == 0) != (c.Grid.Height == 0) {
		return ErrInvalidGridSize
	}
	if c.Capacity.MaxWeight < 0 || c.Capacity.MaxVolume < 0 {
		return ErrInvalidCapacity
	}
	if !knownCompressions[c.Export.Compression] {
		return fmt.Errorf("%w: %q", ErrCompressionUnknown, c.Export.Compression)
	}
	if !knownLogLevels[c.Log.Level] {
		return fmt.Errorf("%w: %q", ErrLogLevelUnknown, c.Log.Level)
	}
	if !knownLogFormats[c.Log.Format] {
		return fmt.Errorf("%w: %q", ErrLogFormatUnknown, c.Log.Format)
	}
	return nil
}

// GetDefaultStackLimit returns the configured limit, mapping zero to
// Unlimited.
func (c StorageConfig) GetDefaultStackLimit() int {
	if c.DefaultStackLimit == 0 {
		return Unlimited
	}
	return c.DefaultStackLimit
}

// Reasons converts RemovalReasons to tags, qualifying bare names with
// TagRemoval.
func (c StorageConfig) Reasons() []Tag {
	var out []Tag
	for _, r := range c.RemovalReasons {
		tag := Tag(r)
		if !tag.Matches(TagRoot) {
			tag = TagRemoval + "." + Tag(capitalize(r))
		}
		out = append(out, tag)
	}
	return out
}

// TagTable builds the tag table for this storage configuration.
func (c StorageConfig) TagTable() (*TagTable, error) {
	if len(c.RemovalReasons) == 0 {
		return DefaultTags(), nil
	}
	return NewTagTable(c.Reasons(), nil)
}

// Enabled reports whether a grid should be attached.
func (g GridConfig) Enabled() bool {
	return g.Width > 0 && g.Height > 0
}

// Enabled reports whether a capacity extension should be attached.
func (c CapacityConfig) Enabled() bool {
	return c.MaxWeight > 0 || c.MaxVolume > 0
}

// GetCompression returns the export compression, defaulting to none.
func (e ExportConfig) GetCompression() string {
	if e.Compression == "" {
		return CompressionNone
	}
	return e.Compression
}

// GetLevel returns the log level, defaulting to info.
func (l LogConfig) GetLevel() string {
	if l.Level == "" {
		return LogLevelInfo
	}
	return l.Level
}

// GetFormat returns the log format, defaulting to text.
func (l LogConfig) GetFormat() string {
	if l.Format == "" {
		return LogFormatText
	}
	return l.Format
}
