package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/stockpile/internal/paths"
	"github.com/mesh-intelligence/stockpile/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "STOCKPILE"
)

// defaults mirrors the zero-config behavior; data_dir is resolved by paths.
var defaults = map[string]any{
	"backend":                            types.BackendSQLite,
	"storage.default_stack_limit":        0,
	"storage.disallow_unvoted_additions": false,
	"grid.width":                         0,
	"grid.height":                        0,
	"capacity.max_weight":                0,
	"capacity.max_volume":                0,
	"log.level":                          types.LogLevelInfo,
	"log.format":                         types.LogFormatText,
	"export.compression":                 types.CompressionNone,
}

// loadConfig reads config.yaml from configDir with Viper. STOCKPILE_* env
// vars override file values for every key except data_dir, whose precedence
// belongs to paths.DataDir. A missing config.yaml is not an error.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_"))); err != nil {
			return types.Config{}, err
		}
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// resolveConfig loads the config selected by the global flags and resolves
// its data directory.
func resolveConfig() (types.Config, error) {
	configDir, err := paths.ConfigDir(flags.configDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := loadConfig(configDir)
	if err != nil {
		return types.Config{}, err
	}
	dataDir, err := paths.DataDir(flags.dataDir, cfg.DataDir)
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// defaultConfig is the content init writes to a fresh config.yaml.
func defaultConfig(dataDir string) types.Config {
	return types.Config{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Log:     types.LogConfig{Level: types.LogLevelInfo, Format: types.LogFormatText},
		Export:  types.ExportConfig{Compression: types.CompressionNone},
	}
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. It reports whether a file was written.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, err
	}

	cfg := defaultConfig(dataDir)
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# stockpile configuration\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}

// newLogger builds the slog logger described by cfg, writing to w.
func newLogger(cfg types.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.GetLevel() {
	case types.LogLevelDebug:
		level = slog.LevelDebug
	case types.LogLevelWarn:
		level = slog.LevelWarn
	case types.LogLevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.GetFormat() == types.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
