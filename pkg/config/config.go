package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	xdgAppName = "taskbridge"
	configFile = "config.json"
	envPrefix  = "TASKBRIDGE_"
)

const (
	KindTaskwarrior = "taskwarrior"
	KindGoogle      = "google"
	KindFile        = "file"
)

// SourceConfig selects and configures one side of the sync.
type SourceConfig struct {
	Kind     string `koanf:"kind" json:"kind"`
	TaskList string `koanf:"tasklist" json:"tasklist,omitempty"`
	Filter   string `koanf:"filter" json:"filter,omitempty"`
	Path     string `koanf:"path" json:"path,omitempty"`
}

type SyncConfig struct {
	Concurrency int  `koanf:"concurrency" json:"concurrency"`
	DryRun      bool `koanf:"dry_run" json:"dry_run"`
}

type LogConfig struct {
	Level string `koanf:"level" json:"level"`
	JSON  bool   `koanf:"json" json:"json"`
}

type Config struct {
	Exchange SourceConfig `koanf:"exchange" json:"exchange"`
	Other    SourceConfig `koanf:"other" json:"other"`
	Sync     SyncConfig   `koanf:"sync" json:"sync"`
	Log      LogConfig    `koanf:"log" json:"log"`
}

// Default returns the configuration used when nothing else is set:
// Taskwarrior is authoritative and mirrored into the Google list "Tasks".
func Default() *Config {
	return &Config{
		Exchange: SourceConfig{Kind: KindTaskwarrior},
		Other:    SourceConfig{Kind: KindGoogle, TaskList: "Tasks"},
		Sync:     SyncConfig{Concurrency: 1},
		Log:      LogConfig{Level: "info"},
	}
}

// Dir is the directory holding the config file, OAuth material and indexes.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, xdgAppName)
}

func GetConfigPath() string {
	return filepath.Join(Dir(), configFile)
}

// Load reads the config at path (GetConfigPath when empty). Values are layered
// as defaults, then the file, then TASKBRIDGE_* environment variables.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadFile is Load without the environment layer.
func LoadFile(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, withEnv bool) (*Config, error) {
	if path == "" {
		path = GetConfigPath()
	}
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := k.Load(rawMap(data), nil); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if withEnv {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix:        envPrefix,
			TransformFunc: transformEnvKey,
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load environment variables: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string) (map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var data map[string]any
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return data, nil
}

// transformEnvKey maps TASKBRIDGE_OTHER_TASKLIST to other.tasklist and
// TASKBRIDGE_SYNC_DRY_RUN to sync.dry_run.
func transformEnvKey(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	switch len(parts) {
	case 0:
		return "", nil
	case 1:
		return parts[0], value
	}
	return parts[0] + "." + strings.Join(parts[1:], "_"), value
}

// Validate rejects configurations that cannot be turned into two sources.
func (c *Config) Validate() error {
	for _, side := range []struct {
		name string
		src  SourceConfig
	}{{"exchange", c.Exchange}, {"other", c.Other}} {
		switch side.src.Kind {
		case KindTaskwarrior, KindGoogle:
		case KindFile:
			if side.src.Path == "" {
				return fmt.Errorf("%s: file source requires a path", side.name)
			}
		default:
			return fmt.Errorf("%s: unknown source kind %q", side.name, side.src.Kind)
		}
	}
	if c.Exchange.Kind == c.Other.Kind && c.Exchange.Kind == KindFile &&
		filepath.Clean(c.Exchange.Path) == filepath.Clean(c.Other.Path) {
		return errors.New("exchange and other point at the same file")
	}
	if c.Sync.Concurrency < 0 {
		return fmt.Errorf("sync.concurrency must not be negative, got %d", c.Sync.Concurrency)
	}
	return nil
}

// Save writes cfg to path (GetConfigPath when empty).
func Save(path string, cfg *Config) error {
	if path == "" {
		path = GetConfigPath()
	}

	return writeFile(path, cfg)
}

// Set stores value under key (for example "other.tasklist") in the file at
// path, keeping whatever else the file holds. Defaults and environment
// overrides are not written.
func Set(path, key string, value any) error {
	if path == "" {
		path = GetConfigPath()
	}
	k := koanf.New(".")

	data, err := readFile(path)
	if err != nil {
		return err
	}
	if data != nil {
		if err := k.Load(rawMap(data), nil); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := k.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return writeFile(path, k.Raw())
}

func writeFile(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// rawMap adapts already-decoded data to koanf's Provider interface.
type rawMap map[string]any

func (r rawMap) Read() (map[string]any, error) {
	return r, nil
}

func (r rawMap) ReadBytes() ([]byte, error) {
	return nil, errors.New("ReadBytes not implemented")
}
