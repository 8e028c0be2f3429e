package contenttype

import (
	"bytes"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// configKey is the key holding the content-type list in configuration files
const configKey = "content_types"

// LoadFile reads content types from a YAML, JSON or TOML file
func LoadFile(path string) (*Snapshot, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read content types: %w", err)
	}
	return fromViper(v)
}

// Load reads content types from an in-memory document of the given type ("yaml", "json")
func Load(data []byte, configType string) (*Snapshot, error) {
	v := viper.New()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to parse content types: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Snapshot, error) {
	var shapes []RowShape
	if err := v.UnmarshalKey(configKey, &shapes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal content types: %w", err)
	}
	return NewSnapshot(shapes)
}

// WatchFile reloads the registry whenever the file at path changes. A file
// that fails to load is logged and the previous snapshot stays current.
func WatchFile(registry *Registry, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read content types: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		snap, err := fromViper(v)
		if err != nil {
			registry.logger.Error("content type reload failed",
				zap.String("file", e.Name),
				zap.Error(err))
			return
		}
		registry.Swap(snap)
	})
	v.WatchConfig()
	return nil
}
