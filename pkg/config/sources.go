package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// ConfigSource represents a source of configuration values
type ConfigSource interface {
	GetString(key string) (string, bool)
	GetInt(key string) (int, bool)
	GetBool(key string) (bool, bool)
}

// EnvSource implements ConfigSource for environment variables
type EnvSource struct{}

func (e *EnvSource) GetString(key string) (string, bool) {
	value := os.Getenv(key)
	return value, value != ""
}

func (e *EnvSource) GetInt(key string) (int, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i, true
	}
	return 0, false
}

func (e *EnvSource) GetBool(key string) (bool, bool) {
	value := os.Getenv(key)
	if value == "" {
		return false, false
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

// FlagSource implements ConfigSource for command-line flags
type FlagSource struct {
	values map[string]interface{}
}

func NewFlagSource() *FlagSource {
	return &FlagSource{values: make(map[string]interface{})}
}

func (f *FlagSource) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *FlagSource) GetString(key string) (string, bool) {
	if value, exists := f.values[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str, true
		}
	}
	return "", false
}

func (f *FlagSource) GetInt(key string) (int, bool) {
	if value, exists := f.values[key]; exists {
		if i, ok := value.(int); ok {
			return i, true
		}
	}
	return 0, false
}

func (f *FlagSource) GetBool(key string) (bool, bool) {
	if value, exists := f.values[key]; exists {
		if b, ok := value.(bool); ok {
			return b, true
		}
	}
	return false, false
}

// FileSource implements ConfigSource for a YAML config file read by viper.
// An empty FileSource (no file found) reports every key as missing.
type FileSource struct {
	v    *viper.Viper
	used string
}

// Search locations when no explicit config file is given
var configSearchPaths = []string{".", "./config", "/etc/gwdash/"}

// NewFileSource reads path, or searches for gwdash.yaml when path is empty.
// A missing file is only an error when path was given explicitly.
func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		for _, p := range configSearchPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return &FileSource{v: v}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return &FileSource{v: v, used: v.ConfigFileUsed()}, nil
}

// Used returns the path of the file that was read, or "".
func (f *FileSource) Used() string {
	return f.used
}

func (f *FileSource) GetString(key string) (string, bool) {
	if !f.v.IsSet(key) {
		return "", false
	}
	value := f.v.GetString(key)
	return value, value != ""
}

func (f *FileSource) GetInt(key string) (int, bool) {
	if !f.v.IsSet(key) {
		return 0, false
	}
	if i, err := strconv.Atoi(f.v.GetString(key)); err == nil {
		return i, true
	}
	return 0, false
}

func (f *FileSource) GetBool(key string) (bool, bool) {
	if !f.v.IsSet(key) {
		return false, false
	}
	if b, err := strconv.ParseBool(f.v.GetString(key)); err == nil {
		return b, true
	}
	return false, false
}
