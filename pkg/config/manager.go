// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Layer represents a configuration layer in the hierarchy.
//
// Precedence (low → high): Defaults < Base < EnvironmentFile < ExplicitFile < EnvironmentVariables
type Layer int

const (
	// DefaultsLayer holds hard-coded default values set via SetDefault.
	DefaultsLayer Layer = iota
	// BaseLayer is the base configuration file, e.g. ticketing.yaml.
	BaseLayer
	// EnvironmentFileLayer is the environment-specific file, e.g. ticketing.prod.yaml.
	EnvironmentFileLayer
	// ExplicitFileLayer is a file passed on the command line with --config.
	ExplicitFileLayer
	// EnvironmentVariablesLayer represents TICKETING_* environment variables (highest precedence).
	EnvironmentVariablesLayer
)

func (l Layer) String() string {
	switch l {
	case DefaultsLayer:
		return "defaults"
	case BaseLayer:
		return "base"
	case EnvironmentFileLayer:
		return "environment-file"
	case ExplicitFileLayer:
		return "explicit-file"
	case EnvironmentVariablesLayer:
		return "environment"
	default:
		return "unknown"
	}
}

// Options configures the Manager.
type Options struct {
	// WorkDir is the directory searched for the base and environment files.
	WorkDir string

	// ConfigBaseName is the file name without extension (default: "ticketing").
	ConfigBaseName string

	// ConfigType is the configuration file type (yaml|yml|json). Default: "yaml".
	ConfigType string

	// EnvironmentName selects the environment file suffix, e.g. "dev" → ticketing.dev.yaml.
	EnvironmentName string

	// ConfigFile is an optional explicit file. Unlike the layered files it must exist.
	ConfigFile string

	// EnvPrefix is the prefix for environment variables (default: "TICKETING").
	EnvPrefix string

	// EnableAutomaticEnv enables env var binding with dot→underscore mapping.
	EnableAutomaticEnv bool
}

// DefaultOptions returns the options used by the ticketing binary.
func DefaultOptions() Options {
	return Options{
		WorkDir:            ".",
		ConfigBaseName:     "ticketing",
		ConfigType:         "yaml",
		EnvPrefix:          "TICKETING",
		EnableAutomaticEnv: true,
	}
}

// Manager provides hierarchical configuration loading on top of a private viper instance.
type Manager struct {
	mu      sync.RWMutex
	v       *viper.Viper
	options Options
	loaded  []string
}

// NewManager creates a new Manager with the given options.
func NewManager(options Options) *Manager {
	v := viper.New()
	if options.ConfigType == "" {
		options.ConfigType = "yaml"
	}
	if options.ConfigBaseName == "" {
		options.ConfigBaseName = "ticketing"
	}
	if options.WorkDir == "" {
		options.WorkDir = "."
	}

	if options.EnableAutomaticEnv {
		if options.EnvPrefix != "" {
			v.SetEnvPrefix(options.EnvPrefix)
		}
		v.AutomaticEnv()
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	}

	return &Manager{v: v, options: options}
}

// SetDefault sets a default value for the given key.
func (m *Manager) SetDefault(key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.v.SetDefault(key, value)
}

// Load merges the file layers in precedence order. Environment variables are
// resolved lazily by viper and always win.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.loaded = m.loaded[:0]
	for _, layer := range []Layer{BaseLayer, EnvironmentFileLayer, ExplicitFileLayer} {
		path := m.filePathFor(layer)
		if path == "" {
			continue
		}
		merged, err := m.mergeFile(path, layer == ExplicitFileLayer)
		if err != nil {
			return fmt.Errorf("load %s config: %w", layer, err)
		}
		if merged {
			m.loaded = append(m.loaded, path)
		}
	}
	return nil
}

// LoadedFiles returns the files merged by the last Load, lowest precedence first.
func (m *Manager) LoadedFiles() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.loaded))
	copy(out, m.loaded)
	return out
}

// Unmarshal binds all merged settings into the given struct pointer.
func (m *Manager) Unmarshal(target interface{}) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if target == nil {
		return errors.New("target must not be nil")
	}
	return m.v.Unmarshal(target)
}

// Get returns a value by key from merged configuration.
func (m *Manager) Get(key string) interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key)
}

// AllSettings returns a copy of all merged settings as a map.
func (m *Manager) AllSettings() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.AllSettings()
}

func (m *Manager) filePathFor(layer Layer) string {
	dir := m.options.WorkDir
	base := m.options.ConfigBaseName
	switch layer {
	case BaseLayer:
		return filepath.Join(dir, fmt.Sprintf("%s.%s", base, m.normalizedConfigExt()))
	case EnvironmentFileLayer:
		if m.options.EnvironmentName == "" {
			return ""
		}
		env := strings.ToLower(m.options.EnvironmentName)
		return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", base, env, m.normalizedConfigExt()))
	case ExplicitFileLayer:
		return m.options.ConfigFile
	default:
		return ""
	}
}

func (m *Manager) normalizedConfigExt() string {
	t := strings.ToLower(m.options.ConfigType)
	switch t {
	case "yml":
		return "yaml"
	case "yaml", "json", "toml":
		return t
	default:
		return "yaml"
	}
}

// mergeFile merges a configuration file. Missing files are skipped unless required.
func (m *Manager) mergeFile(path string, required bool) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return false, nil
		}
		return false, err
	}

	// Parse into a scratch instance so a broken file leaves the merged settings untouched.
	tmp := viper.New()
	tmp.SetConfigType(configTypeFor(path, m.normalizedConfigExt()))
	if err := tmp.ReadConfig(bytes.NewReader(content)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, m.v.MergeConfigMap(tmp.AllSettings())
}

func configTypeFor(path, fallback string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "json":
		return "json"
	case "toml":
		return "toml"
	case "yaml", "yml":
		return "yaml"
	default:
		return fallback
	}
}
