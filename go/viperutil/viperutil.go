// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package viperutil binds typed configuration values to an isolated viper
// registry. Each value is declared once with Configure, carrying its key,
// default, env vars and flag name; BindFlags then wires the declared
// values to a parsed pflag set. Values are read once at startup; there is
// no dynamic reload.
package viperutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Registry is an isolated viper instance. Each service or command creates
// its own, so configuration never leaks across registries.
type Registry struct {
	vp *viper.Viper
}

// NewRegistry creates a new isolated configuration registry.
func NewRegistry() *Registry {
	return &Registry{vp: viper.New()}
}

// Viper exposes the underlying viper instance for debug utilities.
func (reg *Registry) Viper() *viper.Viper {
	return reg.vp
}

// LoadConfig searches the given paths for an optional config file with the
// given base name (any extension viper supports). A missing file is not an
// error: defaults, env vars and flags still apply; it is logged at debug.
func (reg *Registry) LoadConfig(name string, paths ...string) error {
	reg.vp.SetConfigName(name)
	for _, path := range paths {
		reg.vp.AddConfigPath(path)
	}
	if err := reg.vp.ReadInConfig(); err != nil {
		if isNotFound(err) {
			slog.Debug("no config file found, using defaults", "name", name)
			return nil
		}
		return fmt.Errorf("failed to read config %q: %w", name, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// Options configures a Value at declaration time.
type Options[T any] struct {
	// Default is the value returned when nothing else sets the key.
	Default T

	// FlagName is the pflag to bind in BindFlags; empty means no flag.
	FlagName string

	// EnvVars are environment variables bound to the key, first set wins.
	EnvVars []string
}

// Value is a single typed configuration value registered under a key.
type Value[T any] struct {
	reg      *Registry
	key      string
	flagName string
	envVars  []string
	def      T
}

// Configure declares a value in the registry and sets its default.
func Configure[T any](reg *Registry, key string, opts Options[T]) *Value[T] {
	reg.vp.SetDefault(key, opts.Default)
	return &Value[T]{
		reg:      reg,
		key:      key,
		flagName: opts.FlagName,
		envVars:  opts.EnvVars,
		def:      opts.Default,
	}
}

// Key returns the registry key.
func (v *Value[T]) Key() string {
	return v.key
}

// Default returns the declared default.
func (v *Value[T]) Default() T {
	return v.def
}

// Get resolves the value with viper's usual precedence: flag, env var,
// config file, default. Representations that do not assert directly to T
// (a string from an env var for an int value, say) go through a
// mapstructure decode; a value that cannot decode falls back to the
// default with a warning.
func (v *Value[T]) Get() T {
	raw := v.reg.vp.Get(v.key)
	if raw == nil {
		return v.def
	}
	if t, ok := raw.(T); ok {
		return t
	}
	var out T
	if err := mapstructure.WeakDecode(raw, &out); err != nil {
		slog.Warn("failed to decode config value, using default",
			"key", v.key,
			"value", raw,
			"err", err,
		)
		return v.def
	}
	return out
}

// bind attaches the value's flag and env vars to the registry.
func (v *Value[T]) bind(fs *pflag.FlagSet) {
	if v.flagName != "" {
		if flag := fs.Lookup(v.flagName); flag != nil {
			_ = v.reg.vp.BindPFlag(v.key, flag)
		}
	}
	if len(v.envVars) > 0 {
		_ = v.reg.vp.BindEnv(append([]string{v.key}, v.envVars...)...)
	}
}

// Bindable is a declared value that can be bound to a flag set.
type Bindable interface {
	Key() string
	bind(fs *pflag.FlagSet)
}

// BindFlags binds the declared values to flags in fs. Call after the flags
// themselves have been registered on fs.
func BindFlags(fs *pflag.FlagSet, values ...Bindable) {
	for _, val := range values {
		val.bind(fs)
	}
}
