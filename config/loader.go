package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/execkit/logger"
)

// FileSystem is the file access LoadConfig needs. Tests substitute it.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem reads the real file system.
type OSFileSystem struct{}

func (OSFileSystem) Exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func (OSFileSystem) LoadEnv(p string) error {
	return godotenv.Load(p)
}

// Resolver locates the config and env files of a binary.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles holds the chosen file paths; empty means none found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// searchDirs lists where a binary's files are looked for, nearest first.
// Binaries run from the repository root or from their own cmd directory.
func searchDirs(service string) []string {
	return []string{
		"./cmd/" + service,
		"./config",
		".",
		"../../cmd/" + service,
		"../../config",
		"../..",
	}
}

// ResolveFiles returns explicit paths from opts as given and searches for
// the rest.
func (r *Resolver) ResolveFiles(service string, opts LoaderConfig) ResolvedFiles {
	files := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if files.ConfigFile == "" {
		files.ConfigFile = r.first(service, "config.yml", "config.yaml")
	}
	if files.EnvFile == "" {
		files.EnvFile = r.first(service, ".env."+service, ".env")
	}
	return files
}

// first returns the first existing file, trying every name in a directory
// before moving to the next one.
func (r *Resolver) first(service string, names ...string) string {
	for _, dir := range searchDirs(service) {
		for _, name := range names {
			p := dir + "/" + name
			if r.FileSystem.Exists(p) {
				return p
			}
		}
	}
	return ""
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// LoadConfig fills cfg, a pointer to a struct with mapstructure tags, from
// the service's config file and the environment. Every leaf key of cfg can
// be overridden by the env var named after its upper-cased dotted path
// with dots turned into underscores: engine.health.idle_ttl is read from
// ENGINE_HEALTH_IDLE_TTL. A missing config file is not an error.
func LoadConfig(service string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: OSFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	resolver := &Resolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(service, lc)

	v := viper.New()
	if files.ConfigFile != "" && lc.FileSystem.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", files.ConfigFile, err)
		}
	}

	// Variables already set in the process win over the .env file.
	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("failed to load .env file", logger.Fields("path", files.EnvFile, logger.FieldError, err.Error()))
		}
	}

	for _, key := range configKeys(reflect.TypeOf(cfg), "") {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decoding config for %s: %w", service, err)
	}
	return nil
}

// EnvName returns the environment variable that overrides a dotted key.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// configKeys lists the dotted keys of every scalar field reachable from t
// through nested structs, named the way mapstructure decodes them. Maps,
// funcs and channels have no single env var and are left out.
func configKeys(t reflect.Type, prefix string) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var keys []string
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		ft := f.Type
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		if strings.Contains(opts, "squash") && ft.Kind() == reflect.Struct {
			keys = append(keys, configKeys(ft, prefix)...)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		switch ft.Kind() {
		case reflect.Struct:
			keys = append(keys, configKeys(ft, key)...)
		case reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		default:
			keys = append(keys, key)
		}
	}
	return keys
}
