package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

// EnvPrefix marks the environment variables LoadConfig binds.
const EnvPrefix = "IMGPREP_"

// FileSystem abstracts the file checks the loader makes.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem on the OS.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// Resolver finds config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths from opts, searching the standard
// locations for whichever is unset.
func (r *Resolver) ResolveFiles(name string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{ConfigFile: opts.ConfigFile, EnvFile: opts.EnvFile}
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = r.first(configSearchPaths(name))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = r.first([]string{fmt.Sprintf("./.env.%s", name), "./.env"})
	}
	return resolved
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configSearchPaths(name string) []string {
	return []string{
		fmt.Sprintf("./%s.yml", name),
		fmt.Sprintf("./%s.yaml", name),
		fmt.Sprintf("./config/%s.yml", name),
		fmt.Sprintf("./cmd/%s/config.yml", name),
		"./config.yml",
	}
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string
	EnvFile    string
	Logger     *logger.Logger
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path. A missing explicit file
// is an error.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithLogger sets the logger for loader warnings.
func WithLogger(l *logger.Logger) LoaderOption {
	return func(lc *LoaderConfig) { lc.Logger = l }
}

// LoadConfig loads configuration for name into cfg. The YAML file is read
// first, then the .env file is loaded into the process environment, and
// finally IMGPREP_ variables override file values.
func LoadConfig(name string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{}
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = RealFileSystem{}
	}
	if lc.Logger == nil {
		lc.Logger = logger.Get("config")
	}
	if lc.ConfigFile != "" && !lc.FileSystem.Exists(lc.ConfigFile) {
		return errors.NotFound("config file", lc.ConfigFile)
	}

	files := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(name, lc)
	return load(cfg, files, lc)
}

func load(cfg any, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()

	if files.ConfigFile != "" {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.IO("read config", files.ConfigFile, err)
		}
		lc.Logger.Debug("config file loaded", logger.Fields(logger.FieldPath, files.ConfigFile))
	}

	if files.EnvFile != "" && lc.FileSystem.Exists(files.EnvFile) {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			lc.Logger.Warn("failed to load env file", logger.MergeWithError(logger.Fields(logger.FieldPath, files.EnvFile), err))
		}
	}
	bindEnv(v, os.Environ())

	if err := v.Unmarshal(cfg); err != nil {
		return errors.InvalidInput("config", "cannot decode configuration").WithCause(err)
	}
	return nil
}

// bindEnv sets every IMGPREP_ variable under each of its possible key
// spellings.
func bindEnv(v *viper.Viper, environ []string) {
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		for _, variant := range envKeyVariants(strings.TrimPrefix(key, EnvPrefix)) {
			v.Set(variant, value)
		}
	}
}

// envKeyVariants maps an env key to the config keys it may mean:
//
//	SPLIT_PERCENTAGES -> [split_percentages, split.percentages]
//	OUTPUT_STORAGE_BASE_PATH -> [..., output.storage.base_path, ...]
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	variants := []string{lower, strings.Join(parts, ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}
	for i := 1; i < len(parts)-1; i++ {
		variants = append(variants, strings.Join(parts[:i], "_")+"."+strings.Join(parts[i:], "."))
	}
	return dedupe(variants)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
