package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the buckfinder configuration
type Config struct {
	Scan      ScanConfig      `mapstructure:"scan"`      // image enumeration
	Model     ModelConfig     `mapstructure:"model"`     // model discovery
	Detection DetectionConfig `mapstructure:"detection"` // per-image inference
	Poll      PollConfig      `mapstructure:"poll"`      // progress polling
	Server    ServerConfig    `mapstructure:"server"`    // HTTP transport

	// Report settings
	ReportFormat string `mapstructure:"report_format"` // text, json, md, html
	OutputFile   string `mapstructure:"output_file"`   // output file path
}

// ScanConfig controls which files a scan picks up
type ScanConfig struct {
	Extensions    []string `mapstructure:"extensions"`     // image extensions, case-insensitive
	Recursive     bool     `mapstructure:"recursive"`      // descend into subdirectories
	Exclude       []string `mapstructure:"exclude"`        // directory names skipped when recursive
	IncludeHidden bool     `mapstructure:"include_hidden"` // include dot-prefixed files
}

// ModelConfig controls where the model is looked up
type ModelConfig struct {
	Name string `mapstructure:"name"` // base name of <name>.modelc / <name>.modelpkg
	Dir  string `mapstructure:"dir"`  // searched before the executable and working directories
}

// DetectionConfig holds inference settings
type DetectionConfig struct {
	InferenceTimeout time.Duration `mapstructure:"inference_timeout"` // 0 disables the timeout
}

// PollConfig holds the caller-side polling cadence
type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DefaultExtensions are the image types a scan picks up
var DefaultExtensions = []string{"jpg", "jpeg", "png"}

// LoadConfig loads configuration from .env, an optional config file,
// environment variables and defaults
func LoadConfig() (*Config, error) {
	// A missing .env is the normal case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("scan.extensions", DefaultExtensions)
	v.SetDefault("scan.recursive", false)
	v.SetDefault("scan.exclude", []string{".git", ".Trashes", ".Spotlight-V100", "@eaDir"})
	v.SetDefault("scan.include_hidden", false)
	v.SetDefault("model.name", "best")
	v.SetDefault("model.dir", "")
	v.SetDefault("detection.inference_timeout", "60s")
	v.SetDefault("poll.interval", "200ms")
	v.SetDefault("poll.backoff", "500ms")
	v.SetDefault("server.addr", "127.0.0.1:7878")
	v.SetDefault("report_format", "")

	// Optional config file. The path is resolved explicitly so an
	// extensionless "buckfinder" (the binary itself) is never parsed.
	if path, ok := findConfigFile(configDirs()); ok {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// Read environment variables, e.g. BUCKFINDER_MODEL_DIR
	v.SetEnvPrefix("BUCKFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// configFileNames are tried in order inside every config dir
var configFileNames = []string{"buckfinder.yaml", "buckfinder.yml"}

func configDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "buckfinder"))
	}
	return dirs
}

// findConfigFile returns the first regular config file under dirs
func findConfigFile(dirs []string) (string, bool) {
	for _, dir := range dirs {
		for _, name := range configFileNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				return path, true
			}
		}
	}
	return "", false
}

// ShouldScanFile determines if a file should be scanned based on its extension
func (c *Config) ShouldScanFile(extension string) bool {
	extension = strings.TrimPrefix(extension, ".")
	if extension == "" {
		return false
	}

	exts := c.Scan.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	for _, ext := range exts {
		if strings.EqualFold(strings.TrimPrefix(ext, "."), extension) {
			return true
		}
	}
	return false
}

// ModelName returns the configured model base name
func (c *Config) ModelName() string {
	if c.Model.Name == "" {
		return "best"
	}
	return c.Model.Name
}
