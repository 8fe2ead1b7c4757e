package ksdk

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	BaseURL         string        `mapstructure:"baseUrl"`
	PollInterval    time.Duration `mapstructure:"pollInterval"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
	DownloadTimeout time.Duration `mapstructure:"downloadTimeout"`
	CacheDir        string        `mapstructure:"cacheDir"`
	OutputFormat    string        `mapstructure:"outputFormat"`
	Quality         Quality       `mapstructure:"quality"`
	LogLevel        string        `mapstructure:"logLevel"`

	v *viper.Viper // instance-specific viper
}

const (
	EnvPrefix  = "KINO"
	ConfigName = "kino"
	ConfigRoot = ".kino"

	BaseUrlKey         = "baseUrl"
	PollIntervalKey    = "pollInterval"
	RequestTimeoutKey  = "requestTimeout"
	DownloadTimeoutKey = "downloadTimeout"
	CacheDirKey        = "cacheDir"
	OutputFormatKey    = "outputFormat"
	QualityKey         = "quality"
	LogLevelKey        = "logLevel"

	DefaultBaseURL         = "http://localhost:8000"
	DefaultPollInterval    = 2 * time.Second
	DefaultRequestTimeout  = 30 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
)

// LoadConfig creates a new Config instance with its own viper.
// Project config (kino.yaml) is read first and .kino/config.yaml is merged
// over it. KINO_* environment variables win over both.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		for _, name := range []string{ConfigName + ".yaml", ConfigName + ".yml", "." + ConfigName + ".yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}

		localConfigPath := filepath.Join(ConfigRoot, "config.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			v.SetConfigFile(localConfigPath)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merging local config: %w", err)
			}
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.v = v
	return &cfg, nil
}

// Get returns a value from the underlying viper instance
func (c *Config) Get(key string) interface{} {
	if c.v == nil {
		return nil
	}
	return c.v.Get(key)
}

// GetString returns a string value from the underlying viper instance
func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

// Viper returns the underlying viper instance, mostly for flag binding.
func (c *Config) Viper() *viper.Viper {
	return c.v
}

// Reload re-reads the struct fields from viper after flags were bound.
func (c *Config) Reload() error {
	if c.v == nil {
		return nil
	}
	var next Config
	if err := c.v.Unmarshal(&next); err != nil {
		return fmt.Errorf("unmarshaling config: %w", err)
	}
	next.BaseURL = strings.TrimRight(next.BaseURL, "/")
	if err := next.validate(); err != nil {
		return err
	}
	next.v = c.v
	*c = next
	return nil
}

func setDefaults(v *viper.Viper) {
	if !v.IsSet(BaseUrlKey) {
		v.SetDefault(BaseUrlKey, DefaultBaseURL)
	} else {
		normalized := strings.TrimRight(v.GetString(BaseUrlKey), "/")
		v.Set(BaseUrlKey, normalized)
	}

	v.SetDefault(PollIntervalKey, DefaultPollInterval)
	v.SetDefault(RequestTimeoutKey, DefaultRequestTimeout)
	v.SetDefault(DownloadTimeoutKey, DefaultDownloadTimeout)
	v.SetDefault(CacheDirKey, "")
	v.SetDefault(OutputFormatKey, DefaultOutputFormat)
	v.SetDefault(QualityKey, string(DefaultQuality))
	v.SetDefault(LogLevelKey, "info")
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("%s must be positive, got %s", PollIntervalKey, c.PollInterval)
	}
	if c.RequestTimeout <= 0 || c.DownloadTimeout <= 0 {
		return fmt.Errorf("%s and %s must be positive", RequestTimeoutKey, DownloadTimeoutKey)
	}
	if !c.Quality.Valid() {
		return fmt.Errorf("%s must be one of low, medium, high; got %q", QualityKey, c.Quality)
	}
	return nil
}

// ConfigFileUsed returns the config file that was used (if any)
func (c *Config) ConfigFileUsed() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}
