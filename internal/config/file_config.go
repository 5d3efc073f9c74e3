package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileValues are the optional overrides a YAML config file may carry.
// Zero values fall through to the environment-backed defaults.
type fileValues struct {
	AppName          string        `yaml:"app_name"`
	APIBaseURL       string        `yaml:"api_base_url"`
	NATSURL          string        `yaml:"nats_url"`
	StoreFolder      string        `yaml:"store_folder"`
	ChannelName      string        `yaml:"channel"`
	LoginURL         string        `yaml:"login_url"`
	LogLevel         string        `yaml:"log_level"`
	TickInterval     time.Duration `yaml:"tick_interval"`
	RefreshThreshold time.Duration `yaml:"refresh_threshold"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	AutoRefresh      *bool         `yaml:"auto_refresh"`
}

type fileConfig struct {
	mainConfig
	values fileValues
}

var _ Config = fileConfig{}

// LoadFile reads a YAML config file whose values take precedence over
// environment variables. A missing path yields the env-only config.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return New(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var values fileValues
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}

	return fileConfig{values: values}, nil
}

func (fc fileConfig) GetAppName() string {
	return override(fc.values.AppName, fc.mainConfig.GetAppName)
}

func (fc fileConfig) GetAPIBaseURL() string {
	return override(fc.values.APIBaseURL, fc.mainConfig.GetAPIBaseURL)
}

func (fc fileConfig) GetNATSURL() string {
	return override(fc.values.NATSURL, fc.mainConfig.GetNATSURL)
}

func (fc fileConfig) GetStoreFolder() string {
	return override(fc.values.StoreFolder, fc.mainConfig.GetStoreFolder)
}

func (fc fileConfig) GetChannelName() string {
	return override(fc.values.ChannelName, fc.mainConfig.GetChannelName)
}

func (fc fileConfig) GetLoginURL() string {
	return override(fc.values.LoginURL, fc.mainConfig.GetLoginURL)
}

func (fc fileConfig) GetLogLevel() string {
	return override(fc.values.LogLevel, fc.mainConfig.GetLogLevel)
}

func (fc fileConfig) GetTickInterval() time.Duration {
	return override(fc.values.TickInterval, fc.mainConfig.GetTickInterval)
}

func (fc fileConfig) GetRefreshThreshold() time.Duration {
	return override(fc.values.RefreshThreshold, fc.mainConfig.GetRefreshThreshold)
}

func (fc fileConfig) GetLockTTL() time.Duration {
	return override(fc.values.LockTTL, fc.mainConfig.GetLockTTL)
}

func (fc fileConfig) GetAutoRefresh() bool {
	if fc.values.AutoRefresh != nil {
		return *fc.values.AutoRefresh
	}
	return fc.mainConfig.GetAutoRefresh()
}

func override[T comparable](v T, fallback func() T) T {
	var zero T
	if v == zero {
		return fallback()
	}
	return v
}
