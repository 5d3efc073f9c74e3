package config

type Config interface {
	EnvConfig
	RefreshConfig
}

type EnvConfig interface {
	GetAppName() string
	GetAPIBaseURL() string
	GetNATSURL() string
	GetStoreFolder() string
	GetChannelName() string
	GetLoginURL() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Refresh
}

func New() Config {
	return mainConfig{}
}
