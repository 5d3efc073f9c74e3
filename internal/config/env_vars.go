package config

import (
	"os"
)

const (
	appNameVar    = "APP_NAME"
	apiBaseVar    = "API_BASE_URL"
	natsURLVar    = "NATS_URL"
	folderEnvVar  = "FOLDER"
	channelVar    = "AUTH_CHANNEL"
	loginURLVar   = "LOGIN_URL"
	logLevelVar   = "LOG_LEVEL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Session Watch")
}

func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseVar, "http://localhost:8080/api")
}

func (EnvVars) GetNATSURL() string {
	return GetEnv(natsURLVar, "")
}

func (EnvVars) GetStoreFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetChannelName() string {
	return GetEnv(channelVar, "auth")
}

func (EnvVars) GetLoginURL() string {
	return GetEnv(loginURLVar, "/login")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
