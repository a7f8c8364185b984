package config

import "time"

type Config interface {
	EnvConfig
	LimitsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDatabaseURL() string
	GetRedisURL() string
	GetEncryptionKey() string
	GetEpicClientsPath() string
	GetNotifyWebhookURL() string
	GetCosmeticsAPIURL() string
}

type LimitsConfig interface {
	GetDefaultSessionTimeout() int
	GetTimeoutWarningThreshold() int
	GetSessionExtensionDuration() int
	GetMaxExtensionsPerSession() int
	GetMaxAccountsPerUser() int
	GetMaxSessionsPerUser() int
	GetMaxSessionsGlobal() int
	GetConnectGrace() time.Duration
	GetMonitorInterval() time.Duration
}

type mainConfig struct {
	EnvVars
	Limits
}

func New() Config {
	return mainConfig{}
}
