package config

import (
	"strconv"
	"time"
)

type Limits struct{}

var _ LimitsConfig = Limits{}

// GetDefaultSessionTimeout returns the idle budget, in minutes, given to a
// freshly started session.
func (Limits) GetDefaultSessionTimeout() int {
	return getEnvInt("DEFAULT_SESSION_TIMEOUT", 30)
}

// GetTimeoutWarningThreshold returns how many minutes of remaining budget
// trigger the one-shot idle warning.
func (Limits) GetTimeoutWarningThreshold() int {
	return getEnvInt("TIMEOUT_WARNING_THRESHOLD", 5)
}

func (Limits) GetSessionExtensionDuration() int {
	return getEnvInt("SESSION_EXTENSION_DURATION", 15)
}

func (Limits) GetMaxExtensionsPerSession() int {
	return getEnvInt("MAX_EXTENSIONS_PER_SESSION", 2)
}

func (Limits) GetMaxAccountsPerUser() int {
	return getEnvInt("MAX_ACCOUNTS_PER_USER", 5)
}

func (Limits) GetMaxSessionsPerUser() int {
	return getEnvInt("MAX_CONCURRENT_BOTS_PER_USER", 3)
}

func (Limits) GetMaxSessionsGlobal() int {
	return getEnvInt("MAX_CONCURRENT_BOTS_GLOBAL", 50)
}

// GetConnectGrace returns how long Registry.Start waits for a session to
// report ready before treating it as "still connecting".
func (Limits) GetConnectGrace() time.Duration {
	return time.Duration(getEnvInt("CONNECT_GRACE_SECONDS", 3)) * time.Second
}

func (Limits) GetMonitorInterval() time.Duration {
	return time.Duration(getEnvInt("MONITOR_INTERVAL_SECONDS", 60)) * time.Second
}

func getEnvInt(envVar string, defaultValue int) int {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
