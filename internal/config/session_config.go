package config

import (
	"strconv"
	"time"
)

// SessionConfig controls session persistence and the background refresh
// policy. The refresh interval must not exceed the staleness threshold so a
// stale session is noticed with margin for at least one failed tick.
type SessionConfig interface {
	GetSessionBackend() string // "file", "redis" or "memory"
	GetRedisAddr() string
	GetRedisKeyPrefix() string
	GetRefreshInterval() time.Duration
	GetStalenessThreshold() time.Duration
	GetTokenHardLifetime() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionBackend() string {
	return GetEnv("RULEHUB_SESSION_BACKEND", "file")
}

func (Session) GetRedisAddr() string {
	return GetEnv("RULEHUB_REDIS_ADDR", "localhost:6379")
}

func (Session) GetRedisKeyPrefix() string {
	return GetEnv("RULEHUB_REDIS_PREFIX", "rulehub:auth:")
}

func (Session) GetRefreshInterval() time.Duration {
	return minutesEnv("RULEHUB_REFRESH_INTERVAL_MINUTES", 30)
}

func (Session) GetStalenessThreshold() time.Duration {
	return minutesEnv("RULEHUB_STALENESS_MINUTES", 50)
}

func (Session) GetTokenHardLifetime() time.Duration {
	return minutesEnv("RULEHUB_TOKEN_LIFETIME_MINUTES", 8*60)
}

func minutesEnv(envVar string, defaultMinutes int) time.Duration {
	minutes := defaultMinutes
	if v := GetEnv(envVar, ""); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			minutes = parsed
		}
	}
	return time.Duration(minutes) * time.Minute
}
