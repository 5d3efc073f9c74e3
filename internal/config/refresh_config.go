package config

import "time"

type RefreshConfig interface {
	GetTickInterval() time.Duration
	GetRefreshThreshold() time.Duration
	GetLockTTL() time.Duration
	GetAutoRefresh() bool
}

type Refresh struct{}

var _ RefreshConfig = Refresh{}

func (Refresh) GetTickInterval() time.Duration {
	return 1 * time.Second
}

func (Refresh) GetRefreshThreshold() time.Duration {
	return 30 * time.Second
}

func (Refresh) GetLockTTL() time.Duration {
	return 15 * time.Second
}

func (Refresh) GetAutoRefresh() bool {
	return true
}
