package sse

import "time"

// Config holds stream settings.
type Config struct {
	Heartbeat time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"30s"`
}

// DefaultHeartbeat is used when Config.Heartbeat is not positive.
const DefaultHeartbeat = 30 * time.Second
