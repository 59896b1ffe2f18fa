package httpapi

import "time"

// shutdownTimeout bounds graceful shutdown of the listener.
const shutdownTimeout = 5 * time.Second

// Config defines HTTP API settings.
type Config struct {
	Addr string
	// Token, when set, is required as a bearer token on every API call
	// except the health check.
	Token   string
	Version string
}
