package facetlink

import (
	"errors"
	"time"
)

var (
	// ErrEmptyListenAddress is returned when a server has no listen address
	ErrEmptyListenAddress = errors.New("listen address cannot be empty")
	// ErrEmptyEndpoint is returned when a client has no endpoint
	ErrEmptyEndpoint = errors.New("endpoint cannot be empty")
)

// Config holds configuration for the facet link server and clients
type Config struct {
	// ListenAddress is where the server accepts facet calls, "host:port"
	ListenAddress string

	// CallTimeout bounds one remote call when the caller's context has no deadline
	CallTimeout time.Duration

	// MaxMessageSize bounds request and response payloads in bytes
	MaxMessageSize int
}

// Validate checks that the server side of the configuration is usable
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return ErrEmptyListenAddress
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = 5 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1024 * 1024 // 1MB
	}
}
