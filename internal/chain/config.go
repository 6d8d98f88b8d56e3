package chain

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rmacdonaldsmith/facetproxy-go/pkg/storage"
	"github.com/rmacdonaldsmith/facetproxy-go/pkg/txlog"
)

var (
	// ErrEmptyChainID is returned when chain ID is empty
	ErrEmptyChainID = errors.New("chain ID cannot be empty")
)

// Config represents configuration for a Runtime
type Config struct {
	// ChainID names the chain. It is mixed into every derived contract address.
	ChainID string

	// Store holds proxy storage. Nil means a fresh in-memory store.
	Store storage.Store

	// Log records transaction receipts. Nil means a fresh in-memory log.
	Log txlog.Log

	// Logger receives one entry per executed transaction. Nil means no logging.
	Logger *zap.Logger

	// Now returns the time stamped on receipts. Nil means time.Now.
	Now func() time.Time
}

// NewConfig creates a new Runtime configuration with safe defaults
func NewConfig(chainID string) *Config {
	c := &Config{ChainID: chainID}
	c.SetDefaults()
	return c
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.ChainID == "" {
		return ErrEmptyChainID
	}
	return nil
}

// SetDefaults fills in the optional fields. Store and Log are left nil and
// created by NewRuntime so a Config can be reused.
func (c *Config) SetDefaults() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// WithStore sets the proxy storage backend
func (c *Config) WithStore(store storage.Store) *Config {
	c.Store = store
	return c
}

// WithLog sets the receipt log
func (c *Config) WithLog(log txlog.Log) *Config {
	c.Log = log
	return c
}

// WithLogger sets the logger
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	c.Logger = logger
	return c
}
