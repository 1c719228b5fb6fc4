package engine

import (
	"time"

	"github.com/quantarax/rdpe/compression"
)

// Config is the socket configuration, re-keyed via Engine.Configure.
type Config struct {
	MaxMessageSize    int
	ChunkSize         int
	MaxRetries        int
	RetryInterval     time.Duration
	RequestTimeout    time.Duration
	ReassemblyTimeout time.Duration
	EnableChecksum    bool
	Compression       compression.Config
}

// DefaultConfig returns the engine's wire-compatible defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize:    1400,
		ChunkSize:         1200,
		MaxRetries:        5,
		RetryInterval:     500 * time.Millisecond,
		RequestTimeout:    5 * time.Second,
		ReassemblyTimeout: 30 * time.Second,
		EnableChecksum:    true,
		Compression:       compression.DefaultConfig(),
	}
}

// Validate checks the configuration's constraints: max_message_size
// must lie in [100, 65000].
func (c Config) Validate() error {
	if c.MaxMessageSize < 100 || c.MaxMessageSize > 65000 {
		return ErrConfig
	}
	return nil
}
