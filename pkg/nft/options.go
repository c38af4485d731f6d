package nft

import "github.com/rs/zerolog"

type config struct {
	logger zerolog.Logger
}

// Option configures the loader.
type Option func(*config)

// WithLogger sets the logger used for progress messages. The default
// discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
