package pipeline

import "time"

// Config controls the analysis cadence.
type Config struct {
	TickStep     int
	TickInterval time.Duration
}

// DefaultConfig matches the reference cadence: 10% every 200ms.
func DefaultConfig() Config {
	return Config{TickStep: 10, TickInterval: 200 * time.Millisecond}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickStep <= 0 {
		c.TickStep = d.TickStep
	}
	if c.TickStep > 100 {
		c.TickStep = 100
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	return c
}
