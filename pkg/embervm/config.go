package embervm

import "fmt"

// Config governs VM construction: the initial stack size, the method-table
// bucket count checked by Validate, and the trace toggle.
type Config struct {
	// InitialStackSlots is the value stack's pre-sized capacity,
	// minimum 512.
	InitialStackSlots int

	// MethodTableBuckets must be at least 512 to pass Validate. New does
	// not apply it: the method-symbol side table starts empty and grows on
	// demand.
	MethodTableBuckets int

	// EnableTrace installs a retain/release accounting sink for testing
	// the balance invariant.
	EnableTrace bool
}

// DefaultConfig returns a Config meeting the minimums.
func DefaultConfig() *Config {
	return &Config{
		InitialStackSlots:  512,
		MethodTableBuckets: 512,
		EnableTrace:        false,
	}
}

// Validate checks that c satisfies the construction minimums.
func (c *Config) Validate() error {
	if c.InitialStackSlots < 512 {
		return fmt.Errorf("initial stack size must be at least 512 slots, got %d", c.InitialStackSlots)
	}
	if c.MethodTableBuckets < 512 {
		return fmt.Errorf("method table buckets must be at least 512, got %d", c.MethodTableBuckets)
	}
	return nil
}

// WithInitialStackSlots sets the pre-sized stack capacity.
func (c *Config) WithInitialStackSlots(n int) *Config {
	c.InitialStackSlots = n
	return c
}

// WithMethodTableBuckets sets MethodTableBuckets (validated, not applied by
// New).
func (c *Config) WithMethodTableBuckets(n int) *Config {
	c.MethodTableBuckets = n
	return c
}

// WithTrace enables or disables the retain/release accounting sink.
func (c *Config) WithTrace(enabled bool) *Config {
	c.EnableTrace = enabled
	return c
}
