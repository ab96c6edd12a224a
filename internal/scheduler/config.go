package scheduler

import "time"

// Config tunes the Scheduler + Worker Pool per §5/§6.
type Config struct {
	// PerExecutionCap bounds how many nodes of one execution dispatch
	// concurrently (§4.5 "per-execution parallelism cap (default 8)").
	PerExecutionCap int
	// PoolSize bounds the total goroutine slots shared across every
	// concurrently running execution (§5 "worker pool is a bounded
	// shared resource").
	PoolSize int
	// NodeTimeout is the soft per-node execution deadline; exceeding it
	// fails the node with ErrorCode "TIMEOUT" (§6).
	NodeTimeout time.Duration
	// DefaultMaxRetries is carried for callers but not read by the
	// Scheduler: runNode always uses DefaultRetryConfig, whose
	// MaxRetries is 0, so each handler call is attempted once.
	DefaultMaxRetries int
}

func DefaultConfig() Config {
	return Config{
		PerExecutionCap:   8,
		PoolSize:          64,
		NodeTimeout:       300 * time.Second,
		DefaultMaxRetries: 3,
	}
}
