package codegen

import "fmt"

// PoolExhaustionError is raised when a pool has no values left to draw.
// It is fatal: the core reports which pool and gives up.
type PoolExhaustionError struct {
	Pool string
}

func (e *PoolExhaustionError) Error() string {
	return fmt.Sprintf("pool %q exhausted", e.Pool)
}

// OffsetError is CodegenOffsetException: a computed set/tag index fell
// outside its pool or collided with one already taken. It is
// recoverable — the driver resets generator state and retries with
// fresh randomness, up to a bounded number of attempts.
type OffsetError struct {
	Message string
}

func (e *OffsetError) Error() string {
	return fmt.Sprintf("codegen offset conflict: %s", e.Message)
}
