package models

import (
	"errors"
	"fmt"
)

// Error kinds for the generation pipeline. Kinds decide retryability and
// populate the report record's last-error field so operators can tell
// transient failures from persistent ones.
var (
	// ErrValidation marks ineligible reports or empty input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrEngineStartup marks a rendering engine that failed to start. Retryable.
	ErrEngineStartup = errors.New("engine startup error")

	// ErrEngineTimeout marks an in-engine timeout, distinct from content
	// generation failure for diagnostics. Retryable.
	ErrEngineTimeout = errors.New("engine timeout")

	// ErrResourceExhausted marks the concurrent engine instance cap being
	// reached. A capacity issue, not a correctness one. Retryable after backoff.
	ErrResourceExhausted = errors.New("engine capacity exhausted")

	// ErrStorage marks artifact store failures. Retryable.
	ErrStorage = errors.New("storage error")

	// ErrStaleWorker is the internal recovery signal for a processing job
	// whose worker stopped heartbeating. Not user-visible.
	ErrStaleWorker = errors.New("stale worker")

	// ErrGeneration marks deterministic generator/renderer failures.
	// Retrying cannot help, the job terminalizes immediately.
	ErrGeneration = errors.New("generation error")
)

// IsRetryable reports whether the pipeline may re-attempt a job that
// failed with the given error.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrEngineStartup),
		errors.Is(err, ErrEngineTimeout),
		errors.Is(err, ErrResourceExhausted),
		errors.Is(err, ErrStorage),
		errors.Is(err, ErrStaleWorker):
		return true
	}
	return false
}

// ErrorKind returns the stable kind string stored on the report record.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrEngineStartup):
		return "engine_startup"
	case errors.Is(err, ErrEngineTimeout):
		return "engine_timeout"
	case errors.Is(err, ErrResourceExhausted):
		return "resource_exhausted"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrStaleWorker):
		return "stale_worker"
	case errors.Is(err, ErrGeneration):
		return "generation"
	}
	return "unknown"
}

// WrapKind attaches an error kind sentinel to a cause.
func WrapKind(kind error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
