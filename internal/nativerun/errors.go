package nativerun

import "errors"

var (
	// ErrInvalidState rejects launch/quit calls outside the allowed
	// state (launch only from idle, quit only from running).
	ErrInvalidState = errors.New("invalid native state")
	// ErrCoreNotFound means the system is unknown or its libretro core
	// is missing from the cores directory.
	ErrCoreNotFound = errors.New("core not found")
	// ErrContentNotFound means the requested content path is missing.
	// The text is the user-facing reply prefix.
	ErrContentNotFound = errors.New("ROM not found")
	// ErrExtractionFailed means an archive yielded no usable content.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrKioskStopFailed means the display service could not be stopped.
	ErrKioskStopFailed = errors.New("kiosk service stop failed")
	// ErrSpawnFailed means the emulator process never started.
	ErrSpawnFailed = errors.New("emulator spawn failed")
)

// ErrorCode maps orchestrator errors to stable machine codes carried
// on wire replies.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidState):
		return "invalid-state"
	case errors.Is(err, ErrCoreNotFound):
		return "core-not-found"
	case errors.Is(err, ErrContentNotFound):
		return "rom-not-found"
	case errors.Is(err, ErrExtractionFailed):
		return "extraction-failed"
	case errors.Is(err, ErrKioskStopFailed):
		return "kiosk-stop-failed"
	case errors.Is(err, ErrSpawnFailed):
		return "spawn-failed"
	default:
		return "native-error"
	}
}
