package insteon

import "errors"

// Bridge construction and persistence errors.
var (
	// ErrMissingDependency is returned by NewBridge when a required option is nil.
	ErrMissingDependency = errors.New("insteon bridge: missing dependency")

	// ErrEngineStore is returned when the engine cache cannot be read or written.
	ErrEngineStore = errors.New("insteon bridge: engine store failed")
)
