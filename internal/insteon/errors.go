package insteon

import "errors"

// Domain errors for the insteon package.
var (
	// ErrInvalidAddress is returned when an address string or byte slice
	// does not match either address grammar.
	ErrInvalidAddress = errors.New("insteon: invalid address format")

	// ErrCodeNotFound is returned when a wire byte matches no known X10
	// command or flag.
	ErrCodeNotFound = errors.New("insteon: code not found")

	// ErrNoModemAssigned is returned when a device or scene must reach the
	// network but has no modem attached.
	ErrNoModemAssigned = errors.New("insteon: no modem assigned")

	// ErrInvalidMessage is returned when a frame cannot be encoded or parsed.
	ErrInvalidMessage = errors.New("insteon: invalid message")

	// ErrInvalidGroup is returned when a scene group is outside 0-255.
	ErrInvalidGroup = errors.New("insteon: invalid scene group")

	// ErrInvalidCatalog is returned when a device-type catalog fails validation.
	ErrInvalidCatalog = errors.New("insteon: invalid catalog")

	// ErrDeviceNotFound is returned when no device is registered at an address.
	ErrDeviceNotFound = errors.New("insteon: device not found")

	// ErrDeviceExists is returned when registering a second device at an address.
	ErrDeviceExists = errors.New("insteon: device already exists")

	// ErrSceneNotFound is returned when no scene is registered for a group.
	ErrSceneNotFound = errors.New("insteon: scene not found")

	// ErrSceneExists is returned when registering a second scene for a group.
	ErrSceneExists = errors.New("insteon: scene already exists")
)
