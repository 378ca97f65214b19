// CLAUDE:SUMMARY Sentinel errors for the valentine service, mapped to HTTP statuses in handlers.go.
package valentine

import "errors"

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("valentine: session not found")

// ErrSessionClosed is returned when a session stopped while a call was in flight.
var ErrSessionClosed = errors.New("valentine: session closed")

// ErrInvalidInput is returned for unknown event kinds, missing or
// non-numeric values and years outside the picker window.
var ErrInvalidInput = errors.New("valentine: invalid input")

// ErrLocked is returned when reveal content is requested before the gate opens.
var ErrLocked = errors.New("valentine: locked")

// ErrInvalidConfig is returned by New when the configuration is unusable.
var ErrInvalidConfig = errors.New("valentine: invalid config")
