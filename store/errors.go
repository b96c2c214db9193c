package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a row cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an empty or malformed id is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrInvalidKey is returned when a composite key component is empty.
	ErrInvalidKey = errors.New("store: invalid key")

	// ErrInvalidField is returned for a field that is not default-filled.
	ErrInvalidField = errors.New("store: invalid field")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")
)

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Validate checks the id and field arguments shared by the conditional writes.
func Validate(id string, f Field) error {
	if id == "" {
		return ErrInvalidID
	}
	if !f.Valid() {
		return ErrInvalidField
	}
	return nil
}
