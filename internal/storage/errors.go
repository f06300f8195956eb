package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("object not found")
	ErrKeyExists    = errors.New("object already exists")
	ErrInvalidKey   = errors.New("invalid storage key")
	ErrTooLarge     = errors.New("object exceeds size limit")
	ErrAccessDenied = errors.New("storage access denied")
)

// ObjectError ties a provider failure to the call and key that hit it.
// Callers match the cause with errors.Is.
type ObjectError struct {
	Op  string
	Key string
	Err error
}

func (e *ObjectError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsKeyExists(err error) bool { return errors.Is(err, ErrKeyExists) }
func IsTooLarge(err error) bool  { return errors.Is(err, ErrTooLarge) }
