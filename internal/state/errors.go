package state

import (
	"errors"
	"fmt"
)

// ConfigError reports a store accessor used against a state shape that does
// not support it.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Store is the debug name of the store, if any.
	Store string

	// Key is the field or map key involved, if any.
	Key string

	// Message is a human-readable description.
	Message string
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// ErrCodeUnknownKey indicates a struct state has no field for the key.
	ErrCodeUnknownKey ConfigErrorCode = "UNKNOWN_KEY"

	// ErrCodeKeyType indicates a value cannot be stored under the key.
	ErrCodeKeyType ConfigErrorCode = "KEY_TYPE"

	// ErrCodeNotARecord indicates the state type has no keys at all.
	ErrCodeNotARecord ConfigErrorCode = "NOT_A_RECORD"

	// ErrCodeSnapshotType indicates a replayed snapshot has the wrong type.
	ErrCodeSnapshotType ConfigErrorCode = "SNAPSHOT_TYPE"
)

// Sentinels matched by errors.Is against a *ConfigError of the same code.
var (
	ErrUnknownKey   = errors.New("unknown key")
	ErrKeyType      = errors.New("value type does not match key")
	ErrNotARecord   = errors.New("state is not a record")
	ErrSnapshotType = errors.New("snapshot type does not match store")
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	switch {
	case e.Store != "" && e.Key != "":
		return fmt.Sprintf("%s: %s (store=%s, key=%s)", e.Code, e.Message, e.Store, e.Key)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	case e.Store != "":
		return fmt.Sprintf("%s: %s (store=%s)", e.Code, e.Message, e.Store)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches the sentinel for e's code.
func (e *ConfigError) Is(target error) bool {
	switch e.Code {
	case ErrCodeUnknownKey:
		return target == ErrUnknownKey
	case ErrCodeKeyType:
		return target == ErrKeyType
	case ErrCodeNotARecord:
		return target == ErrNotARecord
	case ErrCodeSnapshotType:
		return target == ErrSnapshotType
	}
	return false
}

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newUnknownKeyError(store, key string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnknownKey,
		Store:   store,
		Key:     key,
		Message: "state has no field for key",
	}
}

func newKeyTypeError(store, key string, want, got any) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeKeyType,
		Store:   store,
		Key:     key,
		Message: fmt.Sprintf("cannot assign %T to %v", got, want),
	}
}

func newNotARecordError(store string, typ any) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNotARecord,
		Store:   store,
		Message: fmt.Sprintf("%v has no keys", typ),
	}
}
