package instance

import "errors"

// ErrInvalidInstanceId is returned by any operation addressing an Id that
// is not present in the store's authoritative map, per spec.md §7's error
// taxonomy entry for unknown instance references.
var ErrInvalidInstanceId = errors.New("invalid instance id")

// ErrModNotFound is returned by mod operations addressing an unknown mod id.
var ErrModNotFound = errors.New("mod not found")

// ErrModAlreadyEnabled is returned by EnableMod on an already-enabled mod,
// per spec.md §8 scenario 4.
var ErrModAlreadyEnabled = errors.New("mod is already enabled")

// ErrModAlreadyDisabled is returned by DisableMod on an already-disabled mod.
var ErrModAlreadyDisabled = errors.New("mod is already disabled")
