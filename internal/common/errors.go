// Package common defines shared sentinel errors used across the storage
// engine. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Path security errors (resolved path escapes the tenant root).
	ErrorAccessDenied = errors.New("access denied")

	// Operation applied to a type outside {file, folder}.
	ErrorNotSupportedType = errors.New("not supported item type")

	// Destination name or path already occupied.
	ErrorAlreadyExists = errors.New("already exists")

	// Missing or blank required argument (path, id, item).
	ErrorInvalidArgument = errors.New("invalid argument")

	// Archive ceilings, checked before any archive bytes are produced.
	ErrorArchiveTooLarge = errors.New("archive too large")
	ErrorTooManyFiles    = errors.New("too many files")
)
