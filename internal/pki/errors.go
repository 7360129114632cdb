package pki

import (
	"errors"
	"fmt"
)

// Error kinds shared by the generation, packaging and viewing paths.
// Callers match them with errors.Is; the returned errors wrap the cause.
var (
	// ErrArgument is returned for empty or malformed names, aliases and sources.
	ErrArgument = errors.New("invalid argument")

	// ErrInvalidName is returned when a distinguished name cannot be parsed.
	ErrInvalidName = fmt.Errorf("%w: invalid distinguished name", ErrArgument)

	// ErrFileNotFound is returned when an import path is given but does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrParse is returned for malformed base64, DER or PKCS#12 input.
	ErrParse = errors.New("parse error")

	// ErrGeneration is returned when key generation or entropy fails.
	ErrGeneration = errors.New("key generation failed")

	// ErrSigning is returned when the signing key does not fit the certificate.
	ErrSigning = errors.New("signing failed")

	// ErrNotFound is returned when an alias is absent from a container.
	ErrNotFound = errors.New("not found")
)
