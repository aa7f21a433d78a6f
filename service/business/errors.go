package business

import (
	"github.com/pkg/errors"
)

var (
	// ErrorEmptyValueSupplied rejects requests missing required input.
	ErrorEmptyValueSupplied = errors.New("required value was not supplied")

	// ErrorNotEligible rejects callers acting on files or requests they have no claim to.
	ErrorNotEligible = errors.New("not eligible to perform this action")

	// ErrorFileNotFound indicates the referenced file does not exist.
	ErrorFileNotFound = errors.New("file does not exist")

	// ErrorSignatureNotFound indicates the file was never sent for signing.
	ErrorSignatureNotFound = errors.New("no signature request exists for this file")

	// ErrorUnknownIdentity indicates no registered identity matches the lookup.
	ErrorUnknownIdentity = errors.New("no registered identity found")
)
