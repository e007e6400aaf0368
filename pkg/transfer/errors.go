package transfer

import "errors"

// Static errors for the transfer stage
var (
	// ErrNoObjects is returned when there is nothing to download
	ErrNoObjects = errors.New("no objects to transfer")
	// ErrMultipleMatches is returned when more than one key matched under the exactly-one policy
	ErrMultipleMatches = errors.New("multiple objects matched, expected exactly one")
	// ErrDuplicateBasename is returned when two keys would land on the same local file
	ErrDuplicateBasename = errors.New("objects share a local file name")
	// ErrTransferFailed wraps local or remote I/O failures
	ErrTransferFailed = errors.New("transfer failed")
	// ErrUnknownPolicy is returned for an unsupported multi-match policy
	ErrUnknownPolicy = errors.New("unknown multi-match policy")
)
