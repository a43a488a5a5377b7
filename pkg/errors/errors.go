package apperrors

import "errors"

// Configuration errors
var (
	ErrMissingAddress   = errors.New("missing contract address")
	ErrUnknownToken     = errors.New("unknown token")
	ErrUnknownProtocol  = errors.New("unknown protocol")
	ErrUnknownOperation = errors.New("unknown operation definition")
)

// Assembly errors
var (
	ErrInvalidDependency  = errors.New("invalid dependency map")
	ErrDefinitionMismatch = errors.New("operation does not match its definition")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// External I/O errors
var (
	ErrQuoteFailed = errors.New("swap quote failed")
	ErrStateRead   = errors.New("state read failed")
)
