package main

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the store, supervisor and installer.
var (
	ErrServerNotFound = errors.New("server not found")
	ErrProxyNotFound  = errors.New("proxy not found")
	ErrDuplicateProxy = errors.New("proxy name already used by this server")

	ErrAlreadySetup = errors.New("password already configured")
	ErrNotSetup     = errors.New("password not configured")

	ErrAlreadyRunning   = errors.New("frpc is already running for this server")
	ErrNotRunning       = errors.New("frpc is not running for this server")
	ErrFrpcNotInstalled = errors.New("frpc binary not found, please install frpc first")

	ErrNoMatchingAsset    = errors.New("no release asset matches this platform")
	ErrBinaryNotInArchive = errors.New("frpc binary not found in archive")
	ErrUnsupportedArchive = errors.New("unsupported archive format, expected .zip or .tar.gz")
)

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
