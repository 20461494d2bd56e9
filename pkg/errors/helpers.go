package errors

import "errors"

// IsConnectionError checks if an error reports a missing or failed backend.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var connErr *ConnectionError
	return errors.As(err, &connErr) || errors.Is(err, ErrNoConnection)
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}

	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsTransportError checks if an error came from a collaborator.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}

	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsInputError checks if an error is an input error.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}

	var inputErr *InputError
	return errors.As(err, &inputErr) || errors.Is(err, ErrNoFile)
}

// ShouldRetry checks if an operation should be retried based on the error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return IsRetryable(customErr.Code())
	}

	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	if err == nil {
		return CodeOK
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Code()
	}

	switch {
	case errors.Is(err, ErrNoConnection):
		return CodeConnection
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrMissingOption):
		return CodeConfiguration
	case errors.Is(err, ErrNotImplemented):
		return CodeUnimplemented
	case errors.Is(err, ErrNoFile):
		return CodeInput
	default:
		return CodeInternal
	}
}

// GetErrorMessage extracts a human-readable message from an error.
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var customErr Error
	if errors.As(err, &customErr) {
		return customErr.Message()
	}

	return err.Error()
}

// Cause returns the underlying cause of an error.
// It unwraps the error chain until it finds the root cause.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		underlying := unwrapper.Unwrap()
		if underlying == nil {
			return err
		}
		err = underlying
	}
}
