package errors

// Error codes for categorizing errors.
const (
	// CodeOK indicates success (not an error).
	CodeOK = "OK"

	// CodeInternal indicates internal errors.
	CodeInternal = "INTERNAL"

	// CodeCancelled indicates the caller abandoned the operation.
	CodeCancelled = "CANCELLED"

	// CodeConnection indicates no backend is connected, or connecting failed.
	CodeConnection = "CONNECTION_ERROR"

	// CodeConfiguration indicates an unknown provider or a missing call option.
	CodeConfiguration = "CONFIGURATION_ERROR"

	// CodeTransport indicates a collaborator (RPC node, IPFS daemon,
	// messaging transport) reported an error.
	CodeTransport = "TRANSPORT_ERROR"

	// CodeInput indicates the caller supplied unusable input, such as an
	// empty file selection or a malformed content address.
	CodeInput = "INPUT_ERROR"

	// CodeUnimplemented indicates a recognized provider that has no backend yet.
	CodeUnimplemented = "UNIMPLEMENTED"

	// CodeSerialization indicates a payload could not be encoded or decoded.
	CodeSerialization = "SERIALIZATION_ERROR"
)

// IsRetryable reports whether an error code marks a condition that may
// clear on its own. Only transport and connection failures qualify.
func IsRetryable(code string) bool {
	switch code {
	case CodeTransport, CodeConnection:
		return true
	default:
		return false
	}
}
