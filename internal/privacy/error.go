package privacy

// SanitizedError carries a scrubbed message while keeping the original
// error reachable through Unwrap.
type SanitizedError struct {
	original     error
	sanitizedMsg string
}

func (e *SanitizedError) Error() string {
	return e.sanitizedMsg
}

func (e *SanitizedError) Unwrap() error {
	return e.original
}

// WrapError scrubs URLs from err's message. It returns nil for a nil err.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &SanitizedError{original: err, sanitizedMsg: ScrubMessage(err.Error())}
}
