package service

// ValidationError rejects a caller-correctable request with a message naming
// the specific rule broken.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(message string) error {
	return &ValidationError{Message: message}
}
