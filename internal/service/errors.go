package service

import "fmt"

// ValidationError rejects opt-in input before anything is persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// EmailDeliveryError means the provider refused the confirmation email.
type EmailDeliveryError struct {
	Err error
}

func (e *EmailDeliveryError) Error() string {
	return "send confirmation email: " + e.Err.Error()
}

func (e *EmailDeliveryError) Unwrap() error {
	return e.Err
}
