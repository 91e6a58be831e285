// Package apperrors defines the error taxonomy shared by the service,
// repository and HTTP layers.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is matched by every NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrConflict is matched by every ConflictError via errors.Is.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a rejected request. Nothing is persisted when one
// is returned.
type ValidationError struct {
	Field   string                 `json:"field"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewItemValidationError builds a validation error for one order line.
func NewItemValidationError(index int, productID int64, message string) *ValidationError {
	return &ValidationError{
		Field:   fmt.Sprintf("items[%d]", index),
		Message: message,
		Details: map[string]interface{}{
			"item_index": index,
			"product_id": productID,
		},
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NotFoundError identifies the missing resource.
type NotFoundError struct {
	Resource string
	ID       int64
	Details  map[string]interface{}
}

func NewNotFoundError(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewProductNotFoundError is returned when an order line references a
// product that does not exist in the catalog.
func NewProductNotFoundError(index int, productID int64) *NotFoundError {
	return &NotFoundError{
		Resource: "product",
		ID:       productID,
		Details: map[string]interface{}{
			"item_index": index,
			"product_id": productID,
		},
	}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

type ConflictError struct {
	Field   string
	Message string
}

func NewConflictError(field, message string) *ConflictError {
	return &ConflictError{Field: field, Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
