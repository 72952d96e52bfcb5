package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/phillip/newvision-backend/store"
)

var validate = validator.New()

var (
	ErrNotFound = store.ErrNotFound
	// ErrConflict is returned when a guarded update keeps losing to
	// concurrent writers.
	ErrConflict = errors.New("concurrent update conflict")
)

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Error: msg})
}

// email flags a non-empty value that is not an email address.
func (e *ValidationError) email(field, value string) {
	if value != "" && validate.Var(value, "email") != nil {
		e.add(field, "must be a valid email address")
	}
}

// orNil lets validators build the error unconditionally.
func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// PartialCascadeError reports that a payment was stored but a dependent
// step (balance or summary) failed afterwards. The transaction is not
// rolled back.
type PartialCascadeError struct {
	TransactionID string
	Step          string
	Err           error
}

func (e *PartialCascadeError) Error() string {
	return fmt.Sprintf("payment %s recorded but %s update failed: %v", e.TransactionID, e.Step, e.Err)
}

func (e *PartialCascadeError) Unwrap() error {
	return e.Err
}

func notFound(what string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", what, err)
}
