package domain

import (
	"errors"
	"strings"
)

// ErrorKind clasifica errores de negocio para que el transporte los mapee.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
)

// Error es un fallo de negocio clasificado. Violations acumula todas las
// reglas incumplidas cuando la validacion falla por mas de un motivo.
type Error struct {
	Kind       ErrorKind
	Message    string
	Violations []string
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		return e.Message + ": " + strings.Join(e.Violations, "; ")
	}
	return e.Message
}

// NewValidation construye un error de validacion con sus reglas incumplidas.
func NewValidation(message string, violations ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Violations: violations}
}

// NewConflict construye un error por recurso duplicado.
func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// NewUnauthorized construye un error de credenciales o estado no autorizado.
func NewUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// NewNotFound construye un error por recurso inexistente no sensible.
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// KindOf devuelve la clase del error o cadena vacia si no es un Error de negocio.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
