package services

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// InvalidInputError неверный или несуществующий объект запроса
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string { return e.Msg }

func (e *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

// ForbiddenError пользователь известен, но действие ему запрещено
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

func invalidInput(msg string) error { return &InvalidInputError{Msg: msg} }

func forbidden(msg string) error { return &ForbiddenError{Msg: msg} }
