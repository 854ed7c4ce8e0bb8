package services

import (
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrValidation wraps a *validation.FieldError; the handler answers 400 with its message.
	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("username or email is already registered")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrSelfDelete         = errors.New("you cannot delete your own account")
)

// Loggers are the request-scoped loggers a service call writes to.
// File carries operational logs; Audit records account events.
type Loggers struct {
	File  *zap.Logger
	Audit *zap.Logger
}

func (l Loggers) withDefaults(base *zap.Logger) Loggers {
	if l.File == nil {
		l.File = base
	}
	if l.File == nil {
		l.File = zap.NewNop()
	}
	if l.Audit == nil {
		l.Audit = zap.NewNop()
	}
	return l
}
