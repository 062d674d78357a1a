package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindBadRequest ErrorKind = iota + 1
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindBadRequest:
		return "bad request"
	case KindNotFound:
		return "not found"
	}
	return "error"
}

// Error is a client-facing failure. Store and cache failures are never wrapped
// in it; they surface unchanged.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func BadRequest(format string, args ...any) error {
	return &Error{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func IsBadRequest(err error) bool { return kindOf(err) == KindBadRequest }

func IsNotFound(err error) bool { return kindOf(err) == KindNotFound }

func kindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
