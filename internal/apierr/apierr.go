// Package apierr is the error model shared by the HTTP-facing packages.
package apierr

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Code is the machine-readable error code in the response body.
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

// Error is an error with a client-facing code and message.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// Invalid builds an INVALID_ARGUMENT error.
func Invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a NOT_FOUND error.
func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) *Error { return &Error{Code: CodeForbidden, Message: msg} }

// CodeOf returns the code carried by err, or CodeInternal for anything untyped.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type body struct {
	Error Error `json:"error"`
}

// Write renders err as {"error":{"code","message"}}. Untyped errors become INTERNAL and keep
// the underlying message so storage failures stay diagnosable by the caller.
func Write(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		e = &Error{Code: CodeInternal, Message: err.Error()}
	}
	c.AbortWithStatusJSON(HTTPStatus(e), body{Error: *e})
}
