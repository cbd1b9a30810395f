package types

import "fmt"

// CustomError is a transport-level error carrying the HTTP status and an
// error type label for the JSON envelope. Services never return it; it is
// reserved for middleware and the top-level fiber error handler.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}

// Forbidden builds the 403 returned by the session middleware.
func Forbidden(message, errorType string) *CustomError {
	return &CustomError{Code: 403, Message: message, Type: errorType}
}
