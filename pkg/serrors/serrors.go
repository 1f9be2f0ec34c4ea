package serrors

import "fmt"

// Base is a coded error carried across service boundaries.
type Base struct {
	Code    string
	Message string
	Hint    string
}

func (e *Base) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code, message, hint string) *Base {
	return &Base{Code: code, Message: message, Hint: hint}
}
