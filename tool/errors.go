package tool

import "fmt"

// ErrAlreadyRegistered is returned when registering a tool with a duplicate name.
type ErrAlreadyRegistered struct {
	Name string
}

// Error returns a formatted error message including the duplicate tool name.
func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("tool: already registered: %s", e.Name)
}
