// drv_error.go is a driver that fails to set up, so that error-paths
// can be tested.

package consolein

import (
	"fmt"
)

// ErrorInput is an input driver that always fails.
type ErrorInput struct {
}

// Setup always fails.
func (ei *ErrorInput) Setup() error {
	return fmt.Errorf("the error driver always fails")
}

// TearDown always fails.
func (ei *ErrorInput) TearDown() error {
	return fmt.Errorf("the error driver always fails")
}

// Poll never has input.
func (ei *ErrorInput) Poll() (uint8, bool) {
	return 0, false
}

// GetName is part of the module API, and returns the name of this
// driver.
func (ei *ErrorInput) GetName() string {
	return "error"
}

// init registers our driver, by name.
func init() {
	Register("error", func() InputDriver {
		return new(ErrorInput)
	})
}
