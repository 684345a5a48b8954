// Package consoleout is an abstraction over terminal output.
//
// The engine hands us the characters the guest writes; a driver decides
// how they reach the user.  We know we need a plain ANSI pass-through,
// and the tests need a recorder, so we have a factory that can
// instantiate and change a driver given just a name.
package consoleout

import (
	"fmt"
	"io"
	"strings"
)

// OutputDriver is the interface a console output driver implements.
//
// Providing this interface is implemented an object may register
// itself, by name, via the Register method.
type OutputDriver interface {

	// PutCharacter writes one guest character to the driver's writer.
	PutCharacter(c uint8)

	// GetName returns the name of the driver.
	GetName() string

	// SetWriter updates the writer the driver sends output to.
	SetWriter(w io.Writer)
}

// Constructor is the signature of a driver factory function.
type Constructor func() OutputDriver

// This is a map of known drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes a console driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// ConsoleOut holds our state, which is basically just a pointer to the
// object handling our output.
type ConsoleOut struct {

	// driver is the thing that actually writes our output.
	driver OutputDriver
}

// New is our constructor; it creates an output device using the
// driver with the specified name.
func New(name string) (*ConsoleOut, error) {
	name = strings.ToLower(name)

	ctor, ok := handlers.m[name]
	if !ok {
		return nil, fmt.Errorf("failed to lookup driver by name '%s'", name)
	}

	return &ConsoleOut{
		driver: ctor(),
	}, nil
}

// GetDriver returns the active driver.
func (co *ConsoleOut) GetDriver() OutputDriver {
	return co.driver
}

// ChangeDriver switches to a different driver at runtime.
func (co *ConsoleOut) ChangeDriver(name string) error {
	ctor, ok := handlers.m[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("failed to lookup driver by name '%s'", name)
	}

	co.driver = ctor()
	return nil
}

// GetName returns the name of the active driver.
func (co *ConsoleOut) GetName() string {
	return co.driver.GetName()
}

// GetDrivers returns the names of user-facing drivers.  The internal
// "null" and "recorder" drivers are hidden.
func (co *ConsoleOut) GetDrivers() []string {
	valid := []string{}

	for x := range handlers.m {
		if x != "null" && x != "recorder" {
			valid = append(valid, x)
		}
	}
	return valid
}

// PutCharacter outputs a character via the active driver.
func (co *ConsoleOut) PutCharacter(c uint8) {
	co.driver.PutCharacter(c)
}

// WriteString outputs a whole string via the active driver.
func (co *ConsoleOut) WriteString(s string) {
	for _, c := range []uint8(s) {
		co.driver.PutCharacter(c)
	}
}
