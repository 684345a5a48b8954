// Package consolein handles the reading of console input for the
// emulator's terminal front-end.
//
// Drivers collect keystrokes however they like - a raw terminal, a
// scripted file, nothing at all - and the main loop polls them,
// forwarding each character into the engine's input queue.  Note that
// no output functions live in this package; it is exclusively input.
package consolein

import (
	"fmt"
	"strings"
)

// InputDriver is the interface a console input driver implements.
type InputDriver interface {

	// Setup prepares the driver (e.g. switches the terminal to raw
	// mode).
	Setup() error

	// TearDown restores whatever Setup changed.
	TearDown() error

	// Poll returns the next pending character, if any.
	Poll() (uint8, bool)

	// GetName returns the name of the driver.
	GetName() string
}

// Constructor is the signature of a driver factory function.
type Constructor func() InputDriver

// This is a map of known drivers.
var handlers = struct {
	m map[string]Constructor
}{m: make(map[string]Constructor)}

// Register makes an input driver available, by name.
func Register(name string, obj Constructor) {
	name = strings.ToLower(name)
	handlers.m[name] = obj
}

// ConsoleIn holds our state: the driver doing the real work.
type ConsoleIn struct {
	driver InputDriver
}

// New is our constructor; it creates an input device using the driver
// with the specified name.
//
// Driver names may carry a colon-separated option suffix, which is
// passed to the driver's SetOption method when the driver has one.
func New(name string) (*ConsoleIn, error) {
	base := strings.ToLower(strings.Split(name, ":")[0])

	ctor, ok := handlers.m[base]
	if !ok {
		return nil, fmt.Errorf("failed to lookup driver by name '%s'", base)
	}

	obj := ctor()
	if o, ok := obj.(optionTaker); ok {
		parts := strings.SplitN(name, ":", 2)
		if len(parts) == 2 {
			o.SetOption(parts[1])
		}
	}

	return &ConsoleIn{driver: obj}, nil
}

// optionTaker is implemented by drivers that accept an option string.
type optionTaker interface {
	SetOption(opt string)
}

// Setup prepares the active driver.
func (ci *ConsoleIn) Setup() error {
	return ci.driver.Setup()
}

// TearDown restores the active driver.
func (ci *ConsoleIn) TearDown() error {
	return ci.driver.TearDown()
}

// Poll returns the next pending character, if any.
func (ci *ConsoleIn) Poll() (uint8, bool) {
	return ci.driver.Poll()
}

// GetName returns the name of the active driver.
func (ci *ConsoleIn) GetName() string {
	return ci.driver.GetName()
}

// GetDrivers returns the names of user-facing drivers; "error" is for
// tests only.
func GetDrivers() []string {
	valid := []string{}
	for x := range handlers.m {
		if x != "error" {
			valid = append(valid, x)
		}
	}
	return valid
}
