package consoleout

import (
	"io"
)

// NullOutputDriver discards everything; useful when the embedder only
// wants the status callbacks.
type NullOutputDriver struct {
}

// GetName returns the name of this driver.
//
// This is part of the OutputDriver interface.
func (nd *NullOutputDriver) GetName() string {
	return "null"
}

// PutCharacter does nothing.
//
// This is part of the OutputDriver interface.
func (nd *NullOutputDriver) PutCharacter(c uint8) {
}

// SetWriter is ignored; there is no output.
func (nd *NullOutputDriver) SetWriter(w io.Writer) {
}

// init registers our driver, by name.
func init() {
	Register("null", func() OutputDriver {
		return &NullOutputDriver{}
	})
}
