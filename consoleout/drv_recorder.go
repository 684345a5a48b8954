package consoleout

import (
	"io"
	"strings"
)

// RecorderOutputDriver stores everything it is given, so tests can
// inspect what the guest printed.
type RecorderOutputDriver struct {
	out strings.Builder
}

// GetName returns the name of this driver.
//
// This is part of the OutputDriver interface.
func (rd *RecorderOutputDriver) GetName() string {
	return "recorder"
}

// PutCharacter stores the character.
//
// This is part of the OutputDriver interface.
func (rd *RecorderOutputDriver) PutCharacter(c uint8) {
	rd.out.WriteByte(c)
}

// SetWriter is ignored; output is stored, not written.
func (rd *RecorderOutputDriver) SetWriter(w io.Writer) {
}

// GetOutput returns everything recorded so far.
func (rd *RecorderOutputDriver) GetOutput() string {
	return rd.out.String()
}

// Reset discards the recording.
func (rd *RecorderOutputDriver) Reset() {
	rd.out.Reset()
}

// init registers our driver, by name.
func init() {
	Register("recorder", func() OutputDriver {
		return &RecorderOutputDriver{}
	})
}
