// Auxiliary / printer device.
//
// The hardware this stands in for is a serial port with a printer or
// paper-tape unit on it; we fake that with host files, byte at a time.

package hostio

import (
	"bufio"
	"fmt"
	"os"
)

// AuxDevice is the byte-granular auxiliary device.
type AuxDevice struct {
	path string

	rf *os.File
	r  *bufio.Reader

	wf *os.File
	w  *bufio.Writer
}

// NewAuxDevice builds an auxiliary device over the named file.  An
// empty path leaves the device detached.
func NewAuxDevice(path string) *AuxDevice {
	return &AuxDevice{path: path}
}

// SetPath points the device at a different host file, closing any open
// handles first.
func (a *AuxDevice) SetPath(path string) {
	a.Close()
	a.path = path
}

// Ready reports whether the device can accept traffic.
func (a *AuxDevice) Ready() bool {
	return a.path != ""
}

// ReadByte reads the next byte from the device.
func (a *AuxDevice) ReadByte() (byte, error) {
	if a.path == "" {
		return 0, fmt.Errorf("no auxiliary device attached")
	}

	if a.r == nil {
		f, err := os.Open(a.path)
		if err != nil {
			return 0, err
		}
		a.rf = f
		a.r = bufio.NewReader(f)
	}
	return a.r.ReadByte()
}

// WriteByte appends one byte to the device.
func (a *AuxDevice) WriteByte(b byte) error {
	if a.path == "" {
		return fmt.Errorf("no auxiliary device attached")
	}

	if a.w == nil {
		f, err := os.OpenFile(a.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		a.wf = f
		a.w = bufio.NewWriter(f)
	}
	return a.w.WriteByte(b)
}

// Close flushes and releases any open handles.
func (a *AuxDevice) Close() {
	if a.w != nil {
		a.w.Flush()
		a.w = nil
	}
	if a.wf != nil {
		a.wf.Close()
		a.wf = nil
	}
	if a.r != nil {
		a.r = nil
	}
	if a.rf != nil {
		a.rf.Close()
		a.rf = nil
	}
}
