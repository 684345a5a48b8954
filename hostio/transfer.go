// Host file transfer for the guest R8/W8 utilities.
//
// The guest moves one byte per HBIOS call, so this is deliberately a
// byte-granular API over buffered host files.

package hostio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Transfer is the host side of the guest file-transfer utilities.
type Transfer interface {

	// OpenRead starts a host-to-guest transfer of the named file.
	OpenRead(name string) error

	// ReadByte returns the next byte, or io.EOF at the end.
	ReadByte() (byte, error)

	// CloseRead finishes a host-to-guest transfer.
	CloseRead() error

	// OpenWrite starts a guest-to-host transfer into the named file.
	OpenWrite(name string) error

	// WriteByte appends one byte to the transfer.
	WriteByte(b byte) error

	// CloseWrite finishes a guest-to-host transfer.
	CloseWrite() error
}

// OSTransfer implements Transfer against a single host directory.
//
// Guest-supplied names are flattened to their base component, which
// keeps a guest from reaching outside the transfer directory.
type OSTransfer struct {
	dir string

	rf *os.File
	r  *bufio.Reader

	wf *os.File
	w  *bufio.Writer
}

// NewOSTransfer builds a Transfer rooted at the given directory.
func NewOSTransfer(dir string) *OSTransfer {
	return &OSTransfer{dir: dir}
}

// cleanName flattens a guest-supplied filename.
func (t *OSTransfer) cleanName(name string) string {
	name = strings.TrimSpace(name)
	return filepath.Join(t.dir, filepath.Base(name))
}

// OpenRead starts a host-to-guest transfer.
func (t *OSTransfer) OpenRead(name string) error {
	if t.rf != nil {
		return fmt.Errorf("a read transfer is already open")
	}

	f, err := os.Open(t.cleanName(name))
	if err != nil {
		return err
	}
	t.rf = f
	t.r = bufio.NewReader(f)
	return nil
}

// ReadByte returns the next byte of the open read transfer.
func (t *OSTransfer) ReadByte() (byte, error) {
	if t.r == nil {
		return 0, fmt.Errorf("no read transfer is open")
	}
	b, err := t.r.ReadByte()
	if err != nil {
		return 0, err
	}
	return b, nil
}

// CloseRead finishes the read transfer.
func (t *OSTransfer) CloseRead() error {
	if t.rf == nil {
		return nil
	}
	err := t.rf.Close()
	t.rf = nil
	t.r = nil
	return err
}

// OpenWrite starts a guest-to-host transfer.
func (t *OSTransfer) OpenWrite(name string) error {
	if t.wf != nil {
		return fmt.Errorf("a write transfer is already open")
	}

	f, err := os.Create(t.cleanName(name))
	if err != nil {
		return err
	}
	t.wf = f
	t.w = bufio.NewWriter(f)
	return nil
}

// WriteByte appends one byte to the open write transfer.
func (t *OSTransfer) WriteByte(b byte) error {
	if t.w == nil {
		return fmt.Errorf("no write transfer is open")
	}
	return t.w.WriteByte(b)
}

// CloseWrite flushes and finishes the write transfer.
func (t *OSTransfer) CloseWrite() error {
	if t.wf == nil {
		return nil
	}
	var err error
	if t.w != nil {
		err = t.w.Flush()
	}
	if cerr := t.wf.Close(); err == nil {
		err = cerr
	}
	t.wf = nil
	t.w = nil
	return err
}

var _ Transfer = (*OSTransfer)(nil)
