// drv_file.go replays input from a file, one keystroke per Poll.
//
// This is used for scripted and automated runs: the option string
// names the file to replay.

package consolein

import (
	"fmt"
	"os"
)

// FileInput is our scripted input driver.
type FileInput struct {

	// path is the file to replay.
	path string

	// content holds the unconsumed keystrokes.
	content []uint8
}

// SetOption records the path to replay.
func (fi *FileInput) SetOption(opt string) {
	fi.path = opt
}

// Setup loads the script file.
func (fi *FileInput) Setup() error {
	if fi.path == "" {
		return fmt.Errorf("the file driver needs a path, e.g. file:script.txt")
	}

	data, err := os.ReadFile(fi.path)
	if err != nil {
		return err
	}
	fi.content = data
	return nil
}

// TearDown is a no-op for this driver.
func (fi *FileInput) TearDown() error {
	return nil
}

// Poll returns the next scripted keystroke, if any remain.
func (fi *FileInput) Poll() (uint8, bool) {
	if len(fi.content) == 0 {
		return 0, false
	}
	c := fi.content[0]
	fi.content = fi.content[1:]
	return c, true
}

// GetName is part of the module API, and returns the name of this
// driver.
func (fi *FileInput) GetName() string {
	return "file"
}

// init registers our driver, by name.
func init() {
	Register("file", func() InputDriver {
		return new(FileInput)
	})
}
