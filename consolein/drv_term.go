// drv_term.go uses the Termbox library to handle console-based input.
//
// A goroutine is launched which collects any keyboard input and saves
// that to a buffer where the main loop's Poll peels it off on-demand.
//
// The portability of this solution is unknown, however this driver
// seems reasonable and is the default.

package consolein

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/nsf/termbox-go"
	"golang.org/x/term"
)

// TermboxInput is our interactive input driver, using termbox.
type TermboxInput struct {

	// oldState contains the state of the terminal, before switching
	// to RAW mode.
	oldState *term.State

	// cancel stops the polling goroutine.
	cancel context.CancelFunc

	// mu guards keyBuffer, which the polling goroutine appends to.
	mu        sync.Mutex
	keyBuffer []uint8
}

// Setup switches the terminal to raw mode and starts collecting
// keyboard input in the background.
func (ti *TermboxInput) Setup() error {

	var err error

	// switch STDIN into 'raw' mode - we must do this before we setup
	// termbox.
	ti.oldState, err = term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("error making raw terminal %s", err)
	}

	if err := termbox.Init(); err != nil {
		return fmt.Errorf("error initializing termbox %s", err)
	}

	// This is "Show Cursor", which termbox hides by default.
	fmt.Printf("\x1b[?25h")

	ctx, cancel := context.WithCancel(context.Background())
	ti.cancel = cancel

	go ti.pollKeyboard(ctx)
	return nil
}

// pollKeyboard runs in a goroutine and collects keyboard input into a
// buffer to be read in the future.
func (ti *TermboxInput) pollKeyboard(ctx context.Context) {
	for {
		// Are we done?
		select {
		case <-ctx.Done():
			return
		default:
			// NOP
		}

		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			ti.mu.Lock()
			if ev.Ch != 0 {
				ti.keyBuffer = append(ti.keyBuffer, uint8(ev.Ch))
			} else {
				ti.keyBuffer = append(ti.keyBuffer, uint8(ev.Key))
			}
			ti.mu.Unlock()
		}
	}
}

// TearDown stops the polling goroutine and restores the terminal.
func (ti *TermboxInput) TearDown() error {
	if ti.cancel != nil {
		ti.cancel()
	}

	termbox.Close()

	if ti.oldState != nil {
		return term.Restore(int(os.Stdin.Fd()), ti.oldState)
	}
	return nil
}

// Poll returns the next buffered keystroke, if any.
func (ti *TermboxInput) Poll() (uint8, bool) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	if len(ti.keyBuffer) == 0 {
		return 0, false
	}
	c := ti.keyBuffer[0]
	ti.keyBuffer = ti.keyBuffer[1:]
	return c, true
}

// GetName is part of the module API, and returns the name of this
// driver.
func (ti *TermboxInput) GetName() string {
	return "term"
}

// init registers our driver, by name.
func init() {
	Register("term", func() InputDriver {
		return new(TermboxInput)
	})
}
