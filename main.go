// entry point

package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"github.com/z80wbw/wbwemu/consolein"
	"github.com/z80wbw/wbwemu/consoleout"
	"github.com/z80wbw/wbwemu/engine"
	"github.com/z80wbw/wbwemu/firmware"
	"github.com/z80wbw/wbwemu/hostio"
	"github.com/z80wbw/wbwemu/version"
)

// exitKey stops the emulator: Ctrl-\.
const exitKey = 0x1C

// sliceCountForDisks is the auto-slice policy: fewer disks get more
// slices, so the drive map stays within sixteen letters.
func sliceCountForDisks(disks int) int {
	switch {
	case disks <= 1:
		return 8
	case disks == 2:
		return 4
	default:
		return 2
	}
}

func main() {

	romPath := getopt.StringLong("rom", 'r', "", "ROM image to load into bank 0 (default: built-in firmware)")
	romldrPath := getopt.StringLong("romldr", 'R', "", "full RomWBW image for banks 1-15 (bank 0 stays built-in)")
	bootString := getopt.StringLong("boot", 'b', "", "string to auto-type at the boot prompt")
	inDriver := getopt.StringLong("input", 'i', "term", "console input driver (term, file:PATH)")
	outDriver := getopt.StringLong("output", 'o', "ansi", "console output driver")
	createPath := getopt.StringLong("create", 'c', "", "create a blank 8MB disk image at PATH and exit")
	showVersion := getopt.BoolLong("version", 'v', "show the version and exit")
	getopt.SetParameters("[disk.img ...]")
	getopt.Parse()

	if *showVersion {
		fmt.Print(version.GetVersionBanner())
		return
	}

	// Setup our logging level - default to warnings or higher.
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)

	// But show "everything" if $DEBUG is non-empty.
	if os.Getenv("DEBUG") != "" {
		lvl.Set(slog.LevelDebug)
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	}))

	host := hostio.NewDefault(log)

	if *createPath != "" {
		if err := host.Disks.Create(*createPath, hostio.HD1KSingle); err != nil {
			fmt.Printf("Error creating %s: %s\n", *createPath, err)
			os.Exit(1)
		}
		fmt.Printf("Created %s\n", *createPath)
		return
	}

	// Console output driver.
	out, err := consoleout.New(*outDriver)
	if err != nil {
		fmt.Printf("Error setting up the output driver: %s\n", err)
		os.Exit(1)
	}

	// Console input driver.
	in, err := consolein.New(*inDriver)
	if err != nil {
		fmt.Printf("Error setting up the input driver: %s\n", err)
		os.Exit(1)
	}

	// Create the emulator engine.
	emu := engine.New(host, log)
	emu.SetOutputCallback(func(ch uint8) {
		out.PutCharacter(ch)
	})

	// Load the ROM: a user-supplied image, or the built-in firmware.
	if *romPath != "" {
		if !emu.LoadROM(*romPath) {
			fmt.Printf("Error loading ROM %s\n", *romPath)
			os.Exit(1)
		}
	} else {
		emu.LoadROMFromData(firmware.Build(firmware.DefaultOptions))
	}

	if *romldrPath != "" {
		if !emu.LoadROMLoader(*romldrPath) {
			fmt.Printf("Error loading romldr image %s\n", *romldrPath)
			os.Exit(1)
		}
	}

	// Attach the disks named on the command line, with the auto-slice
	// policy.
	disks := getopt.Args()
	slices := sliceCountForDisks(len(disks))
	for i, path := range disks {
		if !emu.LoadDisk(i, path) {
			fmt.Printf("Error loading disk %s\n", path)
			os.Exit(1)
		}
		emu.SetDiskSliceCount(i, slices)
	}

	if *bootString != "" {
		emu.SetBootString(*bootString)
	}

	// Bring up the terminal last, so error messages above stay
	// readable.
	if err := in.Setup(); err != nil {
		fmt.Printf("Error setting up the console: %s\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = in.TearDown()
	}()

	emu.Start()

	// The main loop: run a batch, drain output, feed keystrokes.
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for emu.IsRunning() {
		<-ticker.C

		for {
			ch, ok := in.Poll()
			if !ok {
				break
			}
			if ch == exitKey {
				emu.Stop()
				break
			}
			emu.SendChar(ch)
		}

		emu.RunBatch(engine.BatchSize)
		emu.FlushOutput()
	}

	emu.FlushOutput()
	_ = emu.HBIOS.FlushDisks()
}
