package hostio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// TestQueueConsole exercises the queue semantics and the output sink.
func TestQueueConsole(t *testing.T) {

	var out []uint8
	q := NewQueueConsole(func(ch uint8) {
		out = append(out, ch)
	})

	if q.HasInput() {
		t.Fatalf("fresh queue should be empty")
	}
	if q.ReadChar() != -1 {
		t.Fatalf("empty queue must return -1")
	}

	q.QueueChar('A')
	q.QueueChar('B')
	if !q.HasInput() {
		t.Fatalf("queue should have input")
	}
	if q.ReadChar() != 'A' || q.ReadChar() != 'B' {
		t.Fatalf("queue order wrong")
	}

	q.QueueChar('C')
	q.ClearQueue()
	if q.HasInput() {
		t.Fatalf("clear did not drain the queue")
	}

	q.WriteChar('!')
	if len(out) != 1 || out[0] != '!' {
		t.Fatalf("output sink missed a character")
	}
}

// TestQueueConsoleConcurrent hammers the queue from two goroutines; the
// race detector is the real assertion here.
func TestQueueConsoleConcurrent(t *testing.T) {

	q := NewQueueConsole(nil)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			q.QueueChar(uint8(i))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			q.ReadChar()
		}
	}()

	wg.Wait()
}

// TestOSFiles round-trips a file through the Files interface.
func TestOSFiles(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "rom.bin")

	var files OSFiles

	if files.Exists(path) {
		t.Fatalf("file should not exist yet")
	}

	if err := files.Save(path, []uint8{1, 2, 3}); err != nil {
		t.Fatalf("save failed: %s", err)
	}
	if !files.Exists(path) {
		t.Fatalf("file should exist")
	}

	sz, err := files.Size(path)
	if err != nil || sz != 3 {
		t.Fatalf("size wrong: %d %v", sz, err)
	}

	data, err := files.Load(path)
	if err != nil || len(data) != 3 || data[2] != 3 {
		t.Fatalf("load wrong: %v %v", data, err)
	}

	buf := make([]uint8, 2)
	n, err := files.LoadInto(path, buf)
	if err != nil || n != 2 || buf[0] != 1 {
		t.Fatalf("load-into wrong: %d %v", n, err)
	}
}

// TestOSDiskFiles covers open modes, create formats and flushing.
func TestOSDiskFiles(t *testing.T) {

	dir := t.TempDir()
	path := filepath.Join(dir, "disk.img")

	disks := NewOSDiskFiles(nil)

	// Opening a missing file read-write fails; create mode succeeds.
	if _, err := disks.Open(path, ModeReadWrite); err == nil {
		t.Fatalf("expected error, got none")
	}

	f, err := disks.Open(path, ModeCreate)
	if err != nil {
		t.Fatalf("create-open failed: %s", err)
	}

	if _, err := f.WriteAt(0x1000, []uint8{0xAA, 0xBB}); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("flush failed: %s", err)
	}

	buf := make([]uint8, 2)
	if _, err := f.ReadAt(0x1000, buf); err != nil {
		t.Fatalf("read failed: %s", err)
	}
	if buf[0] != 0xAA || buf[1] != 0xBB {
		t.Fatalf("read back wrong bytes")
	}

	// Writes past end extend the file.
	sz, _ := f.Size()
	if sz != 0x1002 {
		t.Fatalf("size wrong: %d", sz)
	}

	if err := disks.FlushAll(); err != nil {
		t.Fatalf("flush-all failed: %s", err)
	}
	f.Close()

	// Create fills an image with zeros at the format size.
	single := filepath.Join(dir, "single.img")
	if err := disks.Create(single, HD1KSingle); err != nil {
		t.Fatalf("create failed: %s", err)
	}
	fi, _ := os.Stat(single)
	if fi.Size() != HD1KSingleSize {
		t.Fatalf("single image size wrong: %d", fi.Size())
	}
}

// TestOSTransfer round-trips bytes through the transfer channel.
func TestOSTransfer(t *testing.T) {

	dir := t.TempDir()
	tr := NewOSTransfer(dir)

	// Guest-to-host.
	if err := tr.OpenWrite("OUT.TXT"); err != nil {
		t.Fatalf("open-write failed: %s", err)
	}
	for _, b := range []uint8("hello") {
		if err := tr.WriteByte(b); err != nil {
			t.Fatalf("write-byte failed: %s", err)
		}
	}
	if err := tr.CloseWrite(); err != nil {
		t.Fatalf("close-write failed: %s", err)
	}

	// Path traversal in guest names is flattened away.
	if err := tr.OpenWrite("../evil.txt"); err != nil {
		t.Fatalf("open-write failed: %s", err)
	}
	tr.CloseWrite()
	if _, err := os.Stat(filepath.Join(dir, "evil.txt")); err != nil {
		t.Fatalf("name was not flattened into the transfer dir")
	}

	// Host-to-guest.
	if err := tr.OpenRead("OUT.TXT"); err != nil {
		t.Fatalf("open-read failed: %s", err)
	}
	var got []uint8
	for {
		b, err := tr.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("read-byte failed: %s", err)
			}
			break
		}
		got = append(got, b)
	}
	if string(got) != "hello" {
		t.Fatalf("transfer round trip wrong: %q", got)
	}
	tr.CloseRead()
}

// TestAuxDevice writes through the aux device and reads it back.
func TestAuxDevice(t *testing.T) {

	aux := NewAuxDevice("")
	if aux.Ready() {
		t.Fatalf("detached device should not be ready")
	}
	if err := aux.WriteByte('x'); err == nil {
		t.Fatalf("expected error, got none")
	}

	path := filepath.Join(t.TempDir(), "aux.dat")
	aux.SetPath(path)
	if !aux.Ready() {
		t.Fatalf("attached device should be ready")
	}

	for _, b := range []uint8("lp") {
		if err := aux.WriteByte(b); err != nil {
			t.Fatalf("write failed: %s", err)
		}
	}
	aux.Close()

	aux2 := NewAuxDevice(path)
	b, err := aux2.ReadByte()
	if err != nil || b != 'l' {
		t.Fatalf("read failed: %v %c", err, b)
	}
	aux2.Close()
}

// TestRandomBetween sanity-checks the range contract.
func TestRandomBetween(t *testing.T) {

	r := NewSystemRandom()
	for i := 0; i < 1000; i++ {
		v := r.Between(5, 10)
		if v < 5 || v >= 10 {
			t.Fatalf("value out of range: %d", v)
		}
	}

	if r.Between(7, 7) != 7 {
		t.Fatalf("degenerate range should return min")
	}
}

// TestFixedClock confirms the test clock is stable.
func TestFixedClock(t *testing.T) {

	c := FixedClock{Record: TimeRecord{Year: 2024, Month: 6, Day: 1}}
	if c.Now().Year != 2024 {
		t.Fatalf("fixed clock drifted")
	}
}
