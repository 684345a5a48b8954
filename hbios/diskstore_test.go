package hbios

import (
	"testing"

	"github.com/z80wbw/wbwemu/hostio"
)

// TestClassifyImage covers the size classes.
func TestClassifyImage(t *testing.T) {

	tests := []struct {
		size   int64
		prefix int64
		ok     bool
	}{
		{hostio.HD1KSingleSize, 0, true},
		{hostio.HD1KPrefixSize + hostio.HD1KSingleSize, hostio.HD1KPrefixSize, true},
		{hostio.HD1KPrefixSize + 6*hostio.HD1KSingleSize, hostio.HD1KPrefixSize, true},
		{hostio.HD512SingleSize, 0, true},
		{4 * hostio.HD512SingleSize, 0, true},
		{12345, 0, false},
		{0, 0, false},
	}

	for _, tc := range tests {
		prefix, ok := classifyImage(tc.size)
		if ok != tc.ok || prefix != tc.prefix {
			t.Fatalf("classify(%d) = %d,%v want %d,%v",
				tc.size, prefix, ok, tc.prefix, tc.ok)
		}
	}
}

// TestCheckMBR covers the FAT-disk heuristic.
func TestCheckMBR(t *testing.T) {

	img := make([]uint8, hostio.HD1KSingleSize)

	// No signature: fine.
	if CheckMBR(img) != "" {
		t.Fatalf("raw image should pass")
	}

	// Signature with a RomWBW partition: fine.
	img[510] = 0x55
	img[511] = 0xAA
	img[0x1BE+4] = partTypeRomWBW
	if CheckMBR(img) != "" {
		t.Fatalf("RomWBW-partitioned image should pass")
	}

	// FAT partition, no RomWBW one: warn.
	img[0x1BE+4] = partTypeFAT16
	if CheckMBR(img) == "" {
		t.Fatalf("FAT image should warn")
	}

	// No recognised partition but Z80 boot code: stale signature,
	// fine.
	img[0x1BE+4] = 0x00
	img[0] = 0x18
	if CheckMBR(img) != "" {
		t.Fatalf("Z80 boot sector should pass")
	}

	// No partitions, no boot code: warn.
	img[0] = 0x00
	if CheckMBR(img) == "" {
		t.Fatalf("suspect image should warn")
	}

	// Wrong size: never checked.
	if CheckMBR(img[:1024]) != "" {
		t.Fatalf("non-single images are not checked")
	}
}

// TestWriteThrough ensures block writes are mirrored to the backing
// file.
func TestWriteThrough(t *testing.T) {

	dir := t.TempDir()
	disks := hostio.NewOSDiskFiles(nil)

	f, err := disks.Open(dir+"/img.bin", hostio.ModeCreate)
	if err != nil {
		t.Fatalf("open failed: %s", err)
	}

	u := &DiskUnit{
		Type:   DeviceHard,
		data:   make([]uint8, hostio.HD1KSingleSize),
		file:   f,
		slices: 1,
	}

	var buf [SectorSize]uint8
	buf[0] = 0xEE
	if err := u.WriteBlock(3, buf[:]); err != nil {
		t.Fatalf("write failed: %s", err)
	}
	if err := u.Flush(); err != nil {
		t.Fatalf("flush failed: %s", err)
	}

	var got [1]uint8
	if _, err := f.ReadAt(3*SectorSize, got[:]); err != nil {
		t.Fatalf("read-back failed: %s", err)
	}
	if got[0] != 0xEE {
		t.Fatalf("write did not reach the backing file")
	}

	if err := u.Close(); err != nil {
		t.Fatalf("close failed: %s", err)
	}
}
