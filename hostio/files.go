// Plain-file and disk-image-file access.

package hostio

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Files is byte-vector file access for ROM images and saved disks.
type Files interface {

	// Load reads a whole file.
	Load(path string) ([]uint8, error)

	// LoadInto reads a file into the given buffer, returning the byte
	// count.
	LoadInto(path string, buf []uint8) (int, error)

	// Save writes a whole file.
	Save(path string, data []uint8) error

	// Exists reports whether the path names a file.
	Exists(path string) bool

	// Size returns the file size in bytes.
	Size(path string) (int64, error)
}

// OSFiles implements Files against the host filesystem.
type OSFiles struct{}

// Load reads a whole file.
func (OSFiles) Load(path string) ([]uint8, error) {
	return os.ReadFile(path)
}

// LoadInto reads a file into the given buffer.
func (OSFiles) LoadInto(path string, buf []uint8) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return copy(buf, data), nil
}

// Save writes a whole file.
func (OSFiles) Save(path string, data []uint8) error {
	return os.WriteFile(path, data, 0644)
}

// Exists reports whether the path names a file.
func (OSFiles) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Size returns the file size in bytes.
func (OSFiles) Size(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// OpenMode selects how a disk image file is opened.
type OpenMode int

const (
	// ModeRead opens read-only.
	ModeRead OpenMode = iota

	// ModeReadWrite opens an existing file for update.
	ModeReadWrite

	// ModeCreate opens for update, creating the file if missing.
	ModeCreate
)

// DiskFormat names the image sizes Create can produce.
type DiskFormat int

const (
	// HD1KSingle is a single-slice hd1k image, 8 MB exactly.
	HD1KSingle DiskFormat = iota

	// HD1KCombo is a 1 MB prefix plus sixteen 8 MB slices, 129 MB.
	HD1KCombo
)

// Image-geometry constants shared with the disk store.
const (
	// HD1KSingleSize is 8 MB exactly.
	HD1KSingleSize = 8388608

	// HD1KPrefixSize is the 1 MB combo-image prefix.
	HD1KPrefixSize = 1048576

	// HD512SingleSize is 8.32 MB.
	HD512SingleSize = 8519680

	// HD1KComboSize is a full combo image: prefix plus 16 slices.
	HD1KComboSize = HD1KPrefixSize + 16*HD1KSingleSize
)

// DiskFile is an open disk-image backing file.
type DiskFile interface {

	// ReadAt reads into buf from the absolute offset.
	ReadAt(offset int64, buf []uint8) (int, error)

	// WriteAt writes buf at the absolute offset, extending the file as
	// needed.
	WriteAt(offset int64, buf []uint8) (int, error)

	// Flush commits host-buffered state.
	Flush() error

	// Size returns the current image size.
	Size() (int64, error)

	// Close releases the backing store.
	Close() error
}

// DiskFiles opens and creates disk-image backing files.
type DiskFiles interface {
	Open(path string, mode OpenMode) (DiskFile, error)
	Create(path string, format DiskFormat) error
	FlushAll() error
}

// osDiskFile wraps an *os.File as a DiskFile.
type osDiskFile struct {
	f *os.File
}

func (d *osDiskFile) ReadAt(offset int64, buf []uint8) (int, error) {
	return d.f.ReadAt(buf, offset)
}

func (d *osDiskFile) WriteAt(offset int64, buf []uint8) (int, error) {
	return d.f.WriteAt(buf, offset)
}

func (d *osDiskFile) Flush() error {
	return d.f.Sync()
}

func (d *osDiskFile) Size() (int64, error) {
	fi, err := d.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (d *osDiskFile) Close() error {
	return d.f.Close()
}

// OSDiskFiles implements DiskFiles against the host filesystem, keeping
// track of every open file so FlushAll can commit them together.
type OSDiskFiles struct {
	mu     sync.Mutex
	open   map[*osDiskFile]struct{}
	logger *slog.Logger
}

// NewOSDiskFiles builds an OS-backed DiskFiles.
func NewOSDiskFiles(logger *slog.Logger) *OSDiskFiles {
	return &OSDiskFiles{
		open:   make(map[*osDiskFile]struct{}),
		logger: logger,
	}
}

// Open opens a disk image in the given mode.
func (o *OSDiskFiles) Open(path string, mode OpenMode) (DiskFile, error) {

	var flags int
	switch mode {
	case ModeRead:
		flags = os.O_RDONLY
	case ModeReadWrite:
		flags = os.O_RDWR
	case ModeCreate:
		flags = os.O_RDWR | os.O_CREATE
	default:
		return nil, fmt.Errorf("unknown open mode %d", mode)
	}

	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}

	d := &osDiskFile{f: f}

	o.mu.Lock()
	o.open[d] = struct{}{}
	o.mu.Unlock()

	if o.logger != nil {
		o.logger.Debug("disk image opened",
			slog.String("path", path),
			slog.Int("mode", int(mode)))
	}

	return &trackedDiskFile{d: d, owner: o}, nil
}

// Create writes a zero-filled image of the given format.
func (o *OSDiskFiles) Create(path string, format DiskFormat) error {

	var size int64
	switch format {
	case HD1KSingle:
		size = HD1KSingleSize
	case HD1KCombo:
		size = HD1KComboSize
	default:
		return fmt.Errorf("unknown disk format %d", format)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FlushAll commits every open image.
func (o *OSDiskFiles) FlushAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var first error
	for d := range o.open {
		if err := d.Flush(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// forget removes a closed file from the tracking set.
func (o *OSDiskFiles) forget(d *osDiskFile) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.open, d)
}

// trackedDiskFile forwards to an osDiskFile and unregisters on Close.
type trackedDiskFile struct {
	d     *osDiskFile
	owner *OSDiskFiles
}

func (t *trackedDiskFile) ReadAt(offset int64, buf []uint8) (int, error) {
	return t.d.ReadAt(offset, buf)
}

func (t *trackedDiskFile) WriteAt(offset int64, buf []uint8) (int, error) {
	return t.d.WriteAt(offset, buf)
}

func (t *trackedDiskFile) Flush() error {
	return t.d.Flush()
}

func (t *trackedDiskFile) Size() (int64, error) {
	return t.d.Size()
}

func (t *trackedDiskFile) Close() error {
	t.owner.forget(t.d)
	return t.d.Close()
}
