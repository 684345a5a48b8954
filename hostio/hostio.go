// Package hostio collects the host-side primitives the emulator core
// consumes: console queues, wall-clock time, random numbers, plain
// files, disk-image files, and the file-transfer channel used by the
// guest R8/W8 utilities.
//
// The core never touches globals; it borrows a single HostIO record for
// the duration of a batch.  Embedders can replace any member - the
// tests replace most of them.
package hostio

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Console is the character console the guest talks to.
//
// The input side is a queue: the embedder's UI thread enqueues
// characters, the core dequeues them during CIO-input calls.  The
// output side is a single sink.
type Console interface {

	// HasInput reports whether a character is queued.
	HasInput() bool

	// ReadChar dequeues the next character, or returns -1 if none is
	// queued.
	ReadChar() int

	// QueueChar appends a character to the input queue.
	QueueChar(ch uint8)

	// ClearQueue drains the input queue.
	ClearQueue()

	// WriteChar emits a character to the console output.
	WriteChar(ch uint8)
}

// TimeRecord is the host wall-clock time handed to the guest.
type TimeRecord struct {
	Year    int
	Month   int
	Day     int
	Hour    int
	Minute  int
	Second  int
	Weekday int
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() TimeRecord
}

// Random supplies uniform integers in [min, max).
type Random interface {
	Between(min, max int) int
}

// HostIO is the capability record passed into the core at construction.
type HostIO struct {
	Console  Console
	Clock    Clock
	Rand     Random
	Files    Files
	Disks    DiskFiles
	Transfer Transfer

	Logger *slog.Logger
}

// NewDefault builds a HostIO backed by the host operating system, with
// a queue console whose output is discarded until a sink is installed.
func NewDefault(logger *slog.Logger) *HostIO {
	return &HostIO{
		Console:  NewQueueConsole(nil),
		Clock:    SystemClock{},
		Rand:     NewSystemRandom(),
		Files:    OSFiles{},
		Disks:    NewOSDiskFiles(logger),
		Transfer: NewOSTransfer("."),
		Logger:   logger,
	}
}

// QueueConsole is the standard Console: a mutex-guarded input queue and
// a callback output sink.
//
// The queue is the one structure shared between the embedder's UI
// thread and the batch thread, so access is serialized here.
type QueueConsole struct {
	mu    sync.Mutex
	queue []uint8
	sink  func(ch uint8)
}

// NewQueueConsole builds a console writing output to the given sink,
// which may be nil to discard.
func NewQueueConsole(sink func(ch uint8)) *QueueConsole {
	return &QueueConsole{sink: sink}
}

// SetSink installs the output sink.
func (q *QueueConsole) SetSink(sink func(ch uint8)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sink = sink
}

// HasInput reports whether a character is queued.
func (q *QueueConsole) HasInput() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue) > 0
}

// ReadChar dequeues the next character, or returns -1.
func (q *QueueConsole) ReadChar() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return -1
	}
	ch := q.queue[0]
	q.queue = q.queue[1:]
	return int(ch)
}

// QueueChar appends a character to the input queue.
func (q *QueueConsole) QueueChar(ch uint8) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, ch)
}

// ClearQueue drains the input queue.
func (q *QueueConsole) ClearQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = nil
}

// WriteChar emits a character to the output sink.
func (q *QueueConsole) WriteChar(ch uint8) {
	q.mu.Lock()
	sink := q.sink
	q.mu.Unlock()
	if sink != nil {
		sink(ch)
	}
}

// SystemClock reads the host clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() TimeRecord {
	now := time.Now()
	return TimeRecord{
		Year:    now.Year(),
		Month:   int(now.Month()),
		Day:     now.Day(),
		Hour:    now.Hour(),
		Minute:  now.Minute(),
		Second:  now.Second(),
		Weekday: int(now.Weekday()),
	}
}

// FixedClock always reports the same instant; tests use it.
type FixedClock struct {
	Record TimeRecord
}

// Now returns the fixed instant.
func (f FixedClock) Now() TimeRecord {
	return f.Record
}

// systemRandom wraps math/rand behind the Random interface.
type systemRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSystemRandom returns a time-seeded Random.
func NewSystemRandom() Random {
	return &systemRandom{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Between returns a uniform integer in [min, max).
func (s *systemRandom) Between(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.rng.Intn(max-min)
}
