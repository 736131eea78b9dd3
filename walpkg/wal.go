package walpkg

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vecdb/vecdb/fsutil"
)

// FsyncMode controls when appended records become durable on disk.
type FsyncMode int

const (
	// FsyncPerOp fsyncs after every single append — maximum durability,
	// minimum throughput.
	FsyncPerOp FsyncMode = iota
	// FsyncInterval batches fsyncs on a timer, trading a small durability
	// window (at most one interval of acknowledged-but-unsynced writes)
	// for throughput under write bursts.
	FsyncInterval
)

// WAL appends records to a single on-disk log file and fsyncs them
// according to its configured mode.
type WAL struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	seq    atomic.Uint64

	mode           FsyncMode
	interval       time.Duration
	stopCh         chan struct{}
	tickerDoneCh   chan struct{}
	dirtySinceSync atomic.Bool
}

// Open opens (creating if needed) the WAL file at path in append mode.
// lastSeq should be the highest sequence number already durable (from a
// prior snapshot or a previous open), so Append continues numbering from
// there.
func Open(path string, lastSeq uint64, mode FsyncMode, interval time.Duration) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	w := &WAL{
		path:     path,
		file:     f,
		writer:   bufio.NewWriter(f),
		mode:     mode,
		interval: interval,
	}
	w.seq.Store(lastSeq)

	if mode == FsyncInterval {
		w.stopCh = make(chan struct{})
		w.tickerDoneCh = make(chan struct{})
		go w.groupCommitLoop()
	}

	return w, nil
}

func (w *WAL) groupCommitLoop() {
	defer close(w.tickerDoneCh)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.dirtySinceSync.Load() {
				w.mu.Lock()
				_ = w.syncLocked()
				w.mu.Unlock()
			}
		}
	}
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	w.dirtySinceSync.Store(false)
	return w.file.Sync()
}

// Append writes rec and, depending on mode, fsyncs before returning.
// Seq is assigned internally (monotonically increasing) and returned so
// the caller can record it as "durable as of" on success.
func (w *WAL) Append(ctx context.Context, recType RecordType, body []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	seq := w.seq.Add(1)
	rec := Record{Seq: seq, Type: recType, Body: body}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := Encode(w.writer, rec); err != nil {
		return 0, err
	}

	if w.mode == FsyncPerOp {
		if err := w.syncLocked(); err != nil {
			return 0, err
		}
	} else {
		if err := w.writer.Flush(); err != nil {
			return 0, err
		}
		w.dirtySinceSync.Store(true)
	}

	return seq, nil
}

// CurrentSeq returns the highest sequence number appended so far.
func (w *WAL) CurrentSeq() uint64 {
	return w.seq.Load()
}

// Bump advances the sequence counter to at least seq, used after an
// explicit reload swaps in state recovered independently of this WAL's
// own append history — the next Append must never reissue a sequence
// number the reloaded state already accounted for.
func (w *WAL) Bump(seq uint64) {
	for {
		cur := w.seq.Load()
		if seq <= cur || w.seq.CompareAndSwap(cur, seq) {
			return
		}
	}
}

// Checkpoint rewrites the WAL to retain only frames with a sequence
// number greater than snapshotSeq — the frames a just-taken snapshot did
// not already capture. It must never drop a frame the snapshot didn't
// see, or a mutation acknowledged between the snapshot's read and this
// call would be lost on the next crash; keeping the whole tail (rather
// than truncating to empty) is what makes that safe.
func (w *WAL) Checkpoint(snapshotSeq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.syncLocked(); err != nil {
		return err
	}

	tail, err := readTailRecords(w.path, snapshotSeq)
	if err != nil {
		return err
	}

	if err := fsutil.WriteAtomic(w.path, func(buf *bufio.Writer) error {
		for _, rec := range tail {
			if err := Encode(buf, rec); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := w.file.Close(); err != nil {
		return err
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	return nil
}

// readTailRecords reads every valid frame from path with a sequence
// number greater than afterSeq, stopping cleanly at the first truncated
// or corrupt frame just like Replay does.
func readTailRecords(path string, afterSeq uint64) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var tail []Record
	for {
		rec, err := Decode(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrShortRecord) || errors.Is(err, ErrCorruptRecord) {
				break
			}
			return nil, err
		}
		if rec.Seq > afterSeq {
			tail = append(tail, rec)
		}
	}
	return tail, nil
}

// Close flushes, fsyncs, and closes the underlying file.
func (w *WAL) Close() error {
	if w.stopCh != nil {
		close(w.stopCh)
		<-w.tickerDoneCh
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// Replay reads every valid frame from the WAL file at path whose
// sequence number is greater than afterSeq, calling fn for each in
// order. It stops — without returning an error — at the first
// truncated or corrupt frame, since that is the expected shape of a
// WAL tail after a crash mid-append. ctx is checked between frames, so
// a cancelled recovery stops promptly instead of replaying a
// potentially large tail to completion; ctx.Err() is returned as-is on
// cancellation.
func Replay(ctx context.Context, path string, afterSeq uint64, fn func(Record) error) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return afterSeq, nil
		}
		return afterSeq, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	lastSeq := afterSeq

	for {
		if err := ctx.Err(); err != nil {
			return lastSeq, err
		}

		rec, err := Decode(r)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrShortRecord) || errors.Is(err, ErrCorruptRecord) {
				break
			}
			return lastSeq, err
		}
		if rec.Seq <= afterSeq {
			continue
		}
		if err := fn(rec); err != nil {
			return lastSeq, err
		}
		if rec.Seq > lastSeq {
			lastSeq = rec.Seq
		}
	}

	return lastSeq, nil
}
