// Package archive appends finalized transaction log entries to a rolling,
// zstd-compressed audit file for cheap long-term retention outside the
// TTL'd idempotency store. It is a diagnostic aid, not part of the 2PC
// control plane: a failure to archive never affects a transfer's outcome.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ledgerflow/twopc/pkg/model"
)

// Writer appends finalized txn records to day-rolled files named
// txns-YYYYMMDD.log.zst under dir.
type Writer struct {
	mu      sync.Mutex
	dir     string
	day     string
	file    *os.File
	encoder *zstd.Encoder
}

// New creates a Writer rooted at dir, creating the directory if needed.
func New(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Append writes one JSON-encoded line for rec, rolling to a new day's file
// if needed.
func (w *Writer) Append(rec *model.TxnRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := time.Now().UTC().Format("20060102")
	if day != w.day {
		if err := w.rollLocked(day); err != nil {
			return err
		}
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal archived record: %w", err)
	}
	line = append(line, '\n')

	if _, err := w.encoder.Write(line); err != nil {
		return fmt.Errorf("write archived record: %w", err)
	}
	// Flush (rather than Close) after every record so a reader can tail the
	// file without waiting for Close; archival is best-effort, not a
	// synchronous durability guarantee like the Participant's state flush.
	return w.encoder.Flush()
}

func (w *Writer) rollLocked(day string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}

	path := filepath.Join(w.dir, fmt.Sprintf("txns-%s.log.zst", day))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("open zstd encoder: %w", err)
	}

	w.day = day
	w.file = f
	w.encoder = enc
	return nil
}

func (w *Writer) closeLocked() error {
	if w.encoder != nil {
		if err := w.encoder.Close(); err != nil {
			return fmt.Errorf("close zstd encoder: %w", err)
		}
		w.encoder = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("close archive file: %w", err)
		}
		w.file = nil
	}
	return nil
}

// Close flushes and closes the current archive file, if any.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}
