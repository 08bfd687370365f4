package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tunnelwar.ai/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

type WriterOptions struct {
	// Now drives hourly rotation. Defaults to time.Now.
	Now func() time.Time
	// OnRotate is called with the path of every file that was closed.
	OnRotate func(path string)
}

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under dir. Safe for concurrent use.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	opts   WriterOptions

	mu    sync.Mutex
	hour  string
	path  string
	lines uint64
	f     *os.File
	enc   *zstd.Encoder
	bw    *bufio.Writer
}

func NewJSONLZstdWriter(dir, prefix string, opts WriterOptions) *JSONLZstdWriter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &JSONLZstdWriter{dir: dir, prefix: prefix, opts: opts}
}

// Lines returns how many entries were written since the writer was created.
func (w *JSONLZstdWriter) Lines() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lines
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.opts.Now().UTC().Format(hourLayout); hour != w.hour {
		if err := w.openLocked(hour); err != nil {
			return err
		}
	}
	b = append(b, '\n')
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	w.lines++
	// Flush through to the encoder so a crash loses at most one block.
	return w.bw.Flush()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) openLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.bw = f, enc, bufio.NewWriterSize(enc, 64*1024)
	w.hour, w.path = hour, path
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	if w.f == nil {
		return nil
	}
	var firstErr error
	if err := w.bw.Flush(); err != nil {
		firstErr = err
	}
	if err := w.enc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	closed := w.path
	w.f, w.enc, w.bw = nil, nil, nil
	w.hour, w.path = "", ""
	if w.opts.OnRotate != nil {
		w.opts.OnRotate(closed)
	}
	return firstErr
}

// TickLogger writes one JSONL telemetry entry per emitted tick under
// <dataDir>/events.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(dataDir string, opts WriterOptions) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events", opts)}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes one JSONL entry per applied terrain change under
// <dataDir>/audit.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(dataDir string, opts WriterOptions) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "audit"), "audit", opts)}
}

func (l *AuditLogger) WriteAudit(e world.AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }
