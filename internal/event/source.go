package event

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// FileSource tails a newline-delimited Falco JSON file.
//
// The cursor starts at end-of-stream so historical alerts are not replayed.
// Next never blocks: callers back off when it reports no event.
type FileSource struct {
	path   string
	logger *slog.Logger

	file    *os.File
	reader  *bufio.Reader
	offset  int64  // bytes consumed from the file, including pending
	pending []byte // partial line waiting for its newline
	opened  bool   // first successful open happened

	delivered atomic.Uint64
	skipped   atomic.Uint64
	reopened  atomic.Uint64
}

// SourceMetrics holds read statistics for a FileSource.
type SourceMetrics struct {
	Delivered uint64 `json:"delivered"`
	Skipped   uint64 `json:"skipped"`
	Reopened  uint64 `json:"reopened"`
}

// NewFileSource creates a source for path and positions the cursor at the end
// of the stream. A missing stream is created empty. Open failures are not
// fatal here; Next retries and reports ErrStreamIO until the stream opens.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	s := &FileSource{
		path:   path,
		logger: logger,
	}
	if err := s.open(fromEnd); err != nil {
		logger.Warn("event stream not available yet", "path", path, "error", err)
	}
	return s
}

// Path returns the stream path.
func (s *FileSource) Path() string {
	return s.path
}

// fromEnd asks open to skip everything already in the stream.
const fromEnd = -1

// open opens the stream and positions the cursor at offset, or at the end
// when offset is fromEnd.
func (s *FileSource) open(offset int64) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrStreamIO, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamIO, err)
	}

	if offset == fromEnd {
		offset, err = f.Seek(0, io.SeekEnd)
	} else {
		offset, err = f.Seek(offset, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrStreamIO, err)
	}

	s.file = f
	s.reader = bufio.NewReaderSize(f, 256*1024)
	s.offset = offset
	s.pending = nil
	s.opened = true
	return nil
}

// Next returns the next complete event, or ok=false when none is available.
// Malformed lines are logged and skipped; the cursor always moves past them.
func (s *FileSource) Next() (Event, bool, error) {
	if s.file == nil {
		if err := s.open(s.resumeOffset()); err != nil {
			return Event{}, false, err
		}
		s.reopened.Add(1)
	}

	for {
		line, readErr := s.reader.ReadBytes('\n')
		s.offset += int64(len(line))

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				// Resume after the last complete line on reopen.
				s.offset -= int64(len(line) + len(s.pending))
				s.closeFile()
				return Event{}, false, fmt.Errorf("%w: %v", ErrStreamIO, readErr)
			}
			// Incomplete trailing line stays pending until its newline arrives.
			s.pending = append(s.pending, line...)
			if err := s.checkRotation(); err != nil {
				return Event{}, false, err
			}
			return Event{}, false, nil
		}

		if len(s.pending) > 0 {
			line = append(s.pending, line...)
			s.pending = nil
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		parsed, err := Parse(trimmed)
		if err != nil {
			s.skipped.Add(1)
			s.logger.Warn("skipping malformed event line",
				"path", s.path,
				"offset", s.offset,
				"error", err,
			)
			continue
		}

		s.delivered.Add(1)
		return parsed, true, nil
	}
}

// resumeOffset is where a reopen continues: the end of the stream before the
// first open, the saved cursor afterwards. A stream that shrank meanwhile is
// read from the start.
func (s *FileSource) resumeOffset() int64 {
	if !s.opened {
		return fromEnd
	}
	if st, err := os.Stat(s.path); err == nil && st.Size() < s.offset {
		return 0
	}
	return s.offset
}

// checkRotation reopens the stream when it was removed, replaced or truncated.
func (s *FileSource) checkRotation() error {
	st, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("event stream removed, recreating", "path", s.path)
			return s.reopenFromStart()
		}
		return fmt.Errorf("%w: %v", ErrStreamIO, err)
	}

	current, err := s.file.Stat()
	if err != nil {
		s.offset -= int64(len(s.pending))
		s.closeFile()
		return fmt.Errorf("%w: %v", ErrStreamIO, err)
	}
	if !os.SameFile(st, current) {
		s.logger.Warn("event stream replaced, following new file",
			"path", s.path,
			"offset", s.offset,
		)
		return s.reopenFromStart()
	}

	if st.Size() < s.offset {
		s.logger.Warn("event stream truncated, rewinding",
			"path", s.path,
			"size", st.Size(),
			"offset", s.offset,
		)
		if _, err := s.file.Seek(0, io.SeekStart); err != nil {
			s.closeFile()
			return fmt.Errorf("%w: %v", ErrStreamIO, err)
		}
		s.reader.Reset(s.file)
		s.offset = 0
		s.pending = nil
		s.reopened.Add(1)
	}
	return nil
}

func (s *FileSource) reopenFromStart() error {
	s.closeFile()
	s.offset = 0
	if err := s.open(0); err != nil {
		return err
	}
	s.reopened.Add(1)
	return nil
}

func (s *FileSource) closeFile() {
	if s.file != nil {
		s.file.Close()
	}
	s.file = nil
	s.reader = nil
	s.pending = nil
}

// Metrics returns read statistics.
func (s *FileSource) Metrics() SourceMetrics {
	return SourceMetrics{
		Delivered: s.delivered.Load(),
		Skipped:   s.skipped.Load(),
		Reopened:  s.reopened.Load(),
	}
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.reader = nil
	return err
}
