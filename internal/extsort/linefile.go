// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package extsort

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// recordSource yields records one at a time and returns io.EOF when done.
type recordSource interface {
	readRecord() (string, error)
}

// lineReader reads newline-terminated records from a file, optionally through
// a zstd decoder.
type lineReader struct {
	path   string
	file   *os.File
	dec    *zstd.Decoder
	buf    *bufio.Reader
	closed bool
}

var _ recordSource = (*lineReader)(nil)

func openLineReader(path string, compressed bool, size int) (*lineReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := &lineReader{path: path, file: file}
	var src io.Reader = file
	if compressed {
		dec, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("create zstd reader for %s: %w", path, err)
		}
		r.dec = dec
		src = dec
	}
	r.buf = bufio.NewReaderSize(src, size)
	return r, nil
}

// readRecord returns the next line without its terminator. A final line that
// lacks a terminator is still returned as a record.
func (r *lineReader) readRecord() (string, error) {
	line, err := r.buf.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				return line, nil
			}
			return "", io.EOF
		}
		return "", fmt.Errorf("read %s: %w", r.path, err)
	}
	return line[:len(line)-1], nil
}

func (r *lineReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.dec != nil {
		r.dec.Close()
	}
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", r.path, err)
	}
	return nil
}

// lineWriter writes newline-terminated records to a new file, optionally
// through a zstd encoder.
type lineWriter struct {
	path   string
	file   *os.File
	enc    *zstd.Encoder
	buf    *bufio.Writer
	closed bool
}

func createLineWriter(path string, compressed bool, size int) (*lineWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	w := &lineWriter{path: path, file: file}
	var dst io.Writer = file
	if compressed {
		enc, err := zstd.NewWriter(file)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("create zstd writer for %s: %w", path, err)
		}
		w.enc = enc
		dst = enc
	}
	w.buf = bufio.NewWriterSize(dst, size)
	return w, nil
}

func (w *lineWriter) writeRecord(record string) error {
	if _, err := w.buf.WriteString(record); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", w.path, err)
	}
	return nil
}

func (w *lineWriter) writeRecords(records []string) error {
	for _, record := range records {
		if err := w.writeRecord(record); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered data and closes the file. Only the first call does any work.
func (w *lineWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	err := w.buf.Flush()
	if w.enc != nil {
		if encErr := w.enc.Close(); err == nil {
			err = encErr
		}
	}
	if closeErr := w.file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("close %s: %w", w.path, err)
	}
	return nil
}
