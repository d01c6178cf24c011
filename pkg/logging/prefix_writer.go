package logging

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/quayside/quayside/internal/style"
)

// PrefixWriter is a buffering writer that prefixes each new line. Close
// should be called to properly flush the buffer.
type PrefixWriter struct {
	out    io.Writer
	buf    *bytes.Buffer
	prefix string
}

// NewPrefixWriter creates a writer that prefixes every line written through
// it with the given label.
func NewPrefixWriter(w io.Writer, prefix string) *PrefixWriter {
	return &PrefixWriter{
		out:    w,
		prefix: fmt.Sprintf("[%s] ", style.Prefix(prefix)),
		buf:    &bytes.Buffer{},
	}
}

// Write buffers partial lines and writes out each completed line with the
// prefix applied.
func (w *PrefixWriter) Write(data []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Split(scanLinesKeepNewLine)

	for scanner.Scan() {
		line := scanner.Bytes()

		if line[len(line)-1] != '\n' {
			if _, err := w.buf.Write(line); err != nil {
				return 0, err
			}

			continue
		}

		if w.buf.Len() > 0 {
			line = append(w.buf.Bytes(), line...)
			w.buf.Reset()
		}

		if err := w.writeWithPrefix(line); err != nil {
			return 0, err
		}
	}

	return len(data), nil
}

// Close writes any pending data in the buffer
func (w *PrefixWriter) Close() error {
	if w.buf.Len() > 0 {
		if err := w.writeWithPrefix(w.buf.Bytes()); err != nil {
			return err
		}
	}

	w.buf.Reset()

	return nil
}

func (w *PrefixWriter) writeWithPrefix(line []byte) error {
	_, err := fmt.Fprint(w.out, w.prefix+string(line))
	return err
}

// A customized implementation of bufio.ScanLines that preserves new line
// characters.
func scanLinesKeepNewLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, append(dropCR(data[0:i]), '\n'), nil
	}

	if atEOF {
		return len(data), dropCR(data), nil
	}

	return 0, nil, nil
}

// dropCR drops a terminal \r from the data.
func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[0 : len(data)-1]
	}
	return data
}
