// Package stream implements the marker-stream protocol: record splitting,
// frame decoding, incremental assembly of the in-flight assistant message,
// and finalization into a sealed chat message.
package stream

import (
	"bufio"
	"fmt"
	"io"
)

// StreamReadError wraps a failure of the underlying byte source. Records
// already delivered before the failure stay valid; the UI can show a partial
// result with an error mark.
type StreamReadError struct {
	Err error
}

func (e *StreamReadError) Error() string {
	return fmt.Sprintf("stream read failed: %v", e.Err)
}

func (e *StreamReadError) Unwrap() error {
	return e.Err
}

// RecordReader splits a byte stream into newline-delimited records. A record
// keeps its terminating newline; a partial record at a chunk boundary is
// buffered until its terminator arrives. When the source closes with a
// non-empty trailing buffer, that buffer is emitted as the last record,
// without a terminator.
type RecordReader struct {
	r    *bufio.Reader
	err  error // deferred until the buffered record has been delivered
	done bool
}

// NewRecordReader wraps r. The caller keeps ownership of r and closes it.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{r: bufio.NewReader(r)}
}

// Next returns the next complete record. It returns io.EOF after a clean end
// of stream and a *StreamReadError if the source fails first. A trailing
// partial record is delivered before either error is reported.
func (rr *RecordReader) Next() (string, error) {
	if rr.done {
		return "", rr.err
	}

	record, err := rr.r.ReadString('\n')
	if err == nil {
		return record, nil
	}

	rr.done = true
	if err == io.EOF {
		rr.err = io.EOF
	} else {
		rr.err = &StreamReadError{Err: err}
	}

	if record != "" {
		return record, nil
	}
	return "", rr.err
}
