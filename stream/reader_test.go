package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader returns its chunks one Read at a time, then err.
type chunkedReader struct {
	chunks []string
	err    error
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	if n < len(c.chunks[0]) {
		c.chunks[0] = c.chunks[0][n:]
	} else {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func readAll(t *testing.T, rr *RecordReader) ([]string, error) {
	t.Helper()
	var records []string
	for {
		rec, err := rr.Next()
		if rec != "" {
			records = append(records, rec)
		}
		if err != nil {
			return records, err
		}
	}
}

func TestRecordReader(t *testing.T) {
	tests := []struct {
		name     string
		chunks   []string
		expected []string
	}{
		{
			name:     "single terminated record",
			chunks:   []string{"hello\n"},
			expected: []string{"hello\n"},
		},
		{
			name:     "record split across chunks",
			chunks:   []string{"hel", "lo wor", "ld\n"},
			expected: []string{"hello world\n"},
		},
		{
			name:     "multiple records in one chunk",
			chunks:   []string{"one\ntwo\nthree\n"},
			expected: []string{"one\n", "two\n", "three\n"},
		},
		{
			name:     "trailing partial record emitted on close",
			chunks:   []string{"first\nsecond"},
			expected: []string{"first\n", "second"},
		},
		{
			name:     "terminator arrives in its own chunk",
			chunks:   []string{"abc", "\n", "def"},
			expected: []string{"abc\n", "def"},
		},
		{
			name:     "empty source",
			chunks:   nil,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := NewRecordReader(&chunkedReader{chunks: append([]string(nil), tt.chunks...)})
			records, err := readAll(t, rr)
			if err != io.EOF {
				t.Fatalf("final error = %v, want io.EOF", err)
			}
			if len(records) != len(tt.expected) {
				t.Fatalf("records = %q, want %q", records, tt.expected)
			}
			for i := range records {
				if records[i] != tt.expected[i] {
					t.Errorf("record %d = %q, want %q", i, records[i], tt.expected[i])
				}
			}
		})
	}
}

func TestRecordReaderSourceError(t *testing.T) {
	boom := errors.New("connection reset")
	rr := NewRecordReader(&chunkedReader{chunks: []string{"partial\nout"}, err: boom})

	records, err := readAll(t, rr)

	var readErr *StreamReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("error = %v, want *StreamReadError", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("error does not unwrap to the source error: %v", err)
	}

	// Output assembled before the failure is preserved, including the
	// partial record buffered at the failure point.
	want := []string{"partial\n", "out"}
	if len(records) != len(want) {
		t.Fatalf("records = %q, want %q", records, want)
	}
	for i := range records {
		if records[i] != want[i] {
			t.Errorf("record %d = %q, want %q", i, records[i], want[i])
		}
	}

	// The error is sticky after delivery.
	if _, err := rr.Next(); !errors.As(err, &readErr) {
		t.Errorf("subsequent Next error = %v, want *StreamReadError", err)
	}
}

func TestRecordReaderLargeRecord(t *testing.T) {
	// Larger than the default bufio buffer, exercising the partial-record
	// carry inside a single logical line.
	long := strings.Repeat("x", 10000)
	rr := NewRecordReader(strings.NewReader(long + "\n"))

	records, err := readAll(t, rr)
	if err != io.EOF {
		t.Fatalf("final error = %v, want io.EOF", err)
	}
	if len(records) != 1 || records[0] != long+"\n" {
		t.Fatalf("long record not reassembled: got %d records, first len %d", len(records), len(records[0]))
	}
}
