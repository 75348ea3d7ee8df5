package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Archive appends records to a msgpack stream, one value after another.
type Archive struct {
	mu     sync.Mutex
	enc    *msgpack.Encoder
	closer io.Closer
	path   string
	n      int
}

// NewArchive writes to w.
func NewArchive(w io.Writer) *Archive {
	enc := msgpack.NewEncoder(w)
	enc.UseCompactInts(true)
	return &Archive{enc: enc}
}

// CreateArchive truncates or creates the file at path.
func CreateArchive(path string) (*Archive, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	a := NewArchive(f)
	a.closer = f
	a.path = path
	return a, nil
}

// Append encodes v as the next record.
func (a *Archive) Append(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.enc.Encode(v); err != nil {
		return fmt.Errorf("archive record %d: %w", a.n, err)
	}
	a.n++
	return nil
}

// Len is the number of records written.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.n
}

// Path is the file behind the archive, empty for plain writers.
func (a *Archive) Path() string { return a.path }

func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}

// ReadArchive decodes every record of a stream written by Archive.
func ReadArchive[T any](r io.Reader) ([]T, error) {
	dec := msgpack.NewDecoder(r)
	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("archive record %d: %w", len(out), err)
		}
		out = append(out, v)
	}
}
