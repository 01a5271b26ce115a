// Package source provides text sources for a typing session.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
)

// ErrEmpty is returned when a source has nothing to type.
var ErrEmpty = errors.New("source is empty")

// Clipboard reads the system clipboard on every fetch.
type Clipboard struct {
	// ReadAll overrides the clipboard reader.
	ReadAll func() (string, error)
}

// Fetch returns the current clipboard text.
func (c Clipboard) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	read := c.ReadAll
	if read == nil {
		if clipboard.Unsupported {
			return "", fmt.Errorf("clipboard is not supported on this system")
		}
		read = clipboard.ReadAll
	}
	text, err := read()
	if err != nil {
		return "", fmt.Errorf("failed to read clipboard: %w", err)
	}
	return text, nil
}

// File reads a text file on every fetch, so edits between runs are picked up.
type File struct {
	Path string
}

// Fetch returns the file contents.
func (f File) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.Path == "" {
		return "", fmt.Errorf("file path is empty")
	}
	file, err := os.Open(f.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open text file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only input.
			_ = cerr
		}
	}()
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(data), nil
}

// Reader drains r once and serves the same text afterwards. It backs stdin.
type Reader struct {
	r    io.Reader
	once sync.Once
	text string
	err  error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Stdin reads standard input.
func Stdin() *Reader {
	return NewReader(os.Stdin)
}

// Fetch returns the text read from the underlying reader.
func (s *Reader) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.once.Do(func() {
		data, err := io.ReadAll(s.r)
		if err != nil {
			s.err = fmt.Errorf("failed to read input: %w", err)
			return
		}
		s.text = string(data)
	})
	return s.text, s.err
}

// Static always returns the same text.
type Static string

// Fetch returns the text.
func (s Static) Fetch(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrEmpty
	}
	return string(s), nil
}
