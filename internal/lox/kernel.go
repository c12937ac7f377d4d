package lox

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrOutputLimit is returned by a kernel whose output budget is spent.
var ErrOutputLimit = errors.New("output limit exceeded")

// Kernel receives the output of 'print'.
type Kernel interface {
	Print(text string) error
}

// BufferKernel collects printed lines in memory. A zero Limit means no
// limit.
type BufferKernel struct {
	Limit int
	buf   strings.Builder
}

func (k *BufferKernel) Print(text string) error {
	if k.Limit > 0 && k.buf.Len()+len(text)+1 > k.Limit {
		remaining := k.Limit - k.buf.Len()
		if remaining > 0 {
			k.buf.WriteString(strings.ToValidUTF8(text[:min(remaining, len(text))], ""))
		}
		return ErrOutputLimit
	}
	k.buf.WriteString(text)
	k.buf.WriteByte('\n')
	return nil
}

// String returns everything printed so far.
func (k *BufferKernel) String() string {
	return k.buf.String()
}

// Reset discards collected output.
func (k *BufferKernel) Reset() {
	k.buf.Reset()
}

// WriterKernel prints each line to an io.Writer.
type WriterKernel struct {
	W io.Writer
}

func (k WriterKernel) Print(text string) error {
	_, err := fmt.Fprintln(k.W, text)
	return err
}
