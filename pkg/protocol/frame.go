package protocol

import (
	"bytes"
	"errors"
	"io"
)

var ErrResponseTooLarge = errors.New("response exceeds message size")

// WriteFrame writes text as one fixed-size message, padded with NUL bytes,
// in a single Write call.
func WriteFrame(w io.Writer, text string, size int) error {
	if len(text) > size {
		return ErrResponseTooLarge
	}
	buf := make([]byte, size)
	copy(buf, text)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one fixed-size message and strips the padding.
func ReadFrame(r io.Reader, size int) (string, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}
