// Package wire implements the length-prefixed frame codec shared by the image
// channel and the analysis worker pipe: a 4-byte big-endian unsigned length
// followed by exactly that many payload bytes.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// HeaderSize is the length prefix size in bytes
const HeaderSize = 4

var (
	// ErrShortFrame means the stream ended inside a frame
	ErrShortFrame = errors.New("wire: stream ended mid-frame")
	// ErrFrameTooLarge means the declared length exceeds the reader's limit
	ErrFrameTooLarge = errors.New("wire: frame exceeds size limit")
)

// ReadFrame reads one frame from r
// A clean EOF before any header byte returns io.EOF; EOF anywhere later
// returns ErrShortFrame. max <= 0 disables the size check.
func ReadFrame(r io.Reader, max int) ([]byte, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if max > 0 && uint64(n) > uint64(max) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, n, max)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrShortFrame
		}
		return nil, err
	}
	return buf, nil
}

// WriteFrame writes payload with its length prefix in a single Write call
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}
