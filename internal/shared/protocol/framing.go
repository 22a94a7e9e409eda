package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Data-plane framing. Byte counts declared on the wire are authoritative:
// receivers read exactly the declared length and treat a short stream as
// truncation, never as a clean end.
//
// Payloads carry an 8-byte big-endian length prefix, file names a 2-byte
// prefix, and file counts travel as a bare 4-byte integer.

var ErrTruncated = errors.New("stream ended before declared length")

const maxNameLen = 4096

// WritePayload streams size bytes from r prefixed with the declared length.
func WritePayload(w io.Writer, r io.Reader, size int64) error {
	var prefix [8]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(size))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	n, err := io.CopyN(w, r, size)
	if err != nil {
		return fmt.Errorf("payload write short at %d of %d bytes: %w", n, size, err)
	}
	return nil
}

// ReadPayload reads a length-prefixed payload into w and returns the number
// of bytes declared by the sender.
func ReadPayload(r io.Reader, w io.Writer) (int64, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}
	size := int64(binary.BigEndian.Uint64(prefix[:]))
	if size < 0 {
		return 0, fmt.Errorf("invalid payload length %d", size)
	}
	n, err := io.CopyN(w, r, size)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return n, fmt.Errorf("read %d of %d bytes: %w", n, size, ErrTruncated)
		}
		return n, err
	}
	return size, nil
}

// WriteName writes a length-prefixed file name.
func WriteName(w io.Writer, name string) error {
	if len(name) > maxNameLen {
		return fmt.Errorf("file name too long: %d bytes", len(name))
	}
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(name)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := io.WriteString(w, name)
	return err
}

// ReadName reads a length-prefixed file name.
func ReadName(r io.Reader) (string, error) {
	var prefix [2]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return "", err
	}
	size := binary.BigEndian.Uint16(prefix[:])
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return "", fmt.Errorf("file name: %w", ErrTruncated)
		}
		return "", err
	}
	return string(buf), nil
}

// WriteCount writes a 4-byte file count.
func WriteCount(w io.Writer, count int) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(count))
	_, err := w.Write(buf[:])
	return err
}

// ReadCount reads a 4-byte file count.
func ReadCount(r io.Reader) (int, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint32(buf[:])), nil
}
