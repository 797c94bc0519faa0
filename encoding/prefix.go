package encoding

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ReadPrefix reads a 4-byte big-endian length prefix followed by that many
// bytes. The read is aborted if the prefix exceeds maxLen; this bounds how
// much an untrusted peer (the P2P transport, spec §6) can make a reader
// allocate.
func ReadPrefix(r io.Reader, maxLen uint32) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("encoding: could not read length prefix: %w", err)
	}
	dataLen := binary.BigEndian.Uint32(lenBuf[:])
	if dataLen > maxLen {
		return nil, fmt.Errorf("encoding: length %d exceeds maxLen of %d", dataLen, maxLen)
	}
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("encoding: could not read prefixed payload: %w", err)
	}
	return data, nil
}

// ReadObject reads and decodes a length-prefixed, CBOR-encoded object.
func ReadObject(r io.Reader, maxLen uint32, obj interface{}) error {
	data, err := ReadPrefix(r, maxLen)
	if err != nil {
		return err
	}
	return Unmarshal(data, obj)
}

// WritePrefix prepends data with a 4-byte big-endian length before writing it.
func WritePrefix(w io.Writer, data []byte) (int, error) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	n1, err := w.Write(lenBuf[:])
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(data)
	return n1 + n2, err
}

// WriteObject encodes obj and prepends it with a 4-byte length before
// writing it.
func WriteObject(w io.Writer, obj interface{}) (int, error) {
	data, err := Marshal(obj)
	if err != nil {
		return 0, err
	}
	return WritePrefix(w, data)
}
