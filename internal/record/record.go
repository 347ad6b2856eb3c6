package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Header is the fixed 20-byte portion written at the start of every slot:
// size(4) + keyLen(4) + dataLen(4) + expiryTime(8). Fields are big-endian,
// per spec.md §4.1.
type Header struct {
	Size       uint32
	KeyLen     uint32
	DataLen    uint32
	ExpiryTime int64
}

// HeaderSize is the width in bytes of Header on disk.
const HeaderSize = 20

// KeyLenOffset is the byte offset of the KeyLen field within a header. A
// slot is marked free on disk by overwriting just this field with zero,
// leaving the rest of the header intact so rebuildIndex can still walk it.
const KeyLenOffset = 4

// EncodeHeader renders h as HeaderSize big-endian bytes.
func EncodeHeader(h Header) []byte {
	buf := &bytes.Buffer{}
	buf.Grow(HeaderSize)
	binary.Write(buf, binary.BigEndian, h.Size)
	binary.Write(buf, binary.BigEndian, h.KeyLen)
	binary.Write(buf, binary.BigEndian, h.DataLen)
	binary.Write(buf, binary.BigEndian, h.ExpiryTime)
	return buf.Bytes()
}

// DecodeHeader parses a HeaderSize-byte big-endian buffer into a Header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("record: short header: got %d bytes, want %d", len(data), HeaderSize)
	}

	r := bytes.NewReader(data)
	var h Header
	if err := binary.Read(r, binary.BigEndian, &h.Size); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.KeyLen); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.DataLen); err != nil {
		return Header{}, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.ExpiryTime); err != nil {
		return Header{}, err
	}
	return h, nil
}

// EncodeRecord lays out header, key and value contiguously, ready for a
// single positional write — the store never splits a record across writes.
func EncodeRecord(h Header, key, value []byte) []byte {
	buf := make([]byte, HeaderSize+len(key)+len(value))
	copy(buf, EncodeHeader(h))
	copy(buf[HeaderSize:], key)
	copy(buf[HeaderSize+len(key):], value)
	return buf
}

// ZeroKeyLen is written over KeyLenOffset to mark a slot free.
var ZeroKeyLen = [4]byte{}
