package blocktree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/goodnatureofminers/btckernel/internal/storage"
	"github.com/goodnatureofminers/btckernel/internal/validation"
)

// RecordSize is the length of an encoded Record.
const RecordSize = 80 + 4 + 4 + 1 + 4 + 8 + 8

// Encode serializes r as header | height | status | result | tx count |
// data location | undo location, integers little-endian.
func (r Record) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(RecordSize)
	_ = r.Header.Serialize(&buf)

	var tail [RecordSize - 80]byte
	binary.LittleEndian.PutUint32(tail[0:], uint32(r.Height))
	binary.LittleEndian.PutUint32(tail[4:], uint32(r.Status))
	tail[8] = byte(r.Result)
	binary.LittleEndian.PutUint32(tail[9:], r.TxCount)
	putLocation(tail[13:], r.Data)
	putLocation(tail[21:], r.Undo)
	buf.Write(tail[:])
	return buf.Bytes()
}

// DecodeRecord parses an encoded Record.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != RecordSize {
		return Record{}, fmt.Errorf("%w: record of %d bytes", ErrCorruptIndex, len(b))
	}
	var r Record
	if err := r.Header.Deserialize(bytes.NewReader(b[:80])); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	tail := b[80:]
	r.Height = int32(binary.LittleEndian.Uint32(tail[0:]))
	r.Status = Status(binary.LittleEndian.Uint32(tail[4:]))
	r.Result = validation.Result(tail[8])
	r.TxCount = binary.LittleEndian.Uint32(tail[9:])
	r.Data = getLocation(tail[13:])
	r.Undo = getLocation(tail[21:])
	if r.Height < 0 {
		return Record{}, fmt.Errorf("%w: negative height %d", ErrCorruptIndex, r.Height)
	}
	return r, nil
}

func putLocation(b []byte, loc storage.Location) {
	binary.LittleEndian.PutUint32(b[0:], loc.File)
	binary.LittleEndian.PutUint32(b[4:], loc.Offset)
}

func getLocation(b []byte) storage.Location {
	return storage.Location{
		File:   binary.LittleEndian.Uint32(b[0:]),
		Offset: binary.LittleEndian.Uint32(b[4:]),
	}
}
