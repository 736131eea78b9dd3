package persistence

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
	"time"

	"github.com/vecdb/vecdb/core"
)

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

func unmarshalMetadata(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// errShortBuffer mirrors io.ErrUnexpectedEOF but is only ever seen
// internally by readSnapshot, which converts it to ErrCorruptSnapshot.
var errShortBuffer = errors.New("persistence: short buffer")

// countingBuffer is an io.Writer that just appends to an in-memory
// slice — used to build the snapshot body before checksumming it.
type countingBuffer struct {
	buf []byte
}

func (b *countingBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func writeUint16(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func writeString(w io.Writer, s string) error {
	if err := writeUint32(w, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func writeFloat32Slice(w io.Writer, v []float32) error {
	if err := writeUint32(w, uint32(len(v))); err != nil {
		return err
	}
	for _, f := range v {
		if err := writeUint32(w, math.Float32bits(f)); err != nil {
			return err
		}
	}
	return nil
}

func writeCollection(w io.Writer, c CollectionSnapshot) error {
	if err := writeString(w, c.Name); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(c.Dimension)); err != nil {
		return err
	}
	if err := writeUint64(w, uint64(c.CreatedAt.UnixNano())); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(c.Records))); err != nil {
		return err
	}
	for _, rec := range c.Records {
		if err := writeRecord(w, rec); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w io.Writer, rec *core.VectorRecord) error {
	if err := writeString(w, rec.ID); err != nil {
		return err
	}
	if err := writeFloat32Slice(w, rec.Vector); err != nil {
		return err
	}
	if err := writeUint32(w, math.Float32bits(rec.Norm)); err != nil {
		return err
	}
	metaJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(metaJSON))); err != nil {
		return err
	}
	_, err = w.Write(metaJSON)
	return err
}

// sliceReader is a simple cursor over an in-memory byte slice, used to
// parse a verified (CRC-checked) snapshot body.
type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, errShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *sliceReader) readUint16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *sliceReader) readUint32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *sliceReader) readUint64() (uint64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *sliceReader) readString() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *sliceReader) readFloat32Slice() ([]float32, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make([]float32, n)
	for i := range out {
		bits, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func readCollection(r *sliceReader) (CollectionSnapshot, error) {
	name, err := r.readString()
	if err != nil {
		return CollectionSnapshot{}, err
	}
	dim, err := r.readUint32()
	if err != nil {
		return CollectionSnapshot{}, err
	}
	createdAtNanos, err := r.readUint64()
	if err != nil {
		return CollectionSnapshot{}, err
	}
	numRecords, err := r.readUint32()
	if err != nil {
		return CollectionSnapshot{}, err
	}

	records := make([]*core.VectorRecord, 0, numRecords)
	for i := uint32(0); i < numRecords; i++ {
		rec, err := readRecord(r)
		if err != nil {
			return CollectionSnapshot{}, err
		}
		records = append(records, rec)
	}

	return CollectionSnapshot{
		Name:      name,
		Dimension: int(dim),
		CreatedAt: time.Unix(0, int64(createdAtNanos)).UTC(),
		Records:   records,
	}, nil
}

func readRecord(r *sliceReader) (*core.VectorRecord, error) {
	id, err := r.readString()
	if err != nil {
		return nil, err
	}
	vector, err := r.readFloat32Slice()
	if err != nil {
		return nil, err
	}
	normBits, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	metaLen, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	metaJSON, err := r.readBytes(int(metaLen))
	if err != nil {
		return nil, err
	}
	metadata, err := unmarshalMetadata(metaJSON)
	if err != nil {
		return nil, err
	}

	return &core.VectorRecord{
		ID:       id,
		Vector:   vector,
		Norm:     math.Float32frombits(normBits),
		Metadata: metadata,
	}, nil
}
