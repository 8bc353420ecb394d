package storage

import (
	"fmt"

	"github.com/zeebo/blake3"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	RecordTypeBatch    byte = 1
	RecordTypeSnapshot byte = 2
)

const checksumSize = 32

// Record layout: type (1 byte) | blake3(type || payload) (32 bytes) | payload.
// The payload is a sequence of protobuf-framed ops:
//
//	op   = 1:bytes(entry)
//	entry = 1:key 2:value | 1:key 3:varint(1)   // set | delete
func marshalRecord(recType byte, payload []byte) []byte {
	sum := checksum(recType, payload)

	out := make([]byte, 0, 1+checksumSize+len(payload))
	out = append(out, recType)
	out = append(out, sum[:]...)
	out = append(out, payload...)
	return out
}

func unmarshalRecord(data []byte) (byte, []byte, error) {
	if len(data) < 1+checksumSize {
		return 0, nil, fmt.Errorf("%w: short record (%d bytes)", ErrCorruptRecord, len(data))
	}

	recType := data[0]
	payload := data[1+checksumSize:]

	want := checksum(recType, payload)
	if string(want[:]) != string(data[1:1+checksumSize]) {
		return 0, nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptRecord)
	}

	switch recType {
	case RecordTypeBatch, RecordTypeSnapshot:
		return recType, payload, nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown record type %d", ErrCorruptRecord, recType)
	}
}

func checksum(recType byte, payload []byte) [checksumSize]byte {
	h := blake3.New()
	_, _ = h.Write([]byte{recType})
	_, _ = h.Write(payload)

	var sum [checksumSize]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

func encodeOps(ops []op) []byte {
	var b []byte
	for _, o := range ops {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, o.key)
		if o.deleted {
			entry = protowire.AppendTag(entry, 3, protowire.VarintType)
			entry = protowire.AppendVarint(entry, 1)
		} else {
			entry = protowire.AppendTag(entry, 2, protowire.BytesType)
			entry = protowire.AppendBytes(entry, o.value)
		}

		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeOps(b []byte) ([]op, error) {
	var ops []op
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		if num != 1 || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		entry, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		o, err := decodeOp(entry)
		if err != nil {
			return nil, err
		}
		ops = append(ops, o)
	}
	return ops, nil
}

func decodeOp(b []byte) (op, error) {
	var o op
	var hasKey bool
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return op{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return op{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			o.key = string(v)
			hasKey = true
			b = b[n:]
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return op{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			o.value = append([]byte{}, v...)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return op{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			o.deleted = v != 0
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return op{}, fmt.Errorf("%w: %v", ErrCorruptRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !hasKey || o.key == "" {
		return op{}, fmt.Errorf("%w: entry without key", ErrCorruptRecord)
	}
	if !o.deleted && o.value == nil {
		o.value = []byte{}
	}
	return o, nil
}
