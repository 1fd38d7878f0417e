package tupledb

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// storedEntry is the msgpack value of one entry in a bolt entries bucket.
// Ord restores insertion order, since bolt keeps keys sorted.
type storedEntry struct {
	Ord   uint64 `msgpack:"o"`
	Tuple []any  `msgpack:"t"`
}

func encodeMsgpack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T using MsgPack: %w", v, err)
	}
	return buf.Bytes(), nil
}

// decodeMsgpack decodes into ptr. Untyped numbers come back as int64,
// uint64 or float64 rather than the narrowest msgpack type.
func decodeMsgpack(source string, data []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	dec.UseLooseInterfaceDecoding(true)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(source, data, err, "failed to decode msgpack into %T", ptr)
	}
	return nil
}
