package boltfmt

import (
	"bytes"

	"github.com/andreyvit/saveable"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// record is the msgpack document stored under every dataset key. The four
// metadata fields are kept verbatim; Data holds the msgpack payload (a
// scalar, or an array for iterables) and Sum its xxhash.
type record struct {
	Type     string `msgpack:"t"`
	Role     string `msgpack:"r"`
	Name     string `msgpack:"n"`
	Elem     string `msgpack:"e"`
	Encoding string `msgpack:"enc"`
	Data     []byte `msgpack:"d"`
	Sum      uint64 `msgpack:"h"`
}

func (r *record) meta() (saveable.MetaData, error) {
	return saveable.ParseMetaData(r.Type, r.Role, r.Name, r.Elem)
}

func encodeRecord(meta saveable.MetaData, payload []byte) ([]byte, error) {
	tags := meta.Tags()
	rec := record{
		Type:     tags[0],
		Role:     tags[1],
		Name:     tags[2],
		Elem:     tags[3],
		Encoding: saveable.TextEncoding,
		Data:     payload,
		Sum:      xxhash.Sum64(payload),
	}
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := enc.Encode(&rec)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(raw []byte) (*record, error) {
	var rec record
	var r bytes.Reader
	r.Reset(raw)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(&rec)
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, saveable.DataErrf(raw, nil, "failed to decode record: %v", err)
	}
	if rec.Encoding != saveable.TextEncoding {
		return nil, saveable.DataErrf(raw, nil, "unsupported text encoding %q", rec.Encoding)
	}
	if xxhash.Sum64(rec.Data) != rec.Sum {
		return nil, saveable.DataErrf(rec.Data, saveable.ErrInconsistent, "checksum mismatch in %q", rec.Name)
	}
	return &rec, nil
}

func encodeScalarPayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	err := encodeScalar(enc, v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeArrayPayload(items []any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	defer msgpack.PutEncoder(enc)
	if err := enc.EncodeArrayLen(len(items)); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := encodeScalar(enc, item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeScalar(enc *msgpack.Encoder, v any) error {
	switch v := v.(type) {
	case nil:
		return enc.EncodeString(saveable.NoneLiteral)
	case bool:
		return enc.EncodeBool(v)
	case int64:
		return enc.EncodeInt(v)
	case float64:
		return enc.EncodeFloat64(v)
	case string:
		return enc.EncodeString(v)
	default:
		return saveable.DataErrf(nil, saveable.ErrUnsupported, "cannot encode %T", v)
	}
}

func decodeScalarPayload(k saveable.Kind, data []byte) (any, error) {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	defer msgpack.PutDecoder(dec)
	v, err := decodeScalar(dec, k)
	if err != nil {
		if isDataError(err) {
			return nil, err
		}
		return nil, saveable.DataErrf(data, nil, "failed to decode %v: %v", k, err)
	}
	return v, nil
}

func decodeArrayPayload(elem saveable.Kind, data []byte) ([]any, error) {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	defer msgpack.PutDecoder(dec)
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, saveable.DataErrf(data, nil, "failed to decode array: %v", err)
	}
	if n < 0 {
		n = 0
	}
	if elem == saveable.KindEmpty {
		if n != 0 {
			return nil, saveable.DataErrf(data, saveable.ErrInconsistent, "declared empty but has %d elements", n)
		}
		return []any{}, nil
	}
	if n == 0 {
		return nil, saveable.DataErrf(data, saveable.ErrInconsistent, "declared %v elements but is empty", elem)
	}
	items := make([]any, n)
	for i := range items {
		items[i], err = decodeScalar(dec, elem)
		if isDataError(err) {
			return nil, err
		} else if err != nil {
			return nil, saveable.DataErrf(data, nil, "failed to decode element %d: %v", i, err)
		}
	}
	return items, nil
}

func isDataError(err error) bool {
	var de *saveable.DataError
	return errors.As(err, &de)
}

func decodeScalar(dec *msgpack.Decoder, k saveable.Kind) (any, error) {
	switch k {
	case saveable.KindBool:
		return dec.DecodeBool()
	case saveable.KindInt:
		return dec.DecodeInt64()
	case saveable.KindFloat:
		return dec.DecodeFloat64()
	case saveable.KindStr:
		return dec.DecodeString()
	case saveable.KindNone:
		s, err := dec.DecodeString()
		if err != nil {
			return nil, err
		}
		if s != saveable.NoneLiteral {
			return nil, saveable.DataErrf([]byte(s), saveable.ErrInconsistent, "none value without the %q marker", saveable.NoneLiteral)
		}
		return nil, nil
	default:
		return nil, saveable.DataErrf(nil, saveable.ErrCorrupt, "%v is not a scalar kind", k)
	}
}
