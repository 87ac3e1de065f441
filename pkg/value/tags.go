package value

import (
	"encoding/binary"
	"io"
)

// Tag is the 16-bit persistence tag: each serializable Value kind
// has a reserved tag and a 32-bit payload slot; aggregates additionally
// write a blob to the Encoder's side channel.
type Tag uint16

const (
	TagInteger Tag = iota + 1
	TagFloat
	TagBoolean
	TagString
	TagEmpty
	TagBCORef
	TagArrayRef
	TagHashRef
	TagStructTypeRef
	TagStructValueRef
	TagKeymapRef
	// Host-defined tags reserved for the game's own object kinds, carried
	// here only as named constants so a host bridge can reuse the same
	// tag space instead of inventing its own.
	TagShip
	TagPlanet
	TagMinefield
	TagIonStorm
	TagExplosion
	TagPlayer
	TagFrame
	TagGlobal
	TagFileNr
)

// Encoder writes a sequence of (tag, payload) pairs plus a side channel
// for variable-length blobs (strings, aggregate contents).
type Encoder struct {
	out io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{out: w} }

// Writer exposes the underlying io.Writer for payloads that don't fit the
// fixed (tag, uint32) record, such as a Float's 8 raw bytes.
func (e *Encoder) Writer() io.Writer { return e.out }

// WriteTagPayload writes one fixed-size (tag, payload) record.
func (e *Encoder) WriteTagPayload(tag Tag, payload uint32) error {
	if err := binary.Write(e.out, binary.LittleEndian, tag); err != nil {
		return err
	}
	return binary.Write(e.out, binary.LittleEndian, payload)
}

// WriteBlob writes a length-prefixed side-channel blob (a string's bytes,
// or a nested aggregate's serialized form).
func (e *Encoder) WriteBlob(b []byte) error {
	if err := binary.Write(e.out, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := e.out.Write(b)
	return err
}

// Decoder is the read-side counterpart of Encoder.
type Decoder struct {
	in io.Reader
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{in: r} }

// Reader exposes the underlying io.Reader, the counterpart of
// Encoder.Writer.
func (d *Decoder) Reader() io.Reader { return d.in }

// ReadTagPayload reads one fixed-size (tag, payload) record.
func (d *Decoder) ReadTagPayload() (Tag, uint32, error) {
	var tag Tag
	var payload uint32
	if err := binary.Read(d.in, binary.LittleEndian, &tag); err != nil {
		return 0, 0, err
	}
	if err := binary.Read(d.in, binary.LittleEndian, &payload); err != nil {
		return 0, 0, err
	}
	return tag, payload, nil
}

// ReadBlob reads a length-prefixed side-channel blob.
func (d *Decoder) ReadBlob() ([]byte, error) {
	var n uint32
	if err := binary.Read(d.in, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.in, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Encode serializes a Value per the tag scheme above. Aggregates
// that need more than the fixed payload word (String, Array, Hash)
// write their contents to the blob channel after the tag record; Encode
// returns ErrNotSerializable for Kinds that can never be persisted (file
// handles, live Contexts that reject Store, Subroutines/Closures, raw
// Keymaps).
func Encode(e *Encoder, v Value) error {
	switch v.Kind() {
	case KindNull:
		return e.WriteTagPayload(TagEmpty, 0)
	case KindInteger:
		return e.WriteTagPayload(TagInteger, uint32(v.AsInt()))
	case KindFloat:
		if err := e.WriteTagPayload(TagFloat, 0); err != nil {
			return err
		}
		return binary.Write(e.Writer(), binary.LittleEndian, v.AsFloat())
	case KindBoolean:
		return e.WriteTagPayload(TagBoolean, uint32(v.AsInt()))
	case KindString:
		if err := e.WriteTagPayload(TagString, uint32(len(v.AsString()))); err != nil {
			return err
		}
		return e.WriteBlob([]byte(v.AsString()))
	case KindArray:
		a, _ := v.Array()
		if err := e.WriteTagPayload(TagArrayRef, uint32(a.Len())); err != nil {
			return err
		}
		for _, elem := range a.Slice() {
			if err := Encode(e, elem); err != nil {
				return err
			}
		}
		return nil
	case KindHash:
		h, _ := v.Hash()
		if err := e.WriteTagPayload(TagHashRef, uint32(h.Len())); err != nil {
			return err
		}
		for i := 0; i < h.Len(); i++ {
			k, val := h.At(i)
			if err := e.WriteBlob([]byte(k)); err != nil {
				return err
			}
			if err := Encode(e, val); err != nil {
				return err
			}
		}
		return nil
	case KindContext:
		c, ok := v.Context()
		if !ok {
			return ErrNotSerializable
		}
		return c.Store(e)
	default:
		return ErrNotSerializable
	}
}

// Decode reads back a Value written by Encode. Aggregate tags recurse;
// ErrNotSerializable's sibling tags (host object tags) are not decodable
// here since this runtime never originates them — a host bridge that uses
// TagShip et al. owns their decode path.
func Decode(d *Decoder) (Value, error) {
	tag, payload, err := d.ReadTagPayload()
	if err != nil {
		return Null(), err
	}
	switch tag {
	case TagEmpty:
		return Null(), nil
	case TagInteger:
		return Int(int32(payload)), nil
	case TagFloat:
		var f float64
		if err := binary.Read(d.Reader(), binary.LittleEndian, &f); err != nil {
			return Null(), err
		}
		return Float(f), nil
	case TagBoolean:
		return Bool(payload != 0), nil
	case TagString:
		b, err := d.ReadBlob()
		if err != nil {
			return Null(), err
		}
		return String(string(b)), nil
	case TagArrayRef:
		a := NewArray(int(payload))
		for i := 0; i < int(payload); i++ {
			elem, err := Decode(d)
			if err != nil {
				return Null(), err
			}
			_ = a.Set(elem, i)
		}
		return Ref(KindArray, a), nil
	case TagHashRef:
		h := NewHash()
		for i := 0; i < int(payload); i++ {
			kb, err := d.ReadBlob()
			if err != nil {
				return Null(), err
			}
			val, err := Decode(d)
			if err != nil {
				return Null(), err
			}
			h.Set(string(kb), val)
		}
		return Ref(KindHash, h), nil
	default:
		return Null(), ErrNotSerializable
	}
}
