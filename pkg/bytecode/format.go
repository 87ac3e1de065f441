// Persistence for BCOs, layered on the Tag/payload scheme of
// pkg/value.Encoder/Decoder. A BCO is itself a "structured value"
// serialized through the same tagged-blob channel used for arrays and
// hashes, with its own container tag so a decoder can tell a BCO blob
// apart from a plain literal.
package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/nebula-lang/nebula/pkg/value"
)

// bcoFormatVersion guards future encoding changes; readers reject an
// unrecognized version rather than guessing at a layout.
const bcoFormatVersion = 1

// EncodeBCO writes b to enc as a TagBCORef-tagged blob.
func EncodeBCO(enc *value.Encoder, b *BCO) error {
	blob, err := marshalBCO(b)
	if err != nil {
		return err
	}
	if err := enc.WriteTagPayload(value.TagBCORef, uint32(len(blob))); err != nil {
		return err
	}
	return enc.WriteBlob(blob)
}

// DecodeBCO reads a BCO previously written by EncodeBCO. The caller has
// already consumed the TagBCORef/payload pair via dec.ReadTagPayload.
func DecodeBCO(dec *value.Decoder) (*BCO, error) {
	blob, err := dec.ReadBlob()
	if err != nil {
		return nil, err
	}
	return unmarshalBCO(blob)
}

func marshalBCO(b *BCO) ([]byte, error) {
	if !b.relocated {
		if err := b.Relocate(); err != nil {
			return nil, err
		}
	}
	buf := make([]byte, 0, 256)
	buf = appendUint32(buf, bcoFormatVersion)
	buf = appendUint32(buf, uint32(b.Role))
	buf = appendUint32(buf, uint32(b.Args.MinArgs))
	buf = appendUint32(buf, uint32(b.Args.MaxArgs))
	if b.Args.Variadic {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = appendString(buf, b.SourceFile)
	buf = appendString(buf, b.SubName)

	buf = appendUint32(buf, uint32(len(b.Names)))
	for _, n := range b.Names {
		buf = appendString(buf, n)
	}
	buf = appendUint32(buf, uint32(len(b.Locals)))
	for _, n := range b.Locals {
		buf = appendString(buf, n)
	}

	buf = appendUint32(buf, uint32(len(b.Code)))
	for _, inst := range b.Code {
		buf = append(buf, byte(inst.Op), inst.Minor)
		buf = append(buf, byte(inst.Arg>>8), byte(inst.Arg))
	}

	buf = appendUint32(buf, uint32(len(b.Lines)))
	for _, le := range b.Lines {
		buf = appendUint32(buf, uint32(le.InstructionIndex))
		buf = appendUint32(buf, uint32(le.Line))
	}

	buf = appendUint32(buf, uint32(len(b.Literals)))
	for _, lit := range b.Literals {
		litBuf, err := marshalLiteral(lit)
		if err != nil {
			return nil, fmt.Errorf("bytecode: literal pool entry: %w", err)
		}
		buf = appendUint32(buf, uint32(len(litBuf)))
		buf = append(buf, litBuf...)
	}
	return buf, nil
}

// marshalLiteral encodes a single literal-pool Value through the shared
// tag/payload scheme into a standalone byte slice.
func marshalLiteral(v value.Value) ([]byte, error) {
	w := &byteSinkWriter{}
	enc := value.NewEncoder(w)
	if err := value.Encode(enc, v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func unmarshalBCO(data []byte) (*BCO, error) {
	r := &byteReader{data: data}

	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version != bcoFormatVersion {
		return nil, fmt.Errorf("bytecode: unsupported BCO format version %d", version)
	}
	role, err := r.uint32()
	if err != nil {
		return nil, err
	}
	minArgs, err := r.uint32()
	if err != nil {
		return nil, err
	}
	maxArgs, err := r.uint32()
	if err != nil {
		return nil, err
	}
	variadicByte, err := r.byte()
	if err != nil {
		return nil, err
	}
	sourceFile, err := r.string()
	if err != nil {
		return nil, err
	}
	subName, err := r.string()
	if err != nil {
		return nil, err
	}

	b := &BCO{
		Role:       Role(role),
		SourceFile: sourceFile,
		SubName:    subName,
		Args: ArgDescriptor{
			MinArgs:  int(minArgs),
			MaxArgs:  int(maxArgs),
			Variadic: variadicByte != 0,
		},
		relocated: true,
	}

	nameCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nameCount; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		b.Names = append(b.Names, s)
	}

	localCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < localCount; i++ {
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		b.Locals = append(b.Locals, s)
	}

	instCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < instCount; i++ {
		op, err := r.byte()
		if err != nil {
			return nil, err
		}
		minor, err := r.byte()
		if err != nil {
			return nil, err
		}
		hi, err := r.byte()
		if err != nil {
			return nil, err
		}
		lo, err := r.byte()
		if err != nil {
			return nil, err
		}
		b.Code = append(b.Code, Instruction{Op: Opcode(op), Minor: minor, Arg: uint16(hi)<<8 | uint16(lo)})
	}

	lineCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < lineCount; i++ {
		idx, err := r.uint32()
		if err != nil {
			return nil, err
		}
		line, err := r.uint32()
		if err != nil {
			return nil, err
		}
		b.Lines = append(b.Lines, LineEntry{InstructionIndex: int(idx), Line: int(line)})
	}

	litCount, err := r.uint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < litCount; i++ {
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		chunk, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		dec := value.NewDecoder(&byteSourceReader{data: chunk})
		v, err := value.Decode(dec)
		if err != nil {
			return nil, fmt.Errorf("bytecode: literal pool entry %d: %w", i, err)
		}
		b.Literals = append(b.Literals, v)
	}

	return b, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("bytecode: unexpected end of BCO blob")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) uint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("bytecode: unexpected end of BCO blob")
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("bytecode: unexpected end of BCO blob")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *byteReader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// byteSinkWriter and byteSourceReader adapt a plain []byte buffer to the
// io.Writer/io.Reader pair value.Encoder/Decoder expect, so a single
// literal can be serialized in isolation and embedded length-prefixed in
// the BCO blob above.
type byteSinkWriter struct{ buf []byte }

func (w *byteSinkWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

type byteSourceReader struct {
	data []byte
	pos  int
}

func (r *byteSourceReader) Read(p []byte) (int, error) {
	n := copy(p, r.data[r.pos:])
	r.pos += n
	if n == 0 {
		return 0, fmt.Errorf("bytecode: unexpected end of literal blob")
	}
	return n, nil
}
