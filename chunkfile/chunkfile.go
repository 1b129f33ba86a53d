// Package chunkfile reads and writes CCIL's 16-byte bytecode header and
// the header-optional payload rule described in spec.md §6.
package chunkfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicByte0 = 0xCC
	magicByte1 = 0x17

	// HeaderSize is the fixed width of a present header, in bytes.
	HeaderSize = 16

	// AssemblerFlag is flags bit 0: set when the chunk was produced by
	// the assembler rather than the compiler.
	AssemblerFlag = 1 << 0
)

// Error marks a malformed chunk file — a bad magic-adjacent read, a
// truncated header, or (reserved for future use) a version mismatch.
type Error struct {
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("chunkfile: %s", e.Message)
}

// Header mirrors the 16-byte on-disk layout exactly.
type Header struct {
	VersionMajor byte
	VersionMinor byte
	VersionPatch byte
	Flags        byte
	Timestamp    uint32 // UTC Unix seconds, truncated to 32 bits
}

// WroteByAssembler reports whether flags bit 0 is set.
func (h Header) WroteByAssembler() bool {
	return h.Flags&AssemblerFlag != 0
}

func (h Header) encode() [HeaderSize]byte {
	var buf [HeaderSize]byte
	buf[0] = magicByte0
	buf[1] = magicByte1
	buf[2] = h.VersionMajor
	buf[3] = h.VersionMinor
	buf[4] = h.VersionPatch
	buf[5] = h.Flags
	binary.LittleEndian.PutUint32(buf[6:10], h.Timestamp)
	// buf[10:16] stays zero: reserved.
	return buf
}

// WriteOptions controls the header Write produces.
type WriteOptions struct {
	VersionMajor, VersionMinor, VersionPatch byte
	AssemblerProduced                        bool
	Timestamp                                uint32
}

// Write emits a 16-byte header followed by instrs verbatim.
func Write(w io.Writer, instrs []byte, opts WriteOptions) error {
	h := Header{
		VersionMajor: opts.VersionMajor,
		VersionMinor: opts.VersionMinor,
		VersionPatch: opts.VersionPatch,
		Timestamp:    opts.Timestamp,
	}
	if opts.AssemblerProduced {
		h.Flags |= AssemblerFlag
	}
	buf := h.encode()
	if _, err := w.Write(buf[:]); err != nil {
		return Error{Message: fmt.Sprintf("writing header: %s", err)}
	}
	if _, err := w.Write(instrs); err != nil {
		return Error{Message: fmt.Sprintf("writing payload: %s", err)}
	}
	return nil
}

// Read implements the header-optional rule: if the first two bytes don't
// match the magic, the entire input is the instruction payload and header
// is nil.
func Read(r io.Reader) (header *Header, instrs []byte, err error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, Error{Message: fmt.Sprintf("reading chunk: %s", err)}
	}
	if len(all) < 2 || all[0] != magicByte0 || all[1] != magicByte1 {
		return nil, all, nil
	}
	if len(all) < HeaderSize {
		return nil, nil, Error{Message: "truncated header: fewer than 16 bytes after magic"}
	}
	// Bytes 10-15 are reserved: must be zero on write, ignored on read.
	h := &Header{
		VersionMajor: all[2],
		VersionMinor: all[3],
		VersionPatch: all[4],
		Flags:        all[5],
		Timestamp:    binary.LittleEndian.Uint32(all[6:10]),
	}
	return h, all[HeaderSize:], nil
}
