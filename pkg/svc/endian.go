package svc

import "encoding/binary"

// HostOrder adapts SVC buffer words to the master host's native word
// order at the register boundary, the single place endianness is
// handled: every byte-order decision funnels through a handful of
// encode/decode functions rather than being scattered across callers.
type HostOrder struct {
	BigEndian bool
}

// SwapWords reorders 16-bit words in place for a 4-byte (two-word) or
// 8-byte (four-word) operand on a big-endian host, swapping pairs of
// 16-bit words for 4-byte operands and 4-tuples for 8-byte operands.
// Byte-variable lists are passed through unchanged; no swap is performed
// for those.
func (h HostOrder) SwapWords(words []uint16) {
	if !h.BigEndian {
		return
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
}

// Uint32 decodes a 4-byte SVC operand (e.g. an IDN or a list-length header)
// honoring host order.
func (h HostOrder) Uint32(buf []byte) uint32 {
	words := []uint16{binary.LittleEndian.Uint16(buf[0:2]), binary.LittleEndian.Uint16(buf[2:4])}
	h.SwapWords(words)
	return uint32(words[0]) | uint32(words[1])<<16
}

// PutUint32 encodes a 4-byte SVC operand honoring host order.
func (h HostOrder) PutUint32(buf []byte, v uint32) {
	words := []uint16{uint16(v), uint16(v >> 16)}
	h.SwapWords(words)
	binary.LittleEndian.PutUint16(buf[0:2], words[0])
	binary.LittleEndian.PutUint16(buf[2:4], words[1])
}

// Uint64 decodes an 8-byte SVC operand honoring host order.
func (h HostOrder) Uint64(buf []byte) uint64 {
	words := make([]uint16, 4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(buf[i*2 : i*2+2])
	}
	h.SwapWords(words)
	var v uint64
	for i, w := range words {
		v |= uint64(w) << (16 * i)
	}
	return v
}
