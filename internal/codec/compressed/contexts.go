// Package compressed implements the Compressed Codec (component E):
// block-structured, arithmetic-coded predictive encoding of ADTER events
// (spec §4.5). Events are grouped into 16x16-pixel blocks, blocks into
// per-tile-per-channel cubes, and cubes into ADUs (one self-contained
// asynchronously-decodable unit per spatial frame).
//
// It is adapted from the teacher's VP8L LZ77+Huffman backward-reference
// pipeline (internal/lossless): there, a single adaptive model (Huffman
// codes rebuilt from a histogram) feeds a bit writer; here, several named
// adaptive Fenwick contexts feed the carry-propagating range coder in
// internal/bitio, one context per residual's statistical shape.
package compressed

import (
	"github.com/adter/adter/internal/bitio"
	"github.com/adter/adter/internal/fenwick"
)

const (
	byteContextSize  = 256
	dResidualOffset  = 255
	dResidualSize    = 512
	dtResidualOffset = 1 << 15
	dtResidualSize   = 1 << 16
)

// contexts bundles the named Fenwick models an ADU's arithmetic coder uses
// (spec §4.5 "Arithmetic coding contexts"): a general u8 context, a
// d-residual context, a delta_t-residual context, and a single-bit EOF
// context. A fresh set is built at every ADU boundary so decoding never
// depends on state from a neighboring ADU (spec §9 "Fenwick model
// lifecycle" — the reset is what enables random-access decoding).
type contexts struct {
	general    *fenwick.Model
	dResidual  *fenwick.Model
	dtResidual *fenwick.Model
	eof        *fenwick.Model
}

func newContexts(refInterval uint32) *contexts {
	return &contexts{
		general:    fenwick.Uniform(byteContextSize),
		dResidual:  fenwick.New(fenwick.DResidualWeights()),
		dtResidual: fenwick.New(fenwick.DtResidualWeights(refInterval)),
		eof:        fenwick.Uniform(2),
	}
}

func encodeSymbol(enc *bitio.Encoder, m *fenwick.Model, sym int) {
	low, high, total := m.Range(sym)
	enc.Encode(low, high, total)
	m.Update(sym)
}

func decodeSymbol(dec *bitio.Decoder, m *fenwick.Model) int {
	total := m.Total()
	target := dec.Freq(total)
	sym, low, high := m.Find(target)
	dec.Decode(low, high, total)
	m.Update(sym)
	return sym
}

func encodeByte(enc *bitio.Encoder, m *fenwick.Model, b byte) {
	encodeSymbol(enc, m, int(b))
}

func decodeByte(dec *bitio.Decoder, m *fenwick.Model) byte {
	return byte(decodeSymbol(dec, m))
}

func encodeUint16(enc *bitio.Encoder, m *fenwick.Model, v uint16) {
	encodeByte(enc, m, byte(v>>8))
	encodeByte(enc, m, byte(v))
}

func decodeUint16(dec *bitio.Decoder, m *fenwick.Model) uint16 {
	hi := decodeByte(dec, m)
	lo := decodeByte(dec, m)
	return uint16(hi)<<8 | uint16(lo)
}

func encodeUint32(enc *bitio.Encoder, m *fenwick.Model, v uint32) {
	encodeByte(enc, m, byte(v>>24))
	encodeByte(enc, m, byte(v>>16))
	encodeByte(enc, m, byte(v>>8))
	encodeByte(enc, m, byte(v))
}

func decodeUint32(dec *bitio.Decoder, m *fenwick.Model) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v = v<<8 | uint32(decodeByte(dec, m))
	}
	return v
}

func encodeDResidual(enc *bitio.Encoder, m *fenwick.Model, residual int32) {
	encodeSymbol(enc, m, clampResidualSymbol(int(residual)+dResidualOffset, dResidualSize))
}

func decodeDResidual(dec *bitio.Decoder, m *fenwick.Model) int32 {
	return int32(decodeSymbol(dec, m) - dResidualOffset)
}

func encodeDtResidual(enc *bitio.Encoder, m *fenwick.Model, residual int32) {
	encodeSymbol(enc, m, clampResidualSymbol(int(residual)+dtResidualOffset, dtResidualSize))
}

func decodeDtResidual(dec *bitio.Decoder, m *fenwick.Model) int32 {
	return int32(decodeSymbol(dec, m) - dtResidualOffset)
}

func clampResidualSymbol(sym, size int) int {
	if sym < 0 {
		return 0
	}
	if sym >= size {
		return size - 1
	}
	return sym
}
