// Package-level ADU (Asynchronously Decodable Unit) assembly: one ADU
// covers one spatial frame across all channels (spec §4.5 "ADU
// structure").
package compressed

import (
	"encoding/binary"
	"fmt"

	"github.com/adter/adter/internal/bitio"
	"github.com/adter/adter/internal/core"
)

// aduHeaderSize is num_bytes:u64 + head_event_t:u32, written uncompressed
// for seeking (spec §4.5 "Header: uncompressed num_bytes:u64 and
// head_event_t:u32 for seeking").
const aduHeaderSize = 8 + 4

// ADUHeader is the uncompressed, fixed-size prefix of an ADU.
type ADUHeader struct {
	NumBytes   uint64
	HeadEventT uint32
}

// ADU is one self-contained compressed unit covering one spatial frame
// across all channels (spec glossary "ADU"). Channels holds, in order, the
// R, G, B cube lists (single-channel streams use only Channels[0]).
type ADU struct {
	Header   ADUHeader
	Channels [3][]*Cube
}

// numChannels bounds how many of ADU.Channels are populated for a given
// stream channel count.
func numChannels(streamChannels int) int {
	if streamChannels <= 1 {
		return 1
	}
	if streamChannels > 3 {
		return 3
	}
	return streamChannels
}

// Encode serializes adu to bytes: the uncompressed header, followed by
// the arithmetic-coded body (cubes for each channel in order, terminated
// by an EOF symbol, byte-aligned by the range coder's Finish).
func Encode(adu *ADU, streamChannels int, mode core.Mode, refInterval, deltaTMax uint32) ([]byte, error) {
	ctx := newContexts(refInterval)
	enc := bitio.NewEncoder(1024)

	n := numChannels(streamChannels)
	for ch := 0; ch < n; ch++ {
		cubes := adu.Channels[ch]
		encodeUint16(enc, ctx.general, uint16(len(cubes)))
		for _, cube := range cubes {
			encodeByte(enc, ctx.general, byte(cube.TileX))
			encodeByte(enc, ctx.general, byte(cube.TileY))
			blocks, err := encodeCube(cube, mode, refInterval, deltaTMax)
			if err != nil {
				return nil, err
			}
			encodeUint16(enc, ctx.general, uint16(len(blocks)))
			for _, eb := range blocks {
				writeEncodedBlock(enc, ctx, eb)
			}
		}
	}
	encodeSymbol(enc, ctx.eof, 1)
	body := enc.Finish()

	out := make([]byte, aduHeaderSize, aduHeaderSize+len(body))
	binary.BigEndian.PutUint64(out[0:8], uint64(len(body)))
	binary.BigEndian.PutUint32(out[8:12], adu.Header.HeadEventT)
	out = append(out, body...)
	return out, nil
}

// Decode parses an ADU produced by Encode.
func Decode(data []byte, streamChannels int, mode core.Mode, refInterval, deltaTMax uint32) (*ADU, error) {
	if len(data) < aduHeaderSize {
		return nil, fmt.Errorf("compressed: %w: truncated ADU header", core.ErrBadFile)
	}
	numBytes := binary.BigEndian.Uint64(data[0:8])
	headT := binary.BigEndian.Uint32(data[8:12])
	body := data[aduHeaderSize:]
	if uint64(len(body)) < numBytes {
		return nil, fmt.Errorf("compressed: %w: truncated ADU body", core.ErrDeserialize)
	}
	body = body[:numBytes]

	ctx := newContexts(refInterval)
	dec := bitio.NewDecoder(body)

	adu := &ADU{Header: ADUHeader{NumBytes: numBytes, HeadEventT: headT}}
	n := numChannels(streamChannels)
	for ch := 0; ch < n; ch++ {
		nCubes := decodeUint16(dec, ctx.general)
		cubes := make([]*Cube, nCubes)
		for i := range cubes {
			tx := decodeByte(dec, ctx.general)
			ty := decodeByte(dec, ctx.general)
			nBlocks := decodeUint16(dec, ctx.general)
			blocks := make([]encodedBlock, nBlocks)
			for j := range blocks {
				blocks[j] = readEncodedBlock(dec, ctx)
			}
			decoded, err := decodeCube(blocks, mode, refInterval, deltaTMax)
			if err != nil {
				return nil, err
			}
			cubes[i] = &Cube{TileX: int(tx), TileY: int(ty), Blocks: decoded}
		}
		adu.Channels[ch] = cubes
	}
	if eofSym := decodeSymbol(dec, ctx.eof); eofSym != 1 {
		return nil, fmt.Errorf("compressed: %w: missing ADU EOF symbol", core.ErrDeserialize)
	}
	return adu, nil
}

func writeEncodedBlock(enc *bitio.Encoder, ctx *contexts, eb encodedBlock) {
	if eb.Intra {
		encodeByte(enc, ctx.general, 1)
		writeIntra(enc, ctx, eb.IC)
		return
	}
	encodeByte(enc, ctx.general, 0)
	writeInter(enc, ctx, eb.InC)
}

func readEncodedBlock(dec *bitio.Decoder, ctx *contexts) encodedBlock {
	if decodeByte(dec, ctx.general) == 1 {
		return encodedBlock{Intra: true, IC: readIntra(dec, ctx)}
	}
	return encodedBlock{Intra: false, InC: readInter(dec, ctx)}
}

func writeIntra(enc *bitio.Encoder, ctx *contexts, ic intraCoded) {
	encodeUint16(enc, ctx.general, uint16(ic.AnchorPos))
	encodeByte(enc, ctx.general, ic.StartD)
	encodeUint32(enc, ctx.general, uint32(ic.StartT))
	encodeByte(enc, ctx.general, ic.Sparam)
	encodeUint16(enc, ctx.general, uint16(len(ic.Positions)))
	for i, pos := range ic.Positions {
		encodeUint16(enc, ctx.general, uint16(pos))
		encodeDResidual(enc, ctx.dResidual, ic.DResiduals[i])
		encodeDtResidual(enc, ctx.dtResidual, int32(ic.TResiduals[i]))
	}
}

func readIntra(dec *bitio.Decoder, ctx *contexts) intraCoded {
	var ic intraCoded
	ic.AnchorPos = int(decodeUint16(dec, ctx.general))
	ic.StartD = decodeByte(dec, ctx.general)
	ic.StartT = float64(decodeUint32(dec, ctx.general))
	ic.Sparam = decodeByte(dec, ctx.general)
	n := int(decodeUint16(dec, ctx.general))
	ic.Positions = make([]int, n)
	ic.DResiduals = make([]int32, n)
	ic.TResiduals = make([]int16, n)
	for i := 0; i < n; i++ {
		ic.Positions[i] = int(decodeUint16(dec, ctx.general))
		ic.DResiduals[i] = decodeDResidual(dec, ctx.dResidual)
		ic.TResiduals[i] = int16(decodeDtResidual(dec, ctx.dtResidual))
	}
	return ic
}

func writeInter(enc *bitio.Encoder, ctx *contexts, inC interCoded) {
	encodeByte(enc, ctx.general, inC.Sparam)
	encodeUint16(enc, ctx.general, uint16(len(inC.Positions)))
	for i, pos := range inC.Positions {
		encodeUint16(enc, ctx.general, uint16(pos))
		encodeDResidual(enc, ctx.dResidual, inC.DResiduals[i])
		encodeDtResidual(enc, ctx.dtResidual, int32(inC.TResiduals[i]))
	}
}

func readInter(dec *bitio.Decoder, ctx *contexts) interCoded {
	var inC interCoded
	inC.Sparam = decodeByte(dec, ctx.general)
	n := int(decodeUint16(dec, ctx.general))
	inC.Positions = make([]int, n)
	inC.DResiduals = make([]int32, n)
	inC.TResiduals = make([]int16, n)
	for i := 0; i < n; i++ {
		inC.Positions[i] = int(decodeUint16(dec, ctx.general))
		inC.DResiduals[i] = decodeDResidual(dec, ctx.dResidual)
		inC.TResiduals[i] = int16(decodeDtResidual(dec, ctx.dtResidual))
	}
	return inC
}
