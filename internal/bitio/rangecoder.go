// Package bitio provides the byte-oriented arithmetic (range) coder used
// by the compressed codec's cube/ADU body (spec §4.5 "Arithmetic coding
// contexts"): an Encoder turns a cumulative-frequency interval from an
// internal/fenwick Model into bytes, and a Decoder does the reverse.
//
// It is adapted from the teacher's VP8 boolean coder
// (formerly BoolReader/BoolWriter here): that coder narrows a fixed
// 0..255 range by an 8-bit probability and renormalizes with a
// carry-propagating "run of pending 0xff bytes" whenever the range drops
// below 127. This coder keeps the same shape — a shrinking range,
// byte-at-a-time renormalization, and carry propagation through a run of
// cached bytes — but generalizes the split from a single probability bit
// to an arbitrary (low, high, total) cumulative-frequency interval, which
// is what a multi-symbol Fenwick model needs.
package bitio

// topValue is the renormalization threshold: whenever the range drops
// below this, one byte has been fully determined and is shifted out.
const topValue uint32 = 1 << 24

// Encoder is a carry-propagating byte-oriented range encoder.
type Encoder struct {
	low       uint64
	rng       uint32
	cache     byte
	cacheSize uint64
	buf       []byte
}

// NewEncoder creates an Encoder with an initial buffer sized for
// expectedSize bytes. Pass 0 for a minimal default allocation.
func NewEncoder(expectedSize int) *Encoder {
	if expectedSize < 256 {
		expectedSize = 256
	}
	return &Encoder{
		rng:       0xFFFFFFFF,
		cacheSize: 1,
		buf:       make([]byte, 0, expectedSize),
	}
}

// Encode narrows the coder's range to the interval [low, high) out of
// total, per the Fenwick model's cumulative frequencies, then
// renormalizes. Requires total <= topValue.
func (e *Encoder) Encode(low, high, total uint32) {
	r := e.rng / total
	e.low += uint64(r) * uint64(low)
	e.rng = r * (high - low)
	for e.rng < topValue {
		e.shiftLow()
		e.rng <<= 8
	}
}

// shiftLow emits the top byte of low once it can no longer be altered by a
// carry, buffering a run of pending 0xFF bytes exactly as BoolWriter.flush
// buffered a run of pending 0xff bytes awaiting a carry decision.
func (e *Encoder) shiftLow() {
	if uint32(e.low>>32) != 0 || e.low < 0xFF000000 {
		carry := byte(e.low >> 32)
		temp := e.cache
		for {
			e.buf = append(e.buf, temp+carry)
			temp = 0xFF
			e.cacheSize--
			if e.cacheSize == 0 {
				break
			}
		}
		e.cache = byte(e.low >> 24)
	}
	e.cacheSize++
	e.low = (e.low << 8) & 0xFFFFFFFF
}

// Finish flushes the remaining state and returns the encoded bytes,
// including the one-byte decoder priming prefix.
func (e *Encoder) Finish() []byte {
	for i := 0; i < 5; i++ {
		e.shiftLow()
	}
	return e.buf
}

// Decoder is the decoding counterpart of Encoder.
type Decoder struct {
	rng  uint32
	code uint32
	buf  []byte
	pos  int
}

// NewDecoder creates a Decoder over data, which must have been produced by
// Encoder.Finish. The leading priming byte Encoder always emits first is
// skipped, matching the encoder's initial cache=0/cacheSize=1 state.
func NewDecoder(data []byte) *Decoder {
	d := &Decoder{rng: 0xFFFFFFFF, buf: data, pos: 1}
	for i := 0; i < 4; i++ {
		d.code = d.code<<8 | uint32(d.readByte())
	}
	return d
}

func (d *Decoder) readByte() byte {
	if d.pos < len(d.buf) {
		b := d.buf[d.pos]
		d.pos++
		return b
	}
	d.pos++
	return 0
}

// Freq maps the decoder's current position within [0, total) to the value
// the caller uses to look up which symbol's interval contains it
// (fenwick.Model.Find). Call Decode immediately after with that symbol's
// (low, high, total) to consume it.
func (d *Decoder) Freq(total uint32) uint32 {
	d.rng /= total
	v := d.code / d.rng
	if v >= total {
		v = total - 1
	}
	return v
}

// Decode consumes the interval [low, high) out of total that Freq's
// return value resolved to, and renormalizes.
func (d *Decoder) Decode(low, high, total uint32) {
	d.code -= low * d.rng
	d.rng *= high - low
	for d.rng < topValue {
		d.code = d.code<<8 | uint32(d.readByte())
		d.rng <<= 8
	}
}
