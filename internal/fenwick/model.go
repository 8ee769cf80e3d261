// Package fenwick implements the adaptive frequency model used by the
// compressed codec's arithmetic coder (spec §4.5 "Arithmetic coding
// contexts"): a Fenwick (binary indexed) tree over a fixed alphabet gives
// O(log n) cumulative-frequency lookup and update, which is exactly what a
// range coder needs to turn a symbol into (and back out of) an interval.
//
// It is adapted from the teacher's VP8L Huffman weight tables
// (internal/lossless/encode_histogram.go), which build a static frequency
// histogram once per block; here the histogram is adaptive; incrementing
// after every coded symbol, so the predictor improves as more of the block
// is seen, without ever transmitting the table itself.
package fenwick

// Model is an adaptive frequency table over the symbol alphabet
// [0, n), backed by a Fenwick tree for O(log n) prefix-sum queries and
// point updates. Symbols are mapped to [0, n) by the caller (see the
// contexts in internal/codec/compressed for the d-residual, dt-residual,
// and byte contexts' offsets).
type Model struct {
	tree  []uint32 // 1-indexed Fenwick tree of frequencies
	n     int
	total uint32
	max   uint32 // rescale threshold, matching range-coder precision
}

// defaultMax bounds cumulative total frequency before a rescale halves
// every count; this keeps the range coder's (total, low) arithmetic within
// 32-bit precision regardless of alphabet size or stream length.
const defaultMax = 1 << 16

// New creates a Model over n symbols, seeded with an initial weight per
// symbol (weights[i] is the starting frequency for symbol i; all symbols
// must start with frequency >= 1 so none is ever impossible to code).
func New(weights []uint32) *Model {
	n := len(weights)
	m := &Model{tree: make([]uint32, n+1), n: n, max: defaultMax}
	for i, w := range weights {
		if w == 0 {
			w = 1
		}
		m.add(i, w)
	}
	return m
}

// Uniform creates a Model over n symbols with a flat initial weight of 1
// each, used for the general-purpose byte context.
func Uniform(n int) *Model {
	w := make([]uint32, n)
	for i := range w {
		w[i] = 1
	}
	return New(w)
}

// freqAt returns the current frequency of symbol i.
func (m *Model) freqAt(i int) uint32 {
	return m.cumFreq(i+1) - m.cumFreq(i)
}

// cumFreq returns the sum of frequencies of symbols [0, i).
func (m *Model) cumFreq(i int) uint32 {
	var sum uint32
	for ; i > 0; i -= i & (-i) {
		sum += m.tree[i]
	}
	return sum
}

func (m *Model) add(i int, delta uint32) {
	for i++; i <= m.n; i += i & (-i) {
		m.tree[i] += delta
	}
	m.total += delta
}

// Total returns the current total frequency across all symbols.
func (m *Model) Total() uint32 { return m.total }

// Range returns the [low, high) cumulative-frequency interval for symbol
// sym and the current total, in the form the range coder expects.
func (m *Model) Range(sym int) (low, high, total uint32) {
	low = m.cumFreq(sym)
	high = low + m.freqAt(sym)
	return low, high, m.total
}

// Find returns the symbol whose cumulative-frequency interval contains
// target (0 <= target < m.Total()), by binary search over the Fenwick
// tree's implicit prefix sums.
func (m *Model) Find(target uint32) (sym int, low, high uint32) {
	idx := 0
	cum := uint32(0)
	for bit := highestPowerOfTwo(m.n); bit > 0; bit >>= 1 {
		next := idx + bit
		if next <= m.n && cum+m.tree[next] <= target {
			idx = next
			cum += m.tree[next]
		}
	}
	sym = idx // idx is the largest prefix length with cumFreq <= target
	low = cum
	high = low + m.freqAt(sym)
	return sym, low, high
}

func highestPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}

// Update increments symbol sym's frequency by one and rescales the whole
// table if the total would exceed the coder's precision budget.
func (m *Model) Update(sym int) {
	m.add(sym, 1)
	if m.total >= m.max {
		m.rescale()
	}
}

// rescale halves every symbol's frequency (rounding up to keep a minimum
// of 1), rebuilding the Fenwick tree from scratch. This bounds Total()
// without changing the model's relative shape.
func (m *Model) rescale() {
	freqs := make([]uint32, m.n)
	for i := 0; i < m.n; i++ {
		f := m.freqAt(i)
		freqs[i] = (f + 1) / 2
		if freqs[i] == 0 {
			freqs[i] = 1
		}
	}
	for i := range m.tree {
		m.tree[i] = 0
	}
	m.total = 0
	for i, f := range freqs {
		m.add(i, f)
	}
}

// DResidualWeights builds the d-residual context's initial weight table,
// spanning symbols [0, 512) mapped from residual values [-255, 256]
// (offset = 255). Weight is peaked near zero with a secondary peak at
// +/-10, and a lower peak of the same width at +/-20, recovered from
// original_source/.../prediction.rs's Fenwick initializer (spec §4.5,
// §3.6 "Fenwick weight-table shapes").
func DResidualWeights() []uint32 {
	const n = 512
	const offset = 255
	w := make([]uint32, n)
	for i := range w {
		v := i - offset
		w[i] = peakWeight(v, 0, 200) + peakWeight(v, 10, 40) + peakWeight(v, -10, 40) + peakWeight(v, 20, 20) + peakWeight(v, -20, 20)
	}
	return w
}

// DtResidualWeights builds the delta-t residual context's initial weight
// table. Residuals reach the arithmetic coder only after sparam
// quantization (spec §4.5 "Quantize all delta_t_residuals... producing i16
// values"), so the coded alphabet is the full signed 16-bit range
// regardless of dtm: symbols [0, 65536) map from residual values
// [-32768, 32767] (offset = 32768), peaked near zero and near
// +/-refInterval (clamped into the i16 domain), per the original's
// Fenwick initializer (spec §3.6 "Fenwick weight-table shapes").
func DtResidualWeights(refInterval uint32) []uint32 {
	const n = 1 << 16
	const offset = 1 << 15
	w := make([]uint32, n)
	ref := int(refInterval)
	if ref > offset-1 {
		ref = offset - 1
	}
	for i := range w {
		v := i - offset
		w[i] = peakWeight(v, 0, 300) + peakWeight(v, ref, 80) + peakWeight(v, -ref, 80)
	}
	return w
}

func peakWeight(v, center, height int) uint32 {
	d := v - center
	if d < 0 {
		d = -d
	}
	switch {
	case d == 0:
		return uint32(height)
	case d <= 3:
		return uint32(height / (d + 1))
	default:
		return 0
	}
}
