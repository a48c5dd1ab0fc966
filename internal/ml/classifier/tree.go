package classifier

import (
	"math"
	"math/rand"
	"sort"
)

// Node is one node of a flattened binary tree. Numeric splits send
// x <= Threshold left; categorical splits send the codes in Categories left
// and everything else, unknown codes included, right.
type Node struct {
	Leaf       bool    `json:"leaf,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Feature    int     `json:"feature,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	Categories []int   `json:"categories,omitempty"`
	Left       int     `json:"left,omitempty"`
	Right      int     `json:"right,omitempty"`
	Gain       float64 `json:"gain,omitempty"`
}

type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if n.goesLeft(x[n.Feature]) {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (n *Node) goesLeft(v float64) bool {
	if n.Categories == nil {
		return v <= n.Threshold
	}
	code := int(v)
	idx := sort.SearchInts(n.Categories, code)
	return idx < len(n.Categories) && n.Categories[idx] == code
}

// addGain accumulates split gains per feature into dst.
func (t *Tree) addGain(dst []float64) {
	for _, n := range t.Nodes {
		if !n.Leaf {
			dst[n.Feature] += n.Gain
		}
	}
}

// binMapper maps raw column values to histogram bins. Numeric bins are
// bounded by upper (inclusive); categorical bin 0 holds unknown codes and
// bin k+1 holds code k.
type binMapper struct {
	categorical bool
	upper       []float64
	bins        int
}

const maxCategoricalBins = 1024

func newBinMapper(col []float64, categorical bool, maxBins int) binMapper {
	if categorical {
		maxCode := -1
		for _, v := range col {
			if c := int(v); c > maxCode {
				maxCode = c
			}
		}
		bins := maxCode + 2
		if bins > maxCategoricalBins {
			bins = maxCategoricalBins
		}
		return binMapper{categorical: true, bins: bins}
	}

	sorted := make([]float64, len(col))
	copy(sorted, col)
	sort.Float64s(sorted)
	uniq := sorted[:0]
	for i, v := range sorted {
		if i == 0 || v != uniq[len(uniq)-1] {
			uniq = append(uniq, v)
		}
	}

	var upper []float64
	if len(uniq) <= maxBins {
		upper = append(upper, uniq...)
		upper = upper[:len(upper)-1]
	} else {
		for k := 1; k < maxBins; k++ {
			cut := uniq[k*len(uniq)/maxBins-1]
			if len(upper) == 0 || cut > upper[len(upper)-1] {
				upper = append(upper, cut)
			}
		}
	}
	// the last bin is open ended so unseen large values still map
	upper = append(upper, math.Inf(1))
	return binMapper{upper: upper, bins: len(upper)}
}

func (m *binMapper) bin(v float64) int {
	if m.categorical {
		c := int(v)
		if c < 0 || c+1 >= m.bins {
			return 0
		}
		return c + 1
	}
	return sort.SearchFloat64s(m.upper, v)
}

// binned is a training matrix quantized column by column.
type binned struct {
	mappers []binMapper
	cols    [][]uint16
}

func newBinned(d *Dataset, maxBins int) *binned {
	cols := d.Cols()
	b := &binned{mappers: make([]binMapper, cols), cols: make([][]uint16, cols)}
	col := make([]float64, d.Rows())
	for j := 0; j < cols; j++ {
		for i, row := range d.X {
			col[i] = row[j]
		}
		m := newBinMapper(col, d.isCategorical(j), maxBins)
		b.mappers[j] = m
		codes := make([]uint16, d.Rows())
		for i, v := range col {
			codes[i] = uint16(m.bin(v))
		}
		b.cols[j] = codes
	}
	return b
}

// treeParams configures a single tree grown on gradient statistics.
type treeParams struct {
	maxDepth    int
	minLeaf     int
	lambda      float64
	shrinkage   float64
	maxFeatures int // 0 means every feature
	minGain     float64
}

// treeBuilder grows depth-wise trees from per-row gradients and hessians.
// With grad = -y, hess = 1 and lambda = 0 the split gain is the reduction in
// squared error and the leaf value is the positive rate.
type treeBuilder struct {
	data   *binned
	grad   []float64
	hess   []float64
	params treeParams
	rng    *rand.Rand
	tree   *Tree
	feats  []int
}

type histBin struct {
	g, h float64
	n    int
}

type split struct {
	feature int
	gain    float64
	// numeric: bins <= bin go left. categorical: bins in leftBins go left.
	bin      int
	leftBins []int
}

func buildTree(data *binned, grad, hess []float64, rows []int, p treeParams, rng *rand.Rand) *Tree {
	b := &treeBuilder{data: data, grad: grad, hess: hess, params: p, rng: rng, tree: &Tree{}}
	b.feats = make([]int, len(data.cols))
	for j := range b.feats {
		b.feats[j] = j
	}
	b.grow(rows, 0)
	return b.tree
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var g, h float64
	for _, r := range rows {
		g += b.grad[r]
		h += b.hess[r]
	}
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{Leaf: true, Value: b.leafValue(g, h)})

	if depth >= b.params.maxDepth || len(rows) < 2*b.params.minLeaf {
		return idx
	}
	best, ok := b.bestSplit(rows, g, h)
	if !ok {
		return idx
	}

	left, right := b.partition(rows, best)
	node := Node{Feature: best.feature, Gain: best.gain}
	m := &b.data.mappers[best.feature]
	if m.categorical {
		cats := make([]int, 0, len(best.leftBins))
		for _, bin := range best.leftBins {
			cats = append(cats, bin-1)
		}
		sort.Ints(cats)
		node.Categories = cats
	} else {
		node.Threshold = m.upper[best.bin]
	}
	node.Left = b.grow(left, depth+1)
	node.Right = b.grow(right, depth+1)
	b.tree.Nodes[idx] = node
	return idx
}

func (b *treeBuilder) leafValue(g, h float64) float64 {
	den := h + b.params.lambda
	if den <= 0 {
		return 0
	}
	return -g / den * b.params.shrinkage
}

func (b *treeBuilder) score(g, h float64) float64 {
	den := h + b.params.lambda
	if den <= 0 {
		return 0
	}
	return g * g / den
}

func (b *treeBuilder) candidateFeatures() []int {
	k := b.params.maxFeatures
	if k <= 0 || k >= len(b.feats) {
		return b.feats
	}
	b.rng.Shuffle(len(b.feats), func(i, j int) { b.feats[i], b.feats[j] = b.feats[j], b.feats[i] })
	out := make([]int, k)
	copy(out, b.feats[:k])
	sort.Ints(out)
	return out
}

func (b *treeBuilder) bestSplit(rows []int, g, h float64) (split, bool) {
	parent := b.score(g, h)
	best := split{gain: b.params.minGain}
	found := false

	for _, j := range b.candidateFeatures() {
		m := &b.data.mappers[j]
		hist := make([]histBin, m.bins)
		codes := b.data.cols[j]
		for _, r := range rows {
			bin := &hist[codes[r]]
			bin.g += b.grad[r]
			bin.h += b.hess[r]
			bin.n++
		}
		var s split
		var ok bool
		if m.categorical {
			s, ok = b.categoricalSplit(hist, g, h, len(rows), parent)
		} else {
			s, ok = b.numericSplit(hist, g, h, len(rows), parent)
		}
		if ok && s.gain > best.gain {
			s.feature = j
			best = s
			found = true
		}
	}
	return best, found
}

func (b *treeBuilder) numericSplit(hist []histBin, g, h float64, n int, parent float64) (split, bool) {
	var gl, hl float64
	var nl int
	best := split{gain: math.Inf(-1)}
	for bin := 0; bin < len(hist)-1; bin++ {
		gl += hist[bin].g
		hl += hist[bin].h
		nl += hist[bin].n
		if nl < b.params.minLeaf {
			continue
		}
		if n-nl < b.params.minLeaf {
			break
		}
		gain := b.score(gl, hl) + b.score(g-gl, h-hl) - parent
		if gain > best.gain {
			best = split{gain: gain, bin: bin}
		}
	}
	return best, !math.IsInf(best.gain, -1)
}

// categoricalSplit orders the known categories by mean gradient and scans
// the prefixes of that order, the usual reduction of the 2^k subset search
// for convex losses.
func (b *treeBuilder) categoricalSplit(hist []histBin, g, h float64, n int, parent float64) (split, bool) {
	var order []int
	for bin := 1; bin < len(hist); bin++ {
		if hist[bin].n > 0 {
			order = append(order, bin)
		}
	}
	if len(order) < 2 && hist[0].n == 0 {
		return split{}, false
	}
	ratio := func(bin int) float64 {
		return hist[bin].g / (hist[bin].h + b.params.lambda + 1e-12)
	}
	sort.SliceStable(order, func(a, c int) bool { return ratio(order[a]) < ratio(order[c]) })

	var gl, hl float64
	var nl int
	best := split{gain: math.Inf(-1)}
	bestLen := 0
	for k, bin := range order {
		if k == len(order)-1 && hist[0].n == 0 {
			break
		}
		gl += hist[bin].g
		hl += hist[bin].h
		nl += hist[bin].n
		if nl < b.params.minLeaf {
			continue
		}
		if n-nl < b.params.minLeaf {
			break
		}
		gain := b.score(gl, hl) + b.score(g-gl, h-hl) - parent
		if gain > best.gain {
			best.gain = gain
			bestLen = k + 1
		}
	}
	if bestLen == 0 {
		return split{}, false
	}
	best.leftBins = append([]int(nil), order[:bestLen]...)
	return best, true
}

func (b *treeBuilder) partition(rows []int, s split) (left, right []int) {
	codes := b.data.cols[s.feature]
	var inLeft map[int]bool
	if s.leftBins != nil {
		inLeft = make(map[int]bool, len(s.leftBins))
		for _, bin := range s.leftBins {
			inLeft[bin] = true
		}
	}
	for _, r := range rows {
		bin := int(codes[r])
		var goLeft bool
		if inLeft != nil {
			goLeft = inLeft[bin]
		} else {
			goLeft = bin <= s.bin
		}
		if goLeft {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}
