package tree

import (
	"encoding/binary"
	"hash"
	"math"

	"golang.org/x/crypto/sha3"
)

// Hash returns a SHA3-256 digest of the tree topology, hand lists and
// buffer layout. Two trees with the same hash accept each other's
// strategy buffers.
func (t *Tree) Hash() [32]byte {
	h := sha3.New256()
	w := hashWriter{h: h}

	w.u64(uint64(len(t.Nodes)))
	for i := range t.Nodes {
		node := &t.Nodes[i]
		w.bytes(byte(node.Type), byte(node.Terminal), byte(node.Street), byte(node.Player), byte(node.Card))
		w.u64(uint64(node.Size))
		w.u64(uint64(node.NumEdges))
		w.u64(uint64(node.NumDeals))
		w.u64(uint64(t.Offsets[i]))
		w.f64(node.Committed[0])
		w.f64(node.Committed[1])
		for j := node.FirstEdge; j < node.FirstEdge+node.NumEdges; j++ {
			w.u64(uint64(t.Edges[j] - int32(i)))
			w.bytes(byte(t.Actions[j].Kind))
			w.f64(t.Actions[j].Amount)
		}

		for _, deal := range t.NodeDeals(int32(i)) {
			w.bytes(byte(deal.Card), byte(deal.Swap))
			w.u64(uint64(deal.Child - int32(i)))
		}
	}

	for p, hands := range t.Hands {
		w.u64(uint64(len(hands)))
		for i, hand := range hands {
			w.bytes(byte(hand[0]), byte(hand[1]))
			w.f64(float64(t.Weights[p][i]))
		}
	}

	var result [32]byte
	copy(result[:], h.Sum(nil))
	return result
}

type hashWriter struct {
	h   hash.Hash
	buf [8]byte
}

func (w *hashWriter) bytes(bs ...byte) {
	w.h.Write(bs)
}

func (w *hashWriter) u64(x uint64) {
	binary.LittleEndian.PutUint64(w.buf[:], x)
	w.h.Write(w.buf[:])
}

func (w *hashWriter) f64(x float64) {
	w.u64(math.Float64bits(x))
}
