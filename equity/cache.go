package equity

import (
	"sort"
	"sync"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/sha3"

	"github.com/timpalpant/go-postflop/cards"
)

// Store persists equity matrices across processes.
type Store interface {
	// Get returns the matrix stored under key, or nil if there is none.
	Get(key []byte) (*Matrix, error)
	Put(key []byte, m *Matrix) error
}

// Key identifies the equity matrix of two hand lists on a board. The order
// of the board cards does not matter; the order of the hands does.
func Key(board []cards.Card, a, b []cards.Hand) [32]byte {
	sorted := append([]cards.Card(nil), board...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	h := sha3.New256()
	buf := make([]byte, 0, 1+len(sorted)+8+2*len(a)+2*len(b))
	buf = append(buf, byte(len(sorted)))
	for _, c := range sorted {
		buf = append(buf, byte(c))
	}

	for _, hands := range [][]cards.Hand{a, b} {
		n := len(hands)
		buf = append(buf, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
		for _, hand := range hands {
			buf = append(buf, byte(hand[0]), byte(hand[1]))
		}
	}

	h.Write(buf)
	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Cache is an Engine that memoizes another Engine, optionally backed by a
// persistent Store. It is safe for concurrent use.
type Cache struct {
	engine Engine
	store  Store

	mx       sync.Mutex
	matrices map[[32]byte]*Matrix
	hits     int
	misses   int
}

// NewCache returns a Cache in front of engine. store may be nil.
func NewCache(engine Engine, store Store) *Cache {
	return &Cache{
		engine:   engine,
		store:    store,
		matrices: make(map[[32]byte]*Matrix),
	}
}

// Equities implements Engine.
func (c *Cache) Equities(board []cards.Card, a, b []cards.Hand) (*Matrix, error) {
	key := Key(board, a, b)
	c.mx.Lock()
	m, ok := c.matrices[key]
	if ok {
		c.hits++
	}
	c.mx.Unlock()
	if ok {
		return m, nil
	}

	m, err := c.load(key, board, a, b)
	if err != nil {
		return nil, err
	}

	if m.Rows != len(a) || m.Cols != len(b) {
		return nil, errors.Errorf("equity matrix for %v is %dx%d, expected %dx%d",
			cards.FormatCards(board), m.Rows, m.Cols, len(a), len(b))
	}

	c.mx.Lock()
	c.matrices[key] = m
	c.misses++
	c.mx.Unlock()
	return m, nil
}

func (c *Cache) load(key [32]byte, board []cards.Card, a, b []cards.Hand) (*Matrix, error) {
	if c.store != nil {
		m, err := c.store.Get(key[:])
		if err != nil {
			return nil, errors.Wrap(err, "reading equity store")
		} else if m != nil {
			glog.V(2).Infof("Loaded equities for %v from store", cards.FormatCards(board))
			return m, nil
		}
	}

	m, err := c.engine.Equities(board, a, b)
	if err != nil {
		return nil, errors.Wrapf(err, "computing equities on %v", cards.FormatCards(board))
	}

	if c.store != nil {
		if err := c.store.Put(key[:], m); err != nil {
			return nil, errors.Wrap(err, "writing equity store")
		}
	}

	return m, nil
}

// Stats returns the number of lookups served from memory and the number
// that had to be loaded or computed.
func (c *Cache) Stats() (hits, misses int) {
	c.mx.Lock()
	defer c.mx.Unlock()
	return c.hits, c.misses
}

// Len returns the number of cached matrices.
func (c *Cache) Len() int {
	c.mx.Lock()
	defer c.mx.Unlock()
	return len(c.matrices)
}
