package ldbstore

import (
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/timpalpant/go-postflop/equity"
)

// EquityStore implements equity.Store by keeping matrices in a LevelDB
// database, keyed by equity.Key. It is safe for concurrent use.
type EquityStore struct {
	path  string
	db    *leveldb.DB
	rOpts *opt.ReadOptions
	wOpts *opt.WriteOptions
}

var _ equity.Store = &EquityStore{}

// New opens (or creates) an EquityStore backed by a LevelDB database at
// the given path.
func New(path string, opts *opt.Options) (*EquityStore, error) {
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening equity store %v", path)
	}

	return &EquityStore{
		path: path,
		db:   db,
	}, nil
}

// Close implements io.Closer.
func (s *EquityStore) Close() error {
	return s.db.Close()
}

// Get implements equity.Store.
func (s *EquityStore) Get(key []byte) (*equity.Matrix, error) {
	buf, err := s.db.Get(key, s.rOpts)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "reading equity store %v", s.path)
	}

	var m equity.Matrix
	if err := m.UnmarshalBinary(buf); err != nil {
		return nil, errors.Wrapf(err, "decoding matrix %x", key)
	}

	return &m, nil
}

// Put implements equity.Store.
func (s *EquityStore) Put(key []byte, m *equity.Matrix) error {
	buf, err := m.MarshalBinary()
	if err != nil {
		return err
	}

	glog.V(2).Infof("Storing %dx%d equity matrix %x", m.Rows, m.Cols, key)
	return s.db.Put(key, buf, s.wOpts)
}

// Len returns the number of stored matrices.
func (s *EquityStore) Len() (int, error) {
	iter := s.db.NewIterator(nil, s.rOpts)
	n := 0
	for iter.Next() {
		n++
	}

	iter.Release()
	return n, iter.Error()
}
