package rdbstore

import (
	"bytes"
	"encoding/hex"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	rocksdb "github.com/tecbot/gorocksdb"

	postflop "github.com/timpalpant/go-postflop"
	"github.com/timpalpant/go-postflop/persist"
)

const (
	solutionPrefix = "s:"
	topologyPrefix = "h:"
	hashSize       = 32
)

// Archive stores solutions by name. Each entry holds the topology hash of
// the solved tree followed by the solution in the persist format.
type Archive struct {
	params Params
	db     *rocksdb.DB
}

// Open opens (or creates) an Archive in a RocksDB database.
func Open(params Params) (*Archive, error) {
	db, err := rocksdb.OpenDb(params.Options, params.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening archive %v", params.Path)
	}

	return &Archive{params: params, db: db}, nil
}

// Close implements io.Closer.
func (a *Archive) Close() error {
	a.db.Close()
	return nil
}

func solutionKey(name string) []byte {
	return []byte(solutionPrefix + name)
}

func topologyKey(hash [hashSize]byte, name string) []byte {
	return []byte(topologyPrefix + hex.EncodeToString(hash[:]) + ":" + name)
}

// Put stores sol under name, replacing any previous entry.
func (a *Archive) Put(name string, sol *postflop.Solution, opts persist.Options) error {
	hash := sol.Tree.Hash()
	var buf bytes.Buffer
	buf.Write(hash[:])
	if err := persist.Save(&buf, sol, opts); err != nil {
		return err
	}

	if err := a.Delete(name); err != nil {
		return err
	}

	wb := rocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.Put(solutionKey(name), buf.Bytes())
	wb.Put(topologyKey(hash, name), nil)
	if err := a.db.Write(a.params.WriteOptions, wb); err != nil {
		return errors.Wrapf(err, "storing solution %q", name)
	}

	glog.V(1).Infof("Archived solution %q (%d bytes)", name, buf.Len())
	return nil
}

func (a *Archive) get(name string) ([]byte, error) {
	result, err := a.db.Get(a.params.ReadOptions, solutionKey(name))
	if err != nil {
		return nil, err
	}
	defer result.Free()

	if !result.Exists() {
		return nil, nil
	}

	buf := append([]byte(nil), result.Data()...)
	if len(buf) < hashSize {
		return nil, errors.Errorf("archive entry %q is truncated", name)
	}

	return buf, nil
}

// Get loads the solution stored under name, or returns nil if there is none.
func (a *Archive) Get(name string) (*postflop.Solution, error) {
	buf, err := a.get(name)
	if err != nil || buf == nil {
		return nil, err
	}

	sol, err := persist.Load(bytes.NewReader(buf[hashSize:]))
	if err != nil {
		return nil, errors.Wrapf(err, "loading solution %q", name)
	}

	return sol, nil
}

// Delete removes the solution stored under name, if any.
func (a *Archive) Delete(name string) error {
	buf, err := a.get(name)
	if err != nil || buf == nil {
		return err
	}

	var hash [hashSize]byte
	copy(hash[:], buf)
	wb := rocksdb.NewWriteBatch()
	defer wb.Destroy()
	wb.Delete(solutionKey(name))
	wb.Delete(topologyKey(hash, name))
	return a.db.Write(a.params.WriteOptions, wb)
}

// Names returns the names of every stored solution in sorted order.
func (a *Archive) Names() ([]string, error) {
	return a.scan([]byte(solutionPrefix))
}

// Lookup returns the names of stored solutions whose tree has the given
// topology hash.
func (a *Archive) Lookup(hash [hashSize]byte) ([]string, error) {
	return a.scan([]byte(topologyPrefix + hex.EncodeToString(hash[:]) + ":"))
}

func (a *Archive) scan(prefix []byte) ([]string, error) {
	it := a.db.NewIterator(a.params.ReadOptions)
	defer it.Close()

	var names []string
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		key := it.Key()
		names = append(names, string(key.Data()[len(prefix):]))
		key.Free()
	}

	return names, it.Err()
}
