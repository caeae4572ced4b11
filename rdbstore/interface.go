// Package rdbstore implements an archive of solved spots that keeps
// serialized solutions in a RocksDB database.
//
// Solutions are stored in the persist format and indexed both by name and
// by the topology hash of their game tree, so that a solve can be skipped
// when an identical tree has already been solved.
package rdbstore

import (
	rocksdb "github.com/tecbot/gorocksdb"
)

type Params struct {
	Path         string
	Options      *rocksdb.Options
	ReadOptions  *rocksdb.ReadOptions
	WriteOptions *rocksdb.WriteOptions
}

func DefaultParams(path string) Params {
	opts := rocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetCompression(rocksdb.NoCompression)

	return Params{
		Path:         path,
		Options:      opts,
		ReadOptions:  rocksdb.NewDefaultReadOptions(),
		WriteOptions: rocksdb.NewDefaultWriteOptions(),
	}
}

func (p Params) Close() {
	p.Options.Destroy()
	p.ReadOptions.Destroy()
	p.WriteOptions.Destroy()
}
