package persist

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"io"
	"math"
	"os"

	"github.com/golang/glog"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	postflop "github.com/timpalpant/go-postflop"
)

// Save writes sol to w.
func Save(w io.Writer, sol *postflop.Solution, opts Options) error {
	bw := bufio.NewWriter(w)
	var flags uint8
	if opts.Compress {
		flags |= flagCompressed
	}
	if opts.IncludeRegrets {
		if sol.Store.Regret == nil {
			return errors.New("solution has no regrets to save")
		}
		flags |= flagRegrets
	}

	hash := sol.Tree.Hash()
	header := make([]byte, 0, headerSize)
	header = append(header, Magic...)
	header = binary.LittleEndian.AppendUint32(header, FormatVersion)
	header = append(header, hash[:]...)
	header = append(header, flags)
	if _, err := bw.Write(header); err != nil {
		return errors.Wrap(err, "writing header")
	}

	var body io.Writer = bw
	var enc *zstd.Encoder
	if opts.Compress {
		var err error
		enc, err = zstd.NewWriter(bw, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return errors.Wrap(err, "creating zstd encoder")
		}
		body = enc
	}

	if err := writeBody(body, sol, opts.IncludeRegrets); err != nil {
		if enc != nil {
			enc.Close()
		}
		return err
	}

	if enc != nil {
		if err := enc.Close(); err != nil {
			return errors.Wrap(err, "flushing zstd stream")
		}
	}

	return bw.Flush()
}

// SaveFile writes sol to the named file.
func SaveFile(path string, sol *postflop.Solution, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := Save(f, sol, opts); err != nil {
		f.Close()
		return err
	}

	glog.Infof("Saved solution after %d iterations to %v", sol.Iteration, path)
	return f.Close()
}

func writeBody(w io.Writer, sol *postflop.Solution, includeRegrets bool) error {
	var cfg bytes.Buffer
	if err := gob.NewEncoder(&cfg).Encode(newConfigRecord(sol.Tree.Config)); err != nil {
		return errors.Wrap(err, "encoding config")
	}

	bw := &binaryWriter{w: w}
	bw.u32(uint32(cfg.Len()))
	bw.write(cfg.Bytes())
	bw.u32(uint32(sol.Iteration))
	bw.u32(math.Float32bits(float32(sol.Exploitability)))

	offsets := sol.Store.Offsets
	bw.u32(uint32(len(offsets)))
	for _, offset := range offsets {
		bw.u64(uint64(offset))
	}

	bw.floats(sol.Store.StrategySum)
	if includeRegrets {
		bw.floats(sol.Store.Regret)
	}

	return errors.Wrap(bw.err, "writing body")
}

// binaryWriter writes little endian values, remembering the first error.
type binaryWriter struct {
	w   io.Writer
	buf []byte
	err error
}

func (bw *binaryWriter) write(p []byte) {
	if bw.err == nil {
		_, bw.err = bw.w.Write(p)
	}
}

func (bw *binaryWriter) u32(x uint32) {
	bw.buf = binary.LittleEndian.AppendUint32(bw.buf[:0], x)
	bw.write(bw.buf)
}

func (bw *binaryWriter) u64(x uint64) {
	bw.buf = binary.LittleEndian.AppendUint64(bw.buf[:0], x)
	bw.write(bw.buf)
}

const chunkSize = 1 << 14

func (bw *binaryWriter) floats(xs []float32) {
	bw.u64(uint64(len(xs)))
	for len(xs) > 0 && bw.err == nil {
		n := len(xs)
		if n > chunkSize {
			n = chunkSize
		}

		bw.buf = bw.buf[:0]
		for _, x := range xs[:n] {
			bw.buf = binary.LittleEndian.AppendUint32(bw.buf, math.Float32bits(x))
		}

		bw.write(bw.buf)
		xs = xs[n:]
	}
}
