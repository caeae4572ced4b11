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
	"github.com/timpalpant/go-postflop/store"
	"github.com/timpalpant/go-postflop/tree"
)

// Load reads a solution written by Save. The game tree is rebuilt from the
// saved configuration. Load returns a *SerializationError if the file is
// malformed, has an unsupported version, or its topology hash does not
// match the rebuilt tree.
func Load(r io.Reader) (*postflop.Solution, error) {
	br := bufio.NewReader(r)
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, serializationErrorf(err, "reading header")
	}

	if string(header[:4]) != Magic {
		return nil, serializationErrorf(nil, "bad magic %q", header[:4])
	}

	if version := binary.LittleEndian.Uint32(header[4:]); version != FormatVersion {
		return nil, serializationErrorf(nil, "unsupported format version %d (expected %d)",
			version, FormatVersion)
	}

	var hash [32]byte
	copy(hash[:], header[8:40])
	flags := header[40]

	var body io.Reader = br
	if flags&flagCompressed != 0 {
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, serializationErrorf(err, "creating zstd decoder")
		}
		defer dec.Close()
		body = dec
	}

	sol, err := readBody(body, hash, flags&flagRegrets != 0)
	if err != nil {
		return nil, err
	}

	return sol, nil
}

// LoadFile reads a solution from the named file.
func LoadFile(path string) (*postflop.Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sol, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %v", path)
	}

	glog.Infof("Loaded solution after %d iterations from %v", sol.Iteration, path)
	return sol, nil
}

func readBody(r io.Reader, hash [32]byte, hasRegrets bool) (*postflop.Solution, error) {
	br := &binaryReader{r: r}
	cfgLen := br.u32()
	cfgBytes := br.bytes(int(cfgLen))
	iteration := br.u32()
	exploitability := math.Float32frombits(br.u32())
	if br.err != nil {
		return nil, serializationErrorf(br.err, "reading body")
	}

	var rec configRecord
	if err := gob.NewDecoder(bytes.NewReader(cfgBytes)).Decode(&rec); err != nil {
		return nil, serializationErrorf(err, "decoding config")
	}

	cfg, err := rec.config()
	if err != nil {
		return nil, err
	}

	t, err := tree.Build(cfg)
	if err != nil {
		return nil, serializationErrorf(err, "rebuilding game tree")
	}

	if t.Hash() != hash {
		return nil, serializationErrorf(nil, "topology hash of rebuilt tree does not match")
	}

	numNodes := br.u32()
	if br.err == nil && int(numNodes) != t.NumNodes() {
		return nil, serializationErrorf(nil, "file has %d nodes, rebuilt tree has %d",
			numNodes, t.NumNodes())
	}

	offsets := make([]int64, t.NumNodes())
	for i := range offsets {
		offsets[i] = int64(br.u64())
	}

	sums := br.floats()
	var regrets []float32
	if hasRegrets {
		regrets = br.floats()
	}

	if br.err != nil {
		return nil, serializationErrorf(br.err, "reading buffers")
	}

	st, err := store.FromBuffers(t, offsets, sums, regrets)
	if err != nil {
		return nil, serializationErrorf(err, "invalid buffers")
	}

	return &postflop.Solution{
		Tree:           t,
		Store:          st,
		Iteration:      int(iteration),
		Exploitability: float64(exploitability),
	}, nil
}

// binaryReader reads little endian values, remembering the first error.
type binaryReader struct {
	r   io.Reader
	buf [8]byte
	err error
}

func (br *binaryReader) read(p []byte) {
	if br.err == nil {
		_, br.err = io.ReadFull(br.r, p)
	}
}

func (br *binaryReader) u32() uint32 {
	br.read(br.buf[:4])
	if br.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(br.buf[:4])
}

func (br *binaryReader) u64() uint64 {
	br.read(br.buf[:8])
	if br.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(br.buf[:8])
}

// maxBytes bounds single allocations made on behalf of a file so that a
// corrupt length cannot exhaust memory.
const maxBytes = 1 << 36

func (br *binaryReader) bytes(n int) []byte {
	if br.err != nil {
		return nil
	} else if n > maxBytes {
		br.err = errors.Errorf("record of %d bytes exceeds limit", n)
		return nil
	}

	buf := make([]byte, n)
	br.read(buf)
	return buf
}

func (br *binaryReader) floats() []float32 {
	n := br.u64()
	if br.err != nil {
		return nil
	} else if n > maxBytes/4 {
		br.err = errors.Errorf("buffer of %d entries exceeds limit", n)
		return nil
	}

	result := make([]float32, n)
	chunk := make([]byte, 4*chunkSize)
	for i := 0; i < len(result) && br.err == nil; i += chunkSize {
		m := len(result) - i
		if m > chunkSize {
			m = chunkSize
		}

		br.read(chunk[:4*m])
		for j := 0; j < m; j++ {
			result[i+j] = math.Float32frombits(binary.LittleEndian.Uint32(chunk[4*j:]))
		}
	}

	return result
}
