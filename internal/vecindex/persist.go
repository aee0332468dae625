package vecindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/seoulmedi/hosqa/internal/model"
)

// Snapshot layout, little endian: magic, version u16, dim u32,
// count u32, snapshot id, corpus hash, built at unix i64, then per
// entry chunk id i64, source id i64, offsets u32 pair, text and
// vector. Strings carry a u32 length prefix.
var snapshotMagic = [4]byte{'H', 'Q', 'V', 'X'}

const snapshotVersion uint16 = 1

// Save writes the index to path through a temp file so a crashed
// writer never leaves a torn snapshot behind.
func (i *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	w := bufio.NewWriter(f)
	if err := i.encode(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func (i *Index) encode(w *bufio.Writer) error {
	if _, err := w.Write(snapshotMagic[:]); err != nil {
		return err
	}
	le := binary.LittleEndian
	if err := binary.Write(w, le, snapshotVersion); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(i.dim)); err != nil {
		return err
	}
	if err := binary.Write(w, le, uint32(len(i.ids))); err != nil {
		return err
	}
	if err := writeString(w, i.SnapshotID); err != nil {
		return err
	}
	if err := writeString(w, i.CorpusHash); err != nil {
		return err
	}
	if err := binary.Write(w, le, i.BuiltAt.Unix()); err != nil {
		return err
	}
	for j := range i.ids {
		c := i.chunks[j]
		if err := binary.Write(w, le, c.ChunkID); err != nil {
			return err
		}
		if err := binary.Write(w, le, c.SourceID); err != nil {
			return err
		}
		if err := binary.Write(w, le, uint32(c.StartOffset)); err != nil {
			return err
		}
		if err := binary.Write(w, le, uint32(c.EndOffset)); err != nil {
			return err
		}
		if err := writeString(w, c.Text); err != nil {
			return err
		}
		for _, v := range i.vecs[j] {
			if err := binary.Write(w, le, math.Float32bits(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeString(w *bufio.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// Load restores a saved index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(data)
}

func decode(data []byte) (*Index, error) {
	cur := &cursor{data: data}
	magic, err := cur.bytes(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != string(snapshotMagic[:]) {
		return nil, errors.New("snapshot: bad magic")
	}
	version, err := cur.u16()
	if err != nil {
		return nil, err
	}
	if version != snapshotVersion {
		return nil, fmt.Errorf("snapshot: unsupported version %d", version)
	}
	dim, err := cur.u32()
	if err != nil {
		return nil, err
	}
	count, err := cur.u32()
	if err != nil {
		return nil, err
	}
	idx, err := New(int(dim))
	if err != nil {
		return nil, err
	}
	if idx.SnapshotID, err = cur.str(); err != nil {
		return nil, err
	}
	if idx.CorpusHash, err = cur.str(); err != nil {
		return nil, err
	}
	builtAt, err := cur.i64()
	if err != nil {
		return nil, err
	}
	idx.BuiltAt = time.Unix(builtAt, 0).UTC()
	for n := uint32(0); n < count; n++ {
		var c model.Chunk
		if c.ChunkID, err = cur.i64(); err != nil {
			return nil, err
		}
		if c.SourceID, err = cur.i64(); err != nil {
			return nil, err
		}
		start, err := cur.u32()
		if err != nil {
			return nil, err
		}
		end, err := cur.u32()
		if err != nil {
			return nil, err
		}
		c.StartOffset, c.EndOffset = int(start), int(end)
		if c.Text, err = cur.str(); err != nil {
			return nil, err
		}
		vec := make([]float32, dim)
		for j := range vec {
			bits, err := cur.u32()
			if err != nil {
				return nil, err
			}
			vec[j] = math.Float32frombits(bits)
		}
		if err := idx.Insert(model.EmbeddedChunk{Chunk: c, Vector: vec}); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

type cursor struct {
	data []byte
	off  int
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if c.off+n > len(c.data) {
		return nil, errors.New("snapshot: truncated")
	}
	out := c.data[c.off : c.off+n]
	c.off += n
	return out, nil
}

func (c *cursor) u16() (uint16, error) {
	b, err := c.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *cursor) u32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) i64() (int64, error) {
	b, err := c.bytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
