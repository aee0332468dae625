package chunker

import (
	"fmt"

	"github.com/seoulmedi/hosqa/internal/model"
	apperr "github.com/seoulmedi/hosqa/internal/pkg/errors"
)

// seqBits is how much of the chunk id holds the per-record sequence
// number. Chunk ids stay stable across rebuilds of the same corpus.
const seqBits = 20

// Chunker splits record documents into fixed size rune windows with
// overlap between consecutive windows.
type Chunker struct {
	size    int
	overlap int
	step    int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", apperr.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, size), got %d with size %d", apperr.ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap, step: size - overlap}, nil
}

// Split windows the record document. Offsets are rune positions, the
// final window may be shorter and is never wholly contained in the
// previous one. Splitting the same record always yields the same
// chunks.
func (c *Chunker) Split(rec model.SourceRecord) []model.Chunk {
	runes := []rune(rec.Document())
	if len(runes) == 0 {
		return nil
	}
	var chunks []model.Chunk
	for start := 0; start < len(runes); start += c.step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, model.Chunk{
			ChunkID:     rec.ID<<seqBits | int64(len(chunks)),
			SourceID:    rec.ID,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}
