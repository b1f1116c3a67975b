package ranges

import (
	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// CurrentSizeNames are the wire names of a range that carries the size of the
// chunk in flight next to the nominal chunk size.
type CurrentSizeNames struct {
	Number      string
	ChunkSize   string
	CurrentSize string
	TotalSize   string
}

var DefaultCurrentSizeNames = CurrentSizeNames{
	Number:      "_chunkNumber",
	ChunkSize:   "_chunkSize",
	CurrentSize: "_currentChunkSize",
	TotalSize:   "_totalSize",
}

func ParseCurrentSize(f Fields, n CurrentSizeNames) (Range, error) {
	var v [4]int64
	for i, name := range []string{n.Number, n.ChunkSize, n.CurrentSize, n.TotalSize} {
		x, err := intField(f, name)
		if err != nil {
			return Range{}, err
		}
		v[i] = x
	}
	return NewCurrentSize(n, v[0], v[1], v[2], v[3])
}

func NewCurrentSize(n CurrentSizeNames, number, chunkSize, currentSize, totalSize int64) (Range, error) {
	if number < 0 {
		return Range{}, apperr.Validation(n.Number, apperr.RuleNonNegative, "`%s` must be greater than or equal to zero", n.Number)
	}
	if chunkSize < 1 {
		return Range{}, apperr.Validation(n.ChunkSize, apperr.RulePositive, "`%s` must be greater than zero", n.ChunkSize)
	}
	if currentSize < 1 {
		return Range{}, apperr.Validation(n.CurrentSize, apperr.RulePositive, "`%s` must be greater than zero", n.CurrentSize)
	}
	if totalSize < 1 {
		return Range{}, apperr.Validation(n.TotalSize, apperr.RulePositive, "`%s` must be greater than zero", n.TotalSize)
	}
	start := mulSat(number, chunkSize)
	end := addSat(start, currentSize-1)
	if end >= totalSize {
		return Range{}, apperr.Validation(n.TotalSize, apperr.RuleTotalAboveEnd, "`%s` must be greater than the end of the chunk", n.TotalSize)
	}
	return Range{kind: KindCurrentSize, start: start, end: end, total: totalSize, index: number}, nil
}
