package ranges

import (
	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// FieldNames maps the four logical body fields onto one client's wire names.
type FieldNames struct {
	Index          string
	NumberOfChunks string
	ChunkSize      string
	TotalSize      string
}

// DefaultNames are the logical names, used when a range is built directly.
var DefaultNames = FieldNames{
	Index:          "index",
	NumberOfChunks: "numberOfChunks",
	ChunkSize:      "chunkSize",
	TotalSize:      "totalSize",
}

type bodyFields struct {
	index, count, chunkSize, totalSize int64
}

func readBody(f Fields, n FieldNames) (bodyFields, error) {
	var b bodyFields
	var err error
	if b.count, err = intField(f, n.NumberOfChunks); err != nil {
		return b, err
	}
	if b.index, err = intField(f, n.Index); err != nil {
		return b, err
	}
	if b.chunkSize, err = intField(f, n.ChunkSize); err != nil {
		return b, err
	}
	if b.totalSize, err = intField(f, n.TotalSize); err != nil {
		return b, err
	}
	return b, nil
}

// ParseZeroBased reads a zero-based chunk index and its companions from f.
func ParseZeroBased(f Fields, n FieldNames) (Range, error) {
	b, err := readBody(f, n)
	if err != nil {
		return Range{}, err
	}
	return NewZeroBased(n, b.index, b.count, b.chunkSize, b.totalSize)
}

// ParseOneBased is ParseZeroBased for clients that count chunks from one.
func ParseOneBased(f Fields, n FieldNames) (Range, error) {
	b, err := readBody(f, n)
	if err != nil {
		return Range{}, err
	}
	return NewOneBased(n, b.index, b.count, b.chunkSize, b.totalSize)
}

func NewZeroBased(n FieldNames, index, count, chunkSize, totalSize int64) (Range, error) {
	if count <= 0 {
		return Range{}, apperr.Validation(n.NumberOfChunks, apperr.RulePositive, "`%s` must be greater than zero", n.NumberOfChunks)
	}
	if index < 0 {
		return Range{}, apperr.Validation(n.Index, apperr.RuleNonNegative, "`%s` must be greater than or equal to zero", n.Index)
	}
	if index >= count {
		return Range{}, apperr.Validation(n.Index, apperr.RuleBelowCount, "`%s` must be smaller than `%s`", n.Index, n.NumberOfChunks)
	}
	if err := checkGrid(n, index, count, chunkSize, totalSize, "greater than"); err != nil {
		return Range{}, err
	}
	return gridRange(KindZeroBased, index, count, chunkSize, totalSize), nil
}

func NewOneBased(n FieldNames, index, count, chunkSize, totalSize int64) (Range, error) {
	if count <= 0 {
		return Range{}, apperr.Validation(n.NumberOfChunks, apperr.RulePositive, "`%s` must be greater than zero", n.NumberOfChunks)
	}
	if index < 1 {
		return Range{}, apperr.Validation(n.Index, apperr.RulePositive, "`%s` must be greater than zero", n.Index)
	}
	if index > count {
		return Range{}, apperr.Validation(n.Index, apperr.RuleAtMostCount, "`%s` must be smaller than or equal to `%s`", n.Index, n.NumberOfChunks)
	}
	if err := checkGrid(n, index-1, count, chunkSize, totalSize, "greater than or equal to"); err != nil {
		return Range{}, err
	}
	return gridRange(KindOneBased, index-1, count, chunkSize, totalSize), nil
}

// checkGrid validates chunkSize and totalSize against the zero-based index.
// cmp only changes the wording of the covers-offset message.
func checkGrid(n FieldNames, index, count, chunkSize, totalSize int64, cmp string) error {
	if chunkSize < 1 {
		return apperr.Validation(n.ChunkSize, apperr.RulePositive, "`%s` must be greater than zero", n.ChunkSize)
	}
	if totalSize < 1 {
		return apperr.Validation(n.TotalSize, apperr.RulePositive, "`%s` must be greater than zero", n.TotalSize)
	}
	if totalSize <= mulSat(index, chunkSize) {
		return apperr.Validation(n.TotalSize, apperr.RuleCoversOffset,
			"`%s` must be %s the multiple of `%s` and `%s`", n.TotalSize, cmp, n.ChunkSize, n.Index)
	}
	if totalSize > mulSat(count, chunkSize) {
		return apperr.Validation(n.TotalSize, apperr.RuleWithinGrid,
			"`%s` must be smaller than or equal to the multiple of `%s` and `%s`", n.TotalSize, n.ChunkSize, n.NumberOfChunks)
	}
	return nil
}

func gridRange(kind Kind, index, count, chunkSize, totalSize int64) Range {
	start := index * chunkSize
	end := min(mulSat(index+1, chunkSize)-1, totalSize-1)
	return Range{kind: kind, start: start, end: end, total: totalSize, index: index, count: count}
}
