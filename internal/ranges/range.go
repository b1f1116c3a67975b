// Package ranges normalizes the byte-range conventions of the supported upload
// clients into one canonical Range value.
//
// A Range is built by exactly one adapter (Content-Range header, zero- or
// one-based body fields, a plain chunk counter, or the current-size variant)
// and never changes afterwards.
package ranges

import (
	"math"
	"math/bits"
)

type Kind int

const (
	KindContentRange Kind = iota + 1
	KindZeroBased
	KindOneBased
	KindCounter
	KindCurrentSize
)

func (k Kind) String() string {
	switch k {
	case KindContentRange:
		return "content-range"
	case KindZeroBased:
		return "zero-based"
	case KindOneBased:
		return "one-based"
	case KindCounter:
		return "counter"
	case KindCurrentSize:
		return "current-size"
	}
	return "unknown"
}

// Range is the canonical {start, end, total} description of one chunk.
// The zero value is not valid; use one of the constructors.
type Range struct {
	kind  Kind
	start int64
	end   int64
	total int64

	// index is zero-based for every body-field kind.
	index int64
	count int64
}

func (r Range) Kind() Kind   { return r.kind }
func (r Range) Start() int64 { return r.start }
func (r Range) End() int64   { return r.end }
func (r Range) Total() int64 { return r.total }

// NumberOfChunks is the declared chunk count, or 0 when the wire form does not
// carry one (Content-Range, current-size).
func (r Range) NumberOfChunks() int64 {
	switch r.kind {
	case KindZeroBased, KindOneBased, KindCounter:
		return r.count
	}
	return 0
}

func (r Range) IsFirst() bool {
	switch r.kind {
	case KindZeroBased, KindOneBased, KindCurrentSize:
		return r.index == 0
	}
	return r.start == 0
}

func (r Range) IsLast() bool {
	switch r.kind {
	case KindZeroBased, KindOneBased:
		return r.index == r.count-1
	case KindCounter:
		// counts chunks, not bytes: chunk+1 out of chunks
		return r.start >= r.total-1
	case KindCurrentSize:
		return r.end == r.total-1
	}
	return r.end >= r.total-1
}

// Percentage is floor((end+1)/total*100) clamped to [0,100]. A counter range
// reports the share of chunks seen so far.
func (r Range) Percentage() int {
	if r.kind == KindCounter {
		return Percent(r.start+1, r.total)
	}
	if r.end == math.MaxInt64 {
		return 100
	}
	return Percent(r.end+1, r.total)
}

// Percent returns floor(n/d*100) clamped to [0,100] without overflowing.
func Percent(n, d int64) int {
	switch {
	case d <= 0 || n >= d:
		return 100
	case n <= 0:
		return 0
	}
	hi, lo := bits.Mul64(uint64(n), 100)
	q, _ := bits.Div64(hi, lo, uint64(d))
	return int(q)
}

// mulSat multiplies two non-negative values, saturating at MaxInt64.
func mulSat(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
