package ranges

import (
	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// CounterNames are the wire names of a counter-only range.
type CounterNames struct {
	Current string
	Total   string
}

var DefaultCounterNames = CounterNames{Current: "chunk", Total: "chunks"}

func ParseCounter(f Fields, n CounterNames) (Range, error) {
	current, err := intField(f, n.Current)
	if err != nil {
		return Range{}, err
	}
	total, err := intField(f, n.Total)
	if err != nil {
		return Range{}, err
	}
	return NewCounter(n, current, total)
}

// NewCounter builds the synthetic unit range [current, current+1] used for
// progress bookkeeping. Its offsets count chunks, not bytes.
func NewCounter(n CounterNames, current, total int64) (Range, error) {
	if current < 0 {
		return Range{}, apperr.Validation(n.Current, apperr.RuleNonNegative, "`%s` must be greater than or equal to zero", n.Current)
	}
	if total < 1 {
		return Range{}, apperr.Validation(n.Total, apperr.RulePositive, "`%s` must be greater than zero", n.Total)
	}
	if current >= total {
		return Range{}, apperr.Validation(n.Current, apperr.RuleBelowCount, "`%s` must be less than `%s`", n.Current, n.Total)
	}
	return Range{kind: KindCounter, start: current, end: current + 1, total: total, index: current, count: total}, nil
}
