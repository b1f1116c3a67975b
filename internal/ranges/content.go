package ranges

import (
	"errors"
	"regexp"
	"strconv"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// ContentRangeHeader is the header the header-based adapter reads.
const ContentRangeHeader = "Content-Range"

var contentRangeRe = regexp.MustCompile(`bytes (\d+)-(\d+)/(\d+)`)

// ParseContentRange parses a "bytes start-end/total" header value.
func ParseContentRange(header string) (Range, error) {
	m := contentRangeRe.FindStringSubmatch(header)
	if m == nil {
		return Range{}, apperr.Validation(ContentRangeHeader, apperr.RuleMalformed, "Content Range header is missing or invalid")
	}

	var nums [3]int64
	for i, s := range m[1:] {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			if errors.Is(err, strconv.ErrRange) {
				return Range{}, apperr.TooLarge(ContentRangeHeader, "The content range value is too large")
			}
			return Range{}, apperr.Validation(ContentRangeHeader, apperr.RuleMalformed, "Content Range header is missing or invalid")
		}
		nums[i] = v
	}
	return NewContentRange(nums[0], nums[1], nums[2])
}

func NewContentRange(start, end, total int64) (Range, error) {
	if start < 0 || end < 0 || total < 0 {
		return Range{}, apperr.Validation(ContentRangeHeader, apperr.RuleMalformed, "Content Range header is missing or invalid")
	}
	if end < start {
		return Range{}, apperr.Validation(ContentRangeHeader, apperr.RuleEndNotBeforeStart, "Range end must be greater than or equal to range start")
	}
	if total <= end {
		return Range{}, apperr.Validation(ContentRangeHeader, apperr.RuleTotalAboveEnd, "Size must be greater than range end")
	}
	return Range{kind: KindContentRange, start: start, end: end, total: total}, nil
}

// Header formats r as a Content-Range value.
func (r Range) Header() string {
	return "bytes " + strconv.FormatInt(r.start, 10) + "-" + strconv.FormatInt(r.end, 10) + "/" + strconv.FormatInt(r.total, 10)
}
