package ranges

import (
	"errors"
	"strconv"
	"strings"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

// Fields is the read side of a parsed form; url.Values satisfies it.
type Fields interface {
	Get(key string) string
	Has(key string) bool
}

// intField reads a required integer field. Missing fields are rejected before
// anything else looks at the request.
func intField(f Fields, name string) (int64, error) {
	if f == nil || !f.Has(name) {
		return 0, apperr.Validation(name, apperr.RuleRequired, "`%s` is required", name)
	}
	raw := strings.TrimSpace(f.Get(name))
	if raw == "" {
		return 0, apperr.Validation(name, apperr.RuleRequired, "`%s` is required", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
			return 0, apperr.TooLarge(name, "`%s` value is too large", name)
		}
		return 0, apperr.Validation(name, apperr.RuleInteger, "`%s` must be an integer", name)
	}
	return v, nil
}

// Has reports whether any of names is present in f.
func Has(f Fields, names ...string) bool {
	if f == nil {
		return false
	}
	for _, n := range names {
		if f.Has(n) {
			return true
		}
	}
	return false
}

// Int reads a required integer field the same way the range parsers do.
func Int(f Fields, name string) (int64, error) {
	return intField(f, name)
}

// Require fails with the first of names that is missing from f.
func Require(f Fields, names ...string) error {
	for _, n := range names {
		if f == nil || !f.Has(n) || strings.TrimSpace(f.Get(n)) == "" {
			return apperr.Validation(n, apperr.RuleRequired, "`%s` is required", n)
		}
	}
	return nil
}
