package ranges

import (
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DanikLP1/chunk-upload-service/internal/apperr"
)

func TestParseContentRange(t *testing.T) {
	r, err := ParseContentRange("bytes 0-99/200")
	require.NoError(t, err)
	assert.Equal(t, KindContentRange, r.Kind())
	assert.EqualValues(t, 0, r.Start())
	assert.EqualValues(t, 99, r.End())
	assert.EqualValues(t, 200, r.Total())
	assert.True(t, r.IsFirst())
	assert.False(t, r.IsLast())
	assert.Equal(t, 50, r.Percentage())
	assert.Equal(t, "bytes 0-99/200", r.Header())

	r, err = ParseContentRange("bytes 100-199/200")
	require.NoError(t, err)
	assert.False(t, r.IsFirst())
	assert.True(t, r.IsLast())
	assert.Equal(t, 100, r.Percentage())
}

func TestParseContentRangeErrors(t *testing.T) {
	cases := []struct {
		name   string
		header string
		kind   apperr.Kind
		rule   apperr.Rule
		msg    string
	}{
		{"missing", "", apperr.KindValidation, apperr.RuleMalformed, "Content Range header is missing or invalid"},
		{"garbage", "bytes a-b/c", apperr.KindValidation, apperr.RuleMalformed, "Content Range header is missing or invalid"},
		{"end before start", "bytes 100-99/200", apperr.KindValidation, apperr.RuleEndNotBeforeStart, "Range end must be greater than or equal to range start"},
		{"total at end", "bytes 0-200/200", apperr.KindValidation, apperr.RuleTotalAboveEnd, "Size must be greater than range end"},
		{"overflow", "bytes 0-99999999999999999999/99999999999999999999", apperr.KindPayloadTooLarge, apperr.RuleTooLarge, "The content range value is too large"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseContentRange(tc.header)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
			assert.Equal(t, tc.rule, apperr.RuleOf(err))
			assert.Equal(t, ContentRangeHeader, apperr.FieldOf(err))
			assert.EqualError(t, err, tc.msg)
		})
	}
}

func TestZeroBasedScenario(t *testing.T) {
	r, err := NewZeroBased(DefaultNames, 0, 2, 100, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 0, r.Start())
	assert.EqualValues(t, 99, r.End())
	assert.Equal(t, 50, r.Percentage())
	assert.True(t, r.IsFirst())
	assert.False(t, r.IsLast())
	assert.EqualValues(t, 2, r.NumberOfChunks())

	r, err = NewZeroBased(DefaultNames, 1, 2, 100, 200)
	require.NoError(t, err)
	assert.EqualValues(t, 100, r.Start())
	assert.EqualValues(t, 199, r.End())
	assert.Equal(t, 100, r.Percentage())
	assert.True(t, r.IsLast())
}

func TestZeroBasedValidation(t *testing.T) {
	cases := []struct {
		name                               string
		index, count, chunkSize, totalSize int64
		field                              string
		rule                               apperr.Rule
		msg                                string
	}{
		{"count zero", 0, 0, 20, 190, "numberOfChunks", apperr.RulePositive, "`numberOfChunks` must be greater than zero"},
		{"negative index", -1, 10, 20, 190, "index", apperr.RuleNonNegative, "`index` must be greater than or equal to zero"},
		{"index at count", 10, 10, 20, 190, "index", apperr.RuleBelowCount, "`index` must be smaller than `numberOfChunks`"},
		{"chunk size zero", 0, 10, 0, 190, "chunkSize", apperr.RulePositive, "`chunkSize` must be greater than zero"},
		{"total zero", 0, 10, 20, 0, "totalSize", apperr.RulePositive, "`totalSize` must be greater than zero"},
		{"total below offset", 5, 10, 20, 100, "totalSize", apperr.RuleCoversOffset, "`totalSize` must be greater than the multiple of `chunkSize` and `index`"},
		{"total above grid", 0, 10, 20, 201, "totalSize", apperr.RuleWithinGrid, "`totalSize` must be smaller than or equal to the multiple of `chunkSize` and `numberOfChunks`"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewZeroBased(DefaultNames, tc.index, tc.count, tc.chunkSize, tc.totalSize)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			assert.Equal(t, tc.field, apperr.FieldOf(err))
			assert.Equal(t, tc.rule, apperr.RuleOf(err))
			assert.EqualError(t, err, tc.msg)
		})
	}
}

func TestZeroBasedBounds(t *testing.T) {
	for count := int64(1); count <= 6; count++ {
		for chunkSize := int64(1); chunkSize <= 7; chunkSize++ {
			for total := (count-1)*chunkSize + 1; total <= count*chunkSize; total++ {
				for index := int64(0); index < count; index++ {
					r, err := NewZeroBased(DefaultNames, index, count, chunkSize, total)
					require.NoError(t, err)
					assert.LessOrEqual(t, r.End()-r.Start()+1, chunkSize)
					assert.Less(t, r.End(), r.Total())
					if r.IsLast() {
						assert.Equal(t, total-1, r.End())
					}
				}
			}
		}
	}
}

func TestOneBased(t *testing.T) {
	r, err := NewOneBased(DefaultNames, 1, 2, 100, 150)
	require.NoError(t, err)
	assert.EqualValues(t, 0, r.Start())
	assert.EqualValues(t, 99, r.End())
	assert.True(t, r.IsFirst())
	assert.Equal(t, 66, r.Percentage())

	r, err = NewOneBased(DefaultNames, 2, 2, 100, 150)
	require.NoError(t, err)
	assert.EqualValues(t, 100, r.Start())
	assert.EqualValues(t, 149, r.End())
	assert.True(t, r.IsLast())
	assert.Equal(t, 100, r.Percentage())

	_, err = NewOneBased(DefaultNames, 0, 2, 100, 150)
	assert.Equal(t, apperr.RulePositive, apperr.RuleOf(err))
	assert.EqualError(t, err, "`index` must be greater than zero")

	_, err = NewOneBased(DefaultNames, 3, 2, 100, 150)
	assert.Equal(t, apperr.RuleAtMostCount, apperr.RuleOf(err))
	assert.EqualError(t, err, "`index` must be smaller than or equal to `numberOfChunks`")

	_, err = NewOneBased(DefaultNames, 2, 2, 100, 100)
	assert.Equal(t, apperr.RuleCoversOffset, apperr.RuleOf(err))
	assert.EqualError(t, err, "`totalSize` must be greater than or equal to the multiple of `chunkSize` and `index`")
}

func TestParseZeroBasedFields(t *testing.T) {
	names := FieldNames{Index: "dzchunkindex", NumberOfChunks: "dztotalchunkcount", ChunkSize: "dzchunksize", TotalSize: "dztotalfilesize"}
	form := url.Values{
		"dzchunkindex":      {"10"},
		"dztotalchunkcount": {"10"},
		"dzchunksize":       {"20"},
		"dztotalfilesize":   {"190"},
	}
	_, err := ParseZeroBased(form, names)
	assert.EqualError(t, err, "`dzchunkindex` must be smaller than `dztotalchunkcount`")
	assert.Equal(t, "dzchunkindex", apperr.FieldOf(err))

	form.Set("dzchunkindex", "9")
	r, err := ParseZeroBased(form, names)
	require.NoError(t, err)
	assert.EqualValues(t, 180, r.Start())
	assert.EqualValues(t, 189, r.End())
	assert.True(t, r.IsLast())
}

func TestParseRejectsMissingAndMalformedFields(t *testing.T) {
	full := func() url.Values {
		return url.Values{
			"index":          {"0"},
			"numberOfChunks": {"2"},
			"chunkSize":      {"100"},
			"totalSize":      {"200"},
		}
	}
	for _, field := range []string{"index", "numberOfChunks", "chunkSize", "totalSize"} {
		t.Run("missing "+field, func(t *testing.T) {
			f := full()
			f.Del(field)
			_, err := ParseZeroBased(f, DefaultNames)
			assert.Equal(t, apperr.RuleRequired, apperr.RuleOf(err))
			assert.Equal(t, field, apperr.FieldOf(err))
		})
		t.Run("non-integer "+field, func(t *testing.T) {
			f := full()
			f.Set(field, "1.5")
			_, err := ParseOneBased(f, DefaultNames)
			assert.Equal(t, apperr.RuleInteger, apperr.RuleOf(err))
			assert.Equal(t, field, apperr.FieldOf(err))
		})
	}

	f := full()
	f.Set("totalSize", "99999999999999999999")
	_, err := ParseZeroBased(f, DefaultNames)
	assert.Equal(t, apperr.KindPayloadTooLarge, apperr.KindOf(err))
}

func TestZeroBasedHugeValuesDoNotOverflow(t *testing.T) {
	_, err := NewZeroBased(DefaultNames, 2, 3, math.MaxInt64/2, 2*(math.MaxInt64/2))
	assert.Equal(t, apperr.RuleCoversOffset, apperr.RuleOf(err))

	r, err := NewZeroBased(DefaultNames, 2, 3, math.MaxInt64/2, math.MaxInt64)
	require.NoError(t, err)
	assert.EqualValues(t, math.MaxInt64-1, r.Start())
	assert.True(t, r.IsLast())

	r, err = NewZeroBased(DefaultNames, 1, 2, math.MaxInt64/2+1, math.MaxInt64)
	require.NoError(t, err)
	assert.EqualValues(t, math.MaxInt64-1, r.End())
	assert.Equal(t, 100, r.Percentage())
}

func TestCounter(t *testing.T) {
	r, err := NewCounter(DefaultCounterNames, 0, 2)
	require.NoError(t, err)
	assert.True(t, r.IsFirst())
	assert.False(t, r.IsLast())
	assert.Equal(t, 50, r.Percentage())
	assert.EqualValues(t, 1, r.End())

	r, err = ParseCounter(url.Values{"chunk": {"1"}, "chunks": {"2"}}, DefaultCounterNames)
	require.NoError(t, err)
	assert.True(t, r.IsLast())
	assert.Equal(t, 100, r.Percentage())

	_, err = NewCounter(DefaultCounterNames, -1, 2)
	assert.EqualError(t, err, "`chunk` must be greater than or equal to zero")
	_, err = NewCounter(DefaultCounterNames, 0, 0)
	assert.EqualError(t, err, "`chunks` must be greater than zero")
	_, err = NewCounter(DefaultCounterNames, 2, 2)
	assert.EqualError(t, err, "`chunk` must be less than `chunks`")

	_, err = ParseCounter(url.Values{"chunks": {"2"}}, DefaultCounterNames)
	assert.Equal(t, apperr.RuleRequired, apperr.RuleOf(err))
}

func TestCurrentSize(t *testing.T) {
	r, err := NewCurrentSize(DefaultCurrentSizeNames, 0, 10, 10, 35)
	require.NoError(t, err)
	assert.EqualValues(t, 0, r.Start())
	assert.EqualValues(t, 9, r.End())
	assert.Equal(t, 28, r.Percentage())
	assert.True(t, r.IsFirst())
	assert.False(t, r.IsLast())

	f := url.Values{}
	for k, v := range map[string]int{"_chunkNumber": 3, "_chunkSize": 10, "_currentChunkSize": 5, "_totalSize": 35} {
		f.Set(k, strconv.Itoa(v))
	}
	r, err = ParseCurrentSize(f, DefaultCurrentSizeNames)
	require.NoError(t, err)
	assert.EqualValues(t, 30, r.Start())
	assert.EqualValues(t, 34, r.End())
	assert.True(t, r.IsLast())
	assert.Equal(t, 100, r.Percentage())

	_, err = NewCurrentSize(DefaultCurrentSizeNames, 3, 10, 10, 35)
	assert.Equal(t, apperr.RuleTotalAboveEnd, apperr.RuleOf(err))
	_, err = NewCurrentSize(DefaultCurrentSizeNames, 0, 10, 0, 35)
	assert.EqualError(t, err, "`_currentChunkSize` must be greater than zero")
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 0, Percent(0, 3))
	assert.Equal(t, 100, Percent(5, 3))
	assert.Equal(t, 99, Percent(math.MaxInt64-1, math.MaxInt64))
}
