package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lakehouse/internal/schema"
)

const (
	jsonSampleSize     = 5
	jsonLikeRatio      = 0.8
	timeSampleSize     = 10
	boolDistinctSample = 10
)

// column is the non-null view of one cleaned column. Values are strings or
// nested map[string]any / []any.
type column struct {
	values []any
}

func (c column) strings() ([]string, bool) {
	out := make([]string, 0, len(c.values))
	for _, v := range c.values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// rule is one step of the inference chain. The first rule that matches
// decides the column type.
type rule struct {
	name  string
	match func(column) (schema.Type, bool)
}

var inferenceChain = []rule{
	{"nested", matchNested},
	{"json-like", matchJSONLike},
	{"numeric", matchNumeric},
	{"timestamp", matchTimestamp},
	{"boolean", matchBoolean},
}

// Infer returns the relational type for a column's non-null values. An empty
// column is TEXT.
func Infer(values []any) schema.Type {
	c := column{values: values}
	if len(c.values) == 0 {
		return schema.Text
	}
	for _, r := range inferenceChain {
		if t, ok := r.match(c); ok {
			return t
		}
	}
	return schema.Text
}

func matchNested(c column) (schema.Type, bool) {
	for _, v := range c.values {
		switch v.(type) {
		case map[string]any, []any:
			return schema.JSON, true
		}
	}
	return "", false
}

func matchJSONLike(c column) (schema.Type, bool) {
	n := len(c.values)
	if n > jsonSampleSize {
		n = jsonSampleSize
	}
	like := 0
	for _, v := range c.values[:n] {
		s, _ := v.(string)
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			like++
		}
	}
	if float64(like) >= float64(n)*jsonLikeRatio {
		return schema.JSON, true
	}
	return "", false
}

func matchNumeric(c column) (schema.Type, bool) {
	vals, ok := c.strings()
	if !ok {
		return "", false
	}
	integral := true
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, s := range vals {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			minV = math.Min(minV, float64(i))
			maxV = math.Max(maxV, float64(i))
			continue
		}
		f, ok := parseDecimal(s)
		if !ok {
			return "", false
		}
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			integral = false
		}
		minV = math.Min(minV, f)
		maxV = math.Max(maxV, f)
	}
	switch {
	case !integral:
		return schema.Numeric, true
	case minV >= math.MinInt32 && maxV <= math.MaxInt32:
		return schema.Integer, true
	default:
		return schema.BigInt, true
	}
}

var decimalPattern = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// parseDecimal accepts plain decimal and exponent notation only. Hex floats,
// "inf" and digit separators are text.
func parseDecimal(s string) (float64, bool) {
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func matchTimestamp(c column) (schema.Type, bool) {
	vals, ok := c.strings()
	if !ok {
		return "", false
	}
	if len(vals) > timeSampleSize {
		vals = vals[:timeSampleSize]
	}
	for _, s := range vals {
		if _, ok := parseTime(s); !ok {
			return "", false
		}
	}
	return schema.Timestamp, true
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// parseTime tries timeLayouts in order; values without a zone are UTC.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func matchBoolean(c column) (schema.Type, bool) {
	distinct := map[string]bool{}
	var order []string
	for _, v := range c.values {
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		k := strings.ToLower(s)
		if !distinct[k] {
			distinct[k] = true
			order = append(order, k)
			if len(order) == boolDistinctSample {
				break
			}
		}
	}
	if len(order) > 2 {
		return "", false
	}
	for _, k := range order {
		if _, ok := boolTokens[k]; !ok {
			return "", false
		}
	}
	return schema.Boolean, true
}

var boolTokens = map[string]bool{
	"true": true, "t": true, "yes": true, "1": true,
	"false": false, "f": false, "no": false, "0": false,
}
