package formula

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

// Row is a single record of a dataset, keyed by column name
type Row = map[string]interface{}

// Scalar is the result of evaluating an expression. A Scalar that is not
// Valid is null: at least one operand was missing.
type Scalar struct {
	Value float64
	Valid bool
}

// Number returns a valid Scalar
func Number(v float64) Scalar {
	return Scalar{Value: v, Valid: true}
}

// Null is the missing value
var Null = Scalar{}

// Interface returns the value as stored in a dataset cell: float64 or nil
func (s Scalar) Interface() interface{} {
	if !s.Valid {
		return nil
	}
	return s.Value
}

func (s Scalar) String() string {
	if !s.Valid {
		return "null"
	}
	return strconv.FormatFloat(s.Value, 'f', -1, 64)
}

// valueToNumber converts a cell value to float64. ok is false for null
// cells (nil, NaN, empty string).
func valueToNumber(v interface{}) (num float64, ok bool, err error) {
	switch val := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		num = val
	case float32:
		num = float64(val)
	case int:
		num = float64(val)
	case int8:
		num = float64(val)
	case int16:
		num = float64(val)
	case int32:
		num = float64(val)
	case int64:
		num = float64(val)
	case uint:
		num = float64(val)
	case uint8:
		num = float64(val)
	case uint16:
		num = float64(val)
	case uint32:
		num = float64(val)
	case uint64:
		num = float64(val)
	case decimal.Decimal:
		num = val.InexactFloat64()
	case json.Number:
		num, err = val.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("cannot convert %q to number: %w", val, err)
		}
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false, nil
		}
		num, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("cannot convert %q to number", val)
		}
	default:
		return 0, false, fmt.Errorf("cannot convert %T to number", v)
	}

	if math.IsNaN(num) {
		return 0, false, nil
	}
	if math.IsInf(num, 0) {
		return 0, false, fmt.Errorf("non-finite value %v", num)
	}
	return num, true, nil
}

// valueToTime converts a datetime cell to time.Time. ok is false for null
// cells.
func valueToTime(v interface{}) (t time.Time, ok bool, err error) {
	switch val := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case time.Time:
		return val, true, nil
	case *time.Time:
		if val == nil {
			return time.Time{}, false, nil
		}
		return *val, true, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false, nil
		}
		t, err := dateparse.ParseAny(s)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("cannot parse date %q: %w", val, err)
		}
		return t, true, nil
	default:
		return time.Time{}, false, fmt.Errorf("cannot convert %T to datetime", v)
	}
}

// isNull reports whether a cell holds no value
func isNull(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	case *time.Time:
		return val == nil
	}
	return false
}
