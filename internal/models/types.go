package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// FlexInt64 is an int64 that can be unmarshaled from either a JSON number or string.
// Webhook payloads are inconsistent about quoting numeric amounts
// (e.g., "invoice_total": "4900" instead of "invoice_total": 4900).
type FlexInt64 int64

// UnmarshalJSON implements json.Unmarshaler for FlexInt64.
func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	var intVal int64
	if err := json.Unmarshal(data, &intVal); err == nil {
		*f = FlexInt64(intVal)
		return nil
	}

	// Fractional numbers are truncated toward zero; out-of-range values clamp
	var floatVal float64
	if err := json.Unmarshal(data, &floatVal); err == nil {
		*f = FlexInt64(clampToInt64(floatVal))
		return nil
	}

	var strVal string
	if err := json.Unmarshal(data, &strVal); err == nil {
		if strVal == "" {
			*f = 0
			return nil
		}
		parsed, err := strconv.ParseInt(strVal, 10, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt64(parsed)
		return nil
	}

	// null and other shapes decode to 0
	*f = 0
	return nil
}

func clampToInt64(v float64) int64 {
	switch {
	case v >= math.MaxInt64:
		return math.MaxInt64
	case v <= math.MinInt64:
		return math.MinInt64
	default:
		return int64(v)
	}
}

// MarshalJSON always marshals as a numeric value.
func (f FlexInt64) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(f))
}

// Int64 returns the value as a standard int64.
func (f FlexInt64) Int64() int64 {
	return int64(f)
}
