package safe

import (
	"fmt"
	"math"
)

// AddInt64 returns a+b, failing when the sum leaves the int64 range.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("sum of %d and %d overflows int64", a, b)
	}
	return a + b, nil
}

// SubInt64 returns a-b, failing when the difference leaves the int64 range.
func SubInt64(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, fmt.Errorf("difference of %d and %d overflows int64", a, b)
	}
	return a - b, nil
}

// SumInt64 adds values in order and fails on the first overflow.
func SumInt64(values ...int64) (int64, error) {
	var total int64
	for _, v := range values {
		var err error
		if total, err = AddInt64(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// Int32 converts integers to int32 with range validation.
func Int32[T ~int | ~int64 | ~uint | ~uint32 | ~uint64](v T) (int32, error) {
	switch value := any(v).(type) {
	case int:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
	case int64:
		if value < math.MinInt32 || value > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
	case uint:
		if uint64(value) > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
	case uint32:
		if value > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
	case uint64:
		if value > math.MaxInt32 {
			return 0, fmt.Errorf("value %d out of int32 range", v)
		}
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	return int32(v), nil
}
