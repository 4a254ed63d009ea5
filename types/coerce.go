package types

import "strconv"

// ToString implements §4.1 to_string. Number formatting uses Go's shortest
// round-trip decimal printer (strconv.FormatFloat with precision -1): the
// observable text of a coerced float depends on this choice, so it is
// pinned down here rather than left to whatever the platform happens to do
// (§9 design note).
func ToString(v Value) (string, error) {
	switch val := v.(type) {
	case StringValue:
		return val.Val, nil
	case NumberValue:
		return formatNumber(val.Val), nil
	case BooleanValue:
		if val.Val {
			return "true", nil
		}
		return "false", nil
	default:
		return "", &CoercionError{From: v.Type(), Want: "string"}
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// ToNumber implements §4.1 to_number. A String that fails to parse as a
// double falls back to 0.0, never NaN.
func ToNumber(v Value) (float64, error) {
	switch val := v.(type) {
	case NumberValue:
		return val.Val, nil
	case StringValue:
		n, err := strconv.ParseFloat(val.Val, 64)
		if err != nil {
			return 0.0, nil
		}
		return n, nil
	case BooleanValue:
		if val.Val {
			return 1.0, nil
		}
		return 0.0, nil
	default:
		return 0, &CoercionError{From: v.Type(), Want: "number"}
	}
}

// ToBoolean implements §4.1 to_boolean.
func ToBoolean(v Value) (bool, error) {
	switch val := v.(type) {
	case BooleanValue:
		return val.Val, nil
	case StringValue:
		return val.Val != "", nil
	case NumberValue:
		return val.Val != 0, nil
	default:
		return false, &CoercionError{From: v.Type(), Want: "boolean"}
	}
}
