package types

import "testing"

func TestToStringRoundTrip(t *testing.T) {
	tests := []float64{0, 1, -1, 3.14159, 1e20, 1e-20, 123456789.125}
	for _, n := range tests {
		s, err := ToString(NewNumber(n))
		if err != nil {
			t.Fatalf("ToString(%v): %v", n, err)
		}
		back, err := ToNumber(NewString(s))
		if err != nil {
			t.Fatalf("ToNumber(%q): %v", s, err)
		}
		if back != n {
			t.Errorf("round-trip %v -> %q -> %v", n, s, back)
		}
	}
}

func TestToBooleanOfToString(t *testing.T) {
	for _, b := range []bool{true, false} {
		s, err := ToString(NewBoolean(b))
		if err != nil {
			t.Fatalf("ToString(%v): %v", b, err)
		}
		got, err := ToBoolean(NewBoolean(b))
		if err != nil {
			t.Fatalf("ToBoolean(%v): %v", b, err)
		}
		if got != b {
			t.Errorf("ToBoolean(%v) = %v", b, got)
		}
		_ = s
	}
}

func TestEmptyStringCoercion(t *testing.T) {
	n, err := ToNumber(NewString(""))
	if err != nil || n != 0.0 {
		t.Errorf("ToNumber(\"\") = %v, %v; want 0.0, nil", n, err)
	}
	b, err := ToBoolean(NewString(""))
	if err != nil || b != false {
		t.Errorf("ToBoolean(\"\") = %v, %v; want false, nil", b, err)
	}
	b, err = ToBoolean(NewNumber(0))
	if err != nil || b != false {
		t.Errorf("ToBoolean(0) = %v, %v; want false, nil", b, err)
	}
}

func TestStringParseFallback(t *testing.T) {
	n, err := ToNumber(NewString("not a number"))
	if err != nil || n != 0.0 {
		t.Errorf("ToNumber(garbage) = %v, %v; want 0.0, nil", n, err)
	}
}

func TestCoercionFailsOnNonCoercibleTags(t *testing.T) {
	rl := NewReturnLocation(4)
	if _, err := ToString(rl); err == nil {
		t.Errorf("expected TypeCoercion error coercing ReturnLocation to string")
	}
	if _, err := ToNumber(rl); err == nil {
		t.Errorf("expected TypeCoercion error coercing ReturnLocation to number")
	}
	if _, err := ToBoolean(rl); err == nil {
		t.Errorf("expected TypeCoercion error coercing ReturnLocation to boolean")
	}
}
