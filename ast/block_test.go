package ast

import "testing"

func TestTryAsPrimitiveText(t *testing.T) {
	b := NewBlock(OpcodeText).WithField("TEXT", NewField("hello"))
	p, ok := b.TryAsPrimitive()
	if !ok || p.Kind != PrimitiveText || p.Text != "hello" {
		t.Fatalf("unexpected primitive: %+v ok=%v", p, ok)
	}
}

func TestTryAsPrimitiveNumberInvalid(t *testing.T) {
	b := NewBlock(OpcodeMathNumber).WithField("NUM", NewField("not-a-number"))
	p, ok := b.TryAsPrimitive()
	if !ok {
		t.Fatalf("expected math_number to classify as primitive even with bad literal")
	}
	if p.ParseOK {
		t.Fatalf("expected ParseOK=false for invalid literal")
	}
}

func TestTryAsPrimitiveVariable(t *testing.T) {
	b := NewBlock(OpcodeDataVariable).WithField("VARIABLE", NewIdentifiedField("v1", "my var"))
	p, ok := b.TryAsPrimitive()
	if !ok || p.Kind != PrimitiveVariable || p.RefID != "v1" || p.RefName != "my var" {
		t.Fatalf("unexpected primitive: %+v ok=%v", p, ok)
	}
}

func TestNonPrimitiveOpcode(t *testing.T) {
	b := NewBlock("operator_join")
	if _, ok := b.TryAsPrimitive(); ok {
		t.Fatalf("operator_join must not classify as a primitive")
	}
}

func TestInputSingleValue(t *testing.T) {
	single := SingleInput(NewBlock(OpcodeText))
	if !single.IsSingleValue() {
		t.Errorf("expected single-block input to be a value")
	}
	multi := SubstackInput([]*Block{NewBlock("a"), NewBlock("b")})
	if multi.IsSingleValue() {
		t.Errorf("expected multi-block input to not be a value")
	}
}
