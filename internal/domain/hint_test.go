package domain

import "testing"

func TestParseFormatHint_Scalars(t *testing.T) {
	h, err := ParseFormatHint(" int ")
	if err != nil {
		t.Fatalf("ParseFormatHint(int): %v", err)
	}
	if h.Kind != HintInt {
		t.Errorf("Kind = %q, want int", h.Kind)
	}

	h, err = ParseFormatHint("float")
	if err != nil {
		t.Fatalf("ParseFormatHint(float): %v", err)
	}
	if h.Kind != HintFloat {
		t.Errorf("Kind = %q, want float", h.Kind)
	}
}

func TestParseFormatHint_Object(t *testing.T) {
	h, err := ParseFormatHint("{category:str, quantity:int}")
	if err != nil {
		t.Fatalf("ParseFormatHint: %v", err)
	}
	if h.Kind != HintObject {
		t.Fatalf("Kind = %q, want object", h.Kind)
	}
	want := []Field{{"category", FieldStr}, {"quantity", FieldInt}}
	if len(h.Fields) != len(want) {
		t.Fatalf("Fields = %v, want %v", h.Fields, want)
	}
	for i, f := range want {
		if h.Fields[i] != f {
			t.Errorf("Fields[%d] = %v, want %v", i, h.Fields[i], f)
		}
	}
}

func TestParseFormatHint_List(t *testing.T) {
	h, err := ParseFormatHint("list[{product:str, revenue:float}]")
	if err != nil {
		t.Fatalf("ParseFormatHint: %v", err)
	}
	if h.Kind != HintList {
		t.Fatalf("Kind = %q, want list", h.Kind)
	}
	if len(h.Fields) != 2 {
		t.Fatalf("len(Fields) = %d, want 2", len(h.Fields))
	}
	if h.Fields[1].Name != "revenue" || h.Fields[1].Type != FieldFloat {
		t.Errorf("Fields[1] = %v, want revenue:float", h.Fields[1])
	}
}

func TestParseFormatHint_Malformed(t *testing.T) {
	cases := []string{
		"",
		"integer",
		"{}",
		"{category}",
		"{category:text}",
		"list[int]",
		"list[]",
	}
	for _, c := range cases {
		if _, err := ParseFormatHint(c); err == nil {
			t.Errorf("ParseFormatHint(%q): expected error, got nil", c)
		}
	}
}
