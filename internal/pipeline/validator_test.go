package pipeline

import (
	"testing"

	"github.com/datadesk/retail-copilot/internal/domain"
)

func mustHint(t *testing.T, s string) domain.FormatHint {
	t.Helper()
	h, err := domain.ParseFormatHint(s)
	if err != nil {
		t.Fatalf("ParseFormatHint(%q): %v", s, err)
	}
	return h
}

func TestValidate(t *testing.T) {
	oneScalar := &domain.ResultSet{
		Columns: []string{"aov"},
		Rows:    []domain.Row{{"aov": 123.45}},
	}
	twoRows := &domain.ResultSet{
		Columns: []string{"product", "revenue"},
		Rows: []domain.Row{
			{"product": "Chai", "revenue": 100.0},
			{"product": "Chang", "revenue": 90.0},
		},
	}
	empty := &domain.ResultSet{Columns: []string{"revenue"}}

	tests := []struct {
		name       string
		rs         *domain.ResultSet
		hint       string
		wantStatus domain.ValidationStatus
		wantEmpty  bool
	}{
		{"float accepts single numeric row", oneScalar, "float", domain.ValidationValid, false},
		{"int accepts single numeric row", oneScalar, "int", domain.ValidationValid, false},
		{"scalar rejects multiple rows", twoRows, "float", domain.ValidationShapeMismatch, false},
		{"scalar flags empty set", empty, "float", domain.ValidationShapeMismatch, true},
		{"object accepts mappable row", oneScalar, "{aov:float}", domain.ValidationValid, false},
		{"object maps by position", oneScalar, "{value:float}", domain.ValidationValid, false},
		{"object rejects multiple rows", twoRows, "{product:str, revenue:float}", domain.ValidationShapeMismatch, false},
		{"list accepts mappable rows", twoRows, "list[{product:str, revenue:float}]", domain.ValidationValid, false},
		{"list flags empty set", empty, "list[{product:str, revenue:float}]", domain.ValidationShapeMismatch, true},
		{"list rejects unmappable fields", twoRows, "list[{a:str, b:float, c:int}]", domain.ValidationShapeMismatch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.rs, mustHint(t, tt.hint))
			if got.Status != tt.wantStatus {
				t.Fatalf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if got.Empty != tt.wantEmpty {
				t.Fatalf("empty = %v, want %v", got.Empty, tt.wantEmpty)
			}
		})
	}
}

func TestValidateFreeFormAlwaysPasses(t *testing.T) {
	hint := domain.FormatHint{Raw: "whatever"}
	got := Validate(&domain.ResultSet{}, hint)
	if !got.Valid() {
		t.Fatalf("free-form hint should pass, got %+v", got)
	}
}

func TestValidateScalarNonNumeric(t *testing.T) {
	rs := &domain.ResultSet{
		Columns: []string{"product"},
		Rows:    []domain.Row{{"product": "Chai"}},
	}
	got := Validate(rs, mustHint(t, "float"))
	if got.Status != domain.ValidationShapeMismatch {
		t.Fatalf("status = %q, want shape mismatch", got.Status)
	}
}
